package store

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/fmuoria/interview-notes/internal/config"
	"github.com/fmuoria/interview-notes/internal/models"
)

var interviewColumnNames = []string{
	"id", "source", "file_name", "drive_file_id", "meeting_key", "title", "meeting_date",
	"transcript", "summary", "candidate_name", "candidate_email", "interviewer", "rating", "category",
	"lever_opportunity_id", "feedback_submitted_at", "created_at", "updated_at",
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		if closeErr := db.Close(); closeErr != nil {
			t.Logf("Failed to close mock db: %v", closeErr)
		}
	})
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func TestMigrations_VectorSizeMatchesConfig(t *testing.T) {
	up, err := migrationsFS.ReadFile("migrations/0001_create_interviews.up.sql")
	require.NoError(t, err)

	column := fmt.Sprintf("vector(%d)", config.EmbeddingDimensions)
	assert.Equal(t, 2, strings.Count(string(up), column), "embedding column and match_interviews argument should both be %s", column)
}

func TestStore_CreateInterview(t *testing.T) {
	s, mock := newMockStore(t)

	iv := &models.Interview{
		Source:     models.SourceDrive,
		FileName:   "Jane Doe - Interview.txt",
		Transcript: "hello",
	}

	mock.ExpectExec("INSERT INTO interviews").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.CreateInterview(context.Background(), iv, []float32{0.1, 0.2})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, iv.ID)
	assert.False(t, iv.CreatedAt.IsZero())
	assert.Equal(t, models.CategoryOther, iv.Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateInterview_Duplicate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO interviews").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key"})

	err := s.CreateInterview(context.Background(), &models.Interview{FileName: "a.txt"}, nil)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetInterview(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(interviewColumnNames).AddRow(
		id.String(), "drive", "Jane.txt", "file-1", "", "Jane Doe - Onsite", nil,
		"transcript", "summary", "Jane Doe", "jane@example.com", "Sam", "hire", "interview",
		"", nil, created, created,
	)
	mock.ExpectQuery("SELECT (.+) FROM interviews WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(rows)

	iv, err := s.GetInterview(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, id, iv.ID)
	assert.Equal(t, models.RatingHire, iv.Rating)
	assert.Equal(t, models.CategoryInterview, iv.Category)
	assert.Nil(t, iv.MeetingDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetInterview_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM interviews WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(interviewColumnNames))

	_, err := s.GetInterview(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListInterviews_Filters(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM interviews WHERE category = \\$1 AND \\(summary = '' OR embedding IS NULL\\) ORDER BY created_at DESC LIMIT \\$2 OFFSET \\$3").
		WithArgs(models.CategoryInterview, 10, 20).
		WillReturnRows(sqlmock.NewRows(interviewColumnNames))

	interviews, err := s.ListInterviews(context.Background(), ListOptions{
		Limit:           10,
		Offset:          20,
		Category:        models.CategoryInterview,
		MissingAnalysis: true,
	})
	require.NoError(t, err)
	assert.NotNil(t, interviews)
	assert.Empty(t, interviews)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_DeleteInterview_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec("DELETE FROM interviews WHERE id = \\$1").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.DeleteInterview(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DeleteInterviews(t *testing.T) {
	s, mock := newMockStore(t)

	n, err := s.DeleteInterviews(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	mock.ExpectExec("DELETE FROM interviews WHERE id = ANY").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err = s.DeleteInterviews(context.Background(), []uuid.UUID{uuid.New(), uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ExistingFileNames(t *testing.T) {
	s, mock := newMockStore(t)

	existing, err := s.ExistingFileNames(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, existing)

	mock.ExpectQuery("SELECT DISTINCT file_name FROM interviews").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"file_name"}).AddRow("a.txt"))

	existing, err = s.ExistingFileNames(context.Background(), []string{"a.txt", "b.txt"})
	require.NoError(t, err)
	assert.True(t, existing["a.txt"])
	assert.False(t, existing["b.txt"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MeetingKeyExists(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("abc-defg-hij/2024-05-01").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := s.MeetingKeyExists(context.Background(), "abc-defg-hij/2024-05-01")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStore_UpdateAnalysis_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE interviews SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateAnalysis(context.Background(), &models.Interview{ID: uuid.New()}, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_MarkFeedbackSubmitted(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE interviews").
		WithArgs(id, "opp-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.MarkFeedbackSubmitted(context.Background(), id, "opp-1", at))

	mock.ExpectExec("UPDATE interviews").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := s.MarkFeedbackSubmitted(context.Background(), uuid.New(), "opp-1", at)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetEmbedding(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT embedding FROM interviews").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"embedding"}).AddRow("[1,2.5]"))

	vec, err := s.GetEmbedding(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2.5}, vec)

	mock.ExpectQuery("SELECT embedding FROM interviews").
		WillReturnRows(sqlmock.NewRows([]string{"embedding"}))

	_, err = s.GetEmbedding(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNoEmbedding)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Ping(t *testing.T) {
	s, _ := newMockStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestStore_MatchInterviews(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	_, err := s.MatchInterviews(context.Background(), nil, 0.5, 5)
	assert.Error(t, err)

	mock.ExpectQuery("FROM match_interviews\\(\\$1, \\$2, \\$3\\)").
		WithArgs(sqlmock.AnyArg(), 0.5, 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "candidate_name", "title", "summary", "similarity"}).
			AddRow(id.String(), "Jane", "Onsite", "Good", 0.91))

	matches, err := s.MatchInterviews(context.Background(), []float32{0.1, 0.2}, 0.5, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].ID)
	assert.InDelta(t, 0.91, matches[0].Similarity, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_DuplicateRows(t *testing.T) {
	s, mock := newMockStore(t)
	a, b := uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectQuery("SELECT id, file_name, meeting_key, length\\(transcript\\)").
		WillReturnRows(sqlmock.NewRows([]string{"id", "file_name", "meeting_key", "transcript_length", "created_at"}).
			AddRow(a.String(), "x.txt", "", 10, now).
			AddRow(b.String(), "x.txt", "", 20, now.Add(time.Minute)))

	rows, err := s.DuplicateRows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "file:x.txt", rows[0].Key())
	assert.Equal(t, 20, rows[1].TranscriptLength)
}

func TestStore_PutSettings(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO settings").
		WithArgs(SettingDriveFolderID, "folder-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.PutSettings(context.Background(), map[string]string{SettingDriveFolderID: "folder-1"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetSettings(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT key, value FROM settings").
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).
			AddRow(SettingPollEnabled, "true").
			AddRow(SettingLeverPerformAs, "user-1"))

	settings, err := s.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "true", settings[SettingPollEnabled])
	assert.Equal(t, "user-1", settings[SettingLeverPerformAs])
}

func TestStore_Tokens(t *testing.T) {
	s, mock := newMockStore(t)
	expiry := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT access_token, refresh_token, token_type, expiry FROM oauth_tokens").
		WithArgs("google").
		WillReturnRows(sqlmock.NewRows([]string{"access_token", "refresh_token", "token_type", "expiry"}))

	_, err := s.LoadToken(context.Background(), "google")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery("SELECT access_token, refresh_token, token_type, expiry FROM oauth_tokens").
		WithArgs("google").
		WillReturnRows(sqlmock.NewRows([]string{"access_token", "refresh_token", "token_type", "expiry"}).
			AddRow("access", "refresh", "Bearer", expiry))

	tok, err := s.LoadToken(context.Background(), "google")
	require.NoError(t, err)
	assert.Equal(t, "refresh", tok.RefreshToken)
	assert.True(t, tok.Expiry.Equal(expiry))

	mock.ExpectExec("INSERT INTO oauth_tokens").
		WithArgs("google", "new-access", "", "Bearer", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = s.SaveToken(context.Background(), "google", &oauth2.Token{AccessToken: "new-access", TokenType: "Bearer", Expiry: expiry})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
