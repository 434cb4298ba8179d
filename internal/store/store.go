// Package store persists interviews, settings and OAuth tokens in Postgres.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/fmuoria/interview-notes/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert hits a unique constraint
	ErrDuplicate = errors.New("already exists")
	// ErrNoEmbedding is returned when an interview has not been embedded yet
	ErrNoEmbedding = errors.New("interview has no embedding")
)

const interviewColumns = `id, source, file_name, drive_file_id, meeting_key, title, meeting_date,
	transcript, summary, candidate_name, candidate_email, interviewer, rating, category,
	lever_opportunity_id, feedback_submitted_at, created_at, updated_at`

// Store is the Postgres-backed repository
type Store struct {
	db *sqlx.DB
}

// New wraps an existing connection
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to Postgres and verifies the connection
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return New(db), nil
}

// Close closes the underlying connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies all pending schema migrations
func (s *Store) Migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	driver, err := postgres.WithInstance(s.db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// CreateInterview inserts a new interview, assigning ID and timestamps when unset
func (s *Store) CreateInterview(ctx context.Context, iv *models.Interview, embedding []float32) error {
	if iv.ID == uuid.Nil {
		iv.ID = uuid.New()
	}
	now := time.Now().UTC()
	if iv.CreatedAt.IsZero() {
		iv.CreatedAt = now
	}
	iv.UpdatedAt = now
	if iv.Category == "" {
		iv.Category = models.CategoryOther
	}

	query := `
		INSERT INTO interviews (
			id, source, file_name, drive_file_id, meeting_key, title, meeting_date,
			transcript, summary, candidate_name, candidate_email, interviewer, rating,
			category, embedding, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)`

	_, err := s.db.ExecContext(ctx, query,
		iv.ID, iv.Source, iv.FileName, iv.DriveFileID, iv.MeetingKey, iv.Title, iv.MeetingDate,
		iv.Transcript, iv.Summary, iv.CandidateName, iv.CandidateEmail, iv.Interviewer, iv.Rating,
		iv.Category, vectorArg(embedding), iv.CreatedAt, iv.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("interview %s: %w", iv.ID, ErrDuplicate)
		}
		return fmt.Errorf("failed to create interview: %w", err)
	}
	return nil
}

// GetInterview retrieves an interview by ID
func (s *Store) GetInterview(ctx context.Context, id uuid.UUID) (*models.Interview, error) {
	var iv models.Interview
	query := `SELECT ` + interviewColumns + ` FROM interviews WHERE id = $1`

	if err := s.db.GetContext(ctx, &iv, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("interview %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get interview: %w", err)
	}
	return &iv, nil
}

// ListOptions filters ListInterviews
type ListOptions struct {
	Limit    int
	Offset   int
	Category models.Category
	// MissingAnalysis selects rows with no summary or no embedding
	MissingAnalysis bool
}

// ListInterviews returns interviews newest first; Limit 0 means no limit
func (s *Store) ListInterviews(ctx context.Context, opts ListOptions) ([]models.Interview, error) {
	var (
		where []string
		args  []interface{}
	)
	if opts.Category != "" {
		args = append(args, opts.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if opts.MissingAnalysis {
		where = append(where, "(summary = '' OR embedding IS NULL)")
	}

	query := `SELECT ` + interviewColumns + ` FROM interviews`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	interviews := []models.Interview{}
	if err := s.db.SelectContext(ctx, &interviews, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list interviews: %w", err)
	}
	return interviews, nil
}

// DeleteInterview removes one interview
func (s *Store) DeleteInterview(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM interviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete interview: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete interview: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("interview %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteInterviews removes the given interviews and returns how many were deleted
func (s *Store) DeleteInterviews(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM interviews WHERE id = ANY($1::uuid[])`, pq.Array(strs))
	if err != nil {
		return 0, fmt.Errorf("failed to delete interviews: %w", err)
	}
	return res.RowsAffected()
}

// FileNameExists reports whether a Drive file with this name was already stored
func (s *Store) FileNameExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM interviews WHERE file_name = $1)`
	if err := s.db.GetContext(ctx, &exists, query, name); err != nil {
		return false, fmt.Errorf("failed to check file name: %w", err)
	}
	return exists, nil
}

// ExistingFileNames returns the subset of names that are already stored
func (s *Store) ExistingFileNames(ctx context.Context, names []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(names) == 0 {
		return existing, nil
	}

	var found []string
	query := `SELECT DISTINCT file_name FROM interviews WHERE file_name = ANY($1)`
	if err := s.db.SelectContext(ctx, &found, query, pq.Array(names)); err != nil {
		return nil, fmt.Errorf("failed to look up file names: %w", err)
	}
	for _, name := range found {
		existing[name] = true
	}
	return existing, nil
}

// MeetingKeyExists reports whether an extension capture with this key was already stored
func (s *Store) MeetingKeyExists(ctx context.Context, key string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM interviews WHERE meeting_key = $1)`
	if err := s.db.GetContext(ctx, &exists, query, key); err != nil {
		return false, fmt.Errorf("failed to check meeting key: %w", err)
	}
	return exists, nil
}

// UpdateAnalysis stores a fresh analysis and embedding for an interview
func (s *Store) UpdateAnalysis(ctx context.Context, iv *models.Interview, embedding []float32) error {
	iv.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE interviews SET
			summary = $2, candidate_name = $3, candidate_email = $4, interviewer = $5,
			rating = $6, category = $7, embedding = COALESCE($8, embedding), updated_at = $9
		WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query,
		iv.ID, iv.Summary, iv.CandidateName, iv.CandidateEmail, iv.Interviewer,
		iv.Rating, iv.Category, vectorArg(embedding), iv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update analysis: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("interview %s: %w", iv.ID, ErrNotFound)
	}
	return nil
}

// MarkFeedbackSubmitted records the Lever opportunity and submission time
func (s *Store) MarkFeedbackSubmitted(ctx context.Context, id uuid.UUID, opportunityID string, at time.Time) error {
	query := `
		UPDATE interviews
		SET lever_opportunity_id = $2, feedback_submitted_at = $3, updated_at = $3
		WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, id, opportunityID, at)
	if err != nil {
		return fmt.Errorf("failed to mark feedback submitted: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("interview %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetEmbedding returns the stored embedding for an interview
func (s *Store) GetEmbedding(ctx context.Context, id uuid.UUID) ([]float32, error) {
	var vec pgvector.Vector
	query := `SELECT embedding FROM interviews WHERE id = $1 AND embedding IS NOT NULL`
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&vec); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("interview %s: %w", id, ErrNoEmbedding)
		}
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}
	return vec.Slice(), nil
}

// MatchInterviews runs the match_interviews database function
func (s *Store) MatchInterviews(ctx context.Context, embedding []float32, threshold float64, count int) ([]models.SimilarInterview, error) {
	if len(embedding) == 0 {
		return nil, errors.New("search vector cannot be empty")
	}

	matches := []models.SimilarInterview{}
	query := `SELECT id, candidate_name, title, summary, similarity FROM match_interviews($1, $2, $3)`
	if err := s.db.SelectContext(ctx, &matches, query, pgvector.NewVector(embedding), threshold, count); err != nil {
		return nil, fmt.Errorf("failed to match interviews: %w", err)
	}
	return matches, nil
}

// DedupRow is the minimal projection needed to plan a dedupe
type DedupRow struct {
	ID               uuid.UUID `db:"id"`
	FileName         string    `db:"file_name"`
	MeetingKey       string    `db:"meeting_key"`
	TranscriptLength int       `db:"transcript_length"`
	CreatedAt        time.Time `db:"created_at"`
}

// Key mirrors models.Interview.DedupKey
func (r DedupRow) Key() string {
	return models.Interview{FileName: r.FileName, MeetingKey: r.MeetingKey}.DedupKey()
}

// DuplicateRows returns every row whose file name or meeting key is shared with another row
func (s *Store) DuplicateRows(ctx context.Context) ([]DedupRow, error) {
	query := `
		SELECT id, file_name, meeting_key, length(transcript) AS transcript_length, created_at
		FROM interviews
		WHERE (file_name <> '' AND file_name IN (
				SELECT file_name FROM interviews WHERE file_name <> ''
				GROUP BY file_name HAVING count(*) > 1))
		   OR (file_name = '' AND meeting_key <> '' AND meeting_key IN (
				SELECT meeting_key FROM interviews WHERE file_name = '' AND meeting_key <> ''
				GROUP BY meeting_key HAVING count(*) > 1))
		ORDER BY created_at`

	rows := []DedupRow{}
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to find duplicates: %w", err)
	}
	return rows, nil
}

// vectorArg converts an embedding into a nullable query argument
func vectorArg(embedding []float32) interface{} {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}

// isUniqueViolation reports whether err is a Postgres unique_violation
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
