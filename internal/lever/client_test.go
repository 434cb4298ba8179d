package lever

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmuoria/interview-notes/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("test-key", srv.URL+"/")
	c.initialBackoff = time.Millisecond
	return c
}

func writeData(t *testing.T, w http.ResponseWriter, data interface{}, next string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	body := map[string]interface{}{"data": data}
	if next != "" {
		body["hasNext"] = true
		body["next"] = next
	}
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestFindOpportunities(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "test-key", user)
		assert.Equal(t, "/opportunities", r.URL.Path)
		assert.Equal(t, "jane@example.com", r.URL.Query().Get("email"))

		if r.URL.Query().Get("offset") == "" {
			writeData(t, w, []Opportunity{
				{ID: "old", CreatedAt: 100},
				{ID: "archived", CreatedAt: 300, Archived: &Archived{Reason: "hired"}},
			}, "cursor-2")
			return
		}
		writeData(t, w, []Opportunity{{ID: "new", CreatedAt: 200}}, "")
	})

	opps, err := c.FindOpportunities(context.Background(), "jane@example.com")
	require.NoError(t, err)
	require.Len(t, opps, 3)

	assert.Equal(t, "new", opps[0].ID)
	assert.Equal(t, "old", opps[1].ID)
	assert.Equal(t, "archived", opps[2].ID)
}

func TestFindOpportunities_None(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeData(t, w, []Opportunity{}, "")
	})

	_, err := c.FindOpportunities(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNoOpportunity)

	_, err = c.FindOpportunities(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoOpportunity)
}

func TestDoRequest_RetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeData(t, w, []FeedbackTemplate{{ID: "tmpl-1", Text: "Onsite"}}, "")
	})

	templates, err := c.ListFeedbackTemplates(context.Background())
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "tmpl-1", templates[0].ID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDoRequest_ClientErrorIsPermanent(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad template", http.StatusBadRequest)
	})

	_, err := c.GetFeedbackTemplate(context.Background(), "tmpl-1")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "bad template", apiErr.Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSubmitFeedback(t *testing.T) {
	var got FeedbackForm
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/opportunities/opp-1/feedback", r.URL.Path)
		assert.Equal(t, "user-1", r.URL.Query().Get("perform_as"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeData(t, w, map[string]string{"id": "fb-1"}, "")
	})

	form := FeedbackForm{BaseTemplateID: "tmpl-1", FieldValues: []FieldValue{{ID: "f1", Value: "notes"}}}
	require.NoError(t, c.SubmitFeedback(context.Background(), "opp-1", "user-1", form))
	assert.Equal(t, "tmpl-1", got.BaseTemplateID)
	require.Len(t, got.FieldValues, 1)

	assert.Error(t, c.SubmitFeedback(context.Background(), "", "user-1", form))
}

func TestBuildFeedbackForm(t *testing.T) {
	tmpl := &FeedbackTemplate{
		ID: "tmpl-1",
		Fields: []TemplateField{
			{ID: "rating", Type: FieldScoreSystem},
			{ID: "notes", Type: FieldTextarea},
			{ID: "other", Type: FieldText},
			{ID: "date", Type: "date"},
		},
	}
	completed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	form := BuildFeedbackForm(tmpl, "Strong systems design", models.RatingStrongHire, completed)

	assert.Equal(t, "tmpl-1", form.BaseTemplateID)
	assert.Equal(t, completed.UnixMilli(), form.CompletedAt)
	require.Len(t, form.FieldValues, 2)
	assert.Equal(t, FieldValue{ID: "rating", Value: 4}, form.FieldValues[0])
	assert.Equal(t, FieldValue{ID: "notes", Value: "Strong systems design"}, form.FieldValues[1])

	unrated := BuildFeedbackForm(tmpl, "", models.RatingNone, time.Time{})
	assert.Empty(t, unrated.FieldValues)
	assert.Zero(t, unrated.CompletedAt)
}
