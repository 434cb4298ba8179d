package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/fmuoria/interview-notes/internal/export"
	"github.com/fmuoria/interview-notes/internal/models"
	"github.com/fmuoria/interview-notes/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// handleIngestTranscript stores a transcript posted by the browser extension
func (s *Server) handleIngestTranscript(w http.ResponseWriter, r *http.Request) {
	var payload models.TranscriptPayload
	if !s.decodeBody(w, r, &payload) {
		return
	}

	iv, err := s.service.IngestTranscript(r.Context(), payload)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, iv)
}

// handleListInterviews returns a page of interviews
func (s *Server) handleListInterviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := intParam(r, "limit", defaultPageSize)
	if err != nil || limit < 1 || limit > maxPageSize {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxPageSize))
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil || offset < 0 {
		s.respondError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	opts := store.ListOptions{
		Limit:           limit,
		Offset:          offset,
		Category:        models.Category(q.Get("category")),
		MissingAnalysis: q.Get("missing") == "true",
	}

	interviews, err := s.service.ListInterviews(r.Context(), opts)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"interviews": interviews,
		"limit":      limit,
		"offset":     offset,
	})
}

// handleGetInterview returns one interview
func (s *Server) handleGetInterview(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	iv, err := s.service.GetInterview(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, iv)
}

// handleDeleteInterview removes one interview
func (s *Server) handleDeleteInterview(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if err := s.service.DeleteInterview(r.Context(), id); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReparse reruns analysis for one interview
func (s *Server) handleReparse(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	iv, err := s.service.Reparse(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, iv)
}

// handleReparseAll reruns analysis for every interview, or only incomplete ones with ?missing=true
func (s *Server) handleReparseAll(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.ReparseAll(r.Context(), r.URL.Query().Get("missing") == "true")
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

// handleSimilar returns interviews similar to the given one
func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	n, err := intParam(r, "n", 0)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "n must be an integer")
		return
	}

	similar, err := s.service.FindSimilar(r.Context(), id, n)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, similar)
}

// handleSearch runs a semantic search over interviews
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "n", 0)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "n must be an integer")
		return
	}

	results, err := s.service.Search(r.Context(), r.URL.Query().Get("q"), n)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, results)
}

// handleDriveImport imports new transcripts from the Drive folder
func (s *Server) handleDriveImport(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.ImportFromDrive(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

// handleDedupe removes duplicate rows; ?dry_run=true only reports them
func (s *Server) handleDedupe(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.Dedupe(r.Context(), r.URL.Query().Get("dry_run") == "true")
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.service.GetSettings(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.Settings
	if !s.decodeBody(w, r, &settings) {
		return
	}

	updated, err := s.service.UpdateSettings(r.Context(), settings)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleLeverTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.service.ListFeedbackTemplates(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, templates)
}

// handleSubmitFeedback pushes interview feedback to Lever
func (s *Server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req models.FeedbackRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	iv, err := s.service.SubmitFeedback(r.Context(), id, req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, iv)
}

// handleExport downloads every interview as an Excel workbook
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	interviews, err := s.service.ListInterviews(r.Context(), store.ListOptions{})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, interviews); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(time.Now())))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// decodeBody reads a JSON request body, responding 400 on failure
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return false
	}
	return true
}

// pathID parses the {id} path segment, responding 400 on failure
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid interview id")
		return uuid.Nil, false
	}
	return id, true
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
