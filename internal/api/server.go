package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/fmuoria/interview-notes/internal/agent"
	"github.com/fmuoria/interview-notes/internal/ingestion"
	"github.com/fmuoria/interview-notes/internal/lever"
	"github.com/fmuoria/interview-notes/internal/models"
	"github.com/fmuoria/interview-notes/internal/store"
)

const maxBodyBytes = 10 << 20

// InterviewService is implemented by agent.InterviewAgent
type InterviewService interface {
	IngestTranscript(ctx context.Context, payload models.TranscriptPayload) (*models.Interview, error)
	ListInterviews(ctx context.Context, opts store.ListOptions) ([]models.Interview, error)
	GetInterview(ctx context.Context, id uuid.UUID) (*models.Interview, error)
	DeleteInterview(ctx context.Context, id uuid.UUID) error
	Reparse(ctx context.Context, id uuid.UUID) (*models.Interview, error)
	ReparseAll(ctx context.Context, onlyMissing bool) (models.ReparseResult, error)
	FindSimilar(ctx context.Context, id uuid.UUID, n int) ([]models.SimilarInterview, error)
	Search(ctx context.Context, query string, n int) ([]models.SimilarInterview, error)
	ImportFromDrive(ctx context.Context) (models.ImportResult, error)
	Dedupe(ctx context.Context, dryRun bool) (models.DedupeReport, error)
	GetSettings(ctx context.Context) (models.Settings, error)
	UpdateSettings(ctx context.Context, settings models.Settings) (models.Settings, error)
	ListFeedbackTemplates(ctx context.Context) ([]lever.FeedbackTemplate, error)
	SubmitFeedback(ctx context.Context, id uuid.UUID, req models.FeedbackRequest) (*models.Interview, error)
}

// Authorizer runs the Google consent flow
type Authorizer interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) error
}

// Pinger reports backing store health
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Server
type Options struct {
	// ExtensionToken is the bearer token the browser extension sends; empty disables the endpoint
	ExtensionToken string
	AllowedOrigins []string
	// Auth is nil when Google OAuth is not configured
	Auth   Authorizer
	Health Pinger
}

// Server handles HTTP requests
type Server struct {
	service InterviewService
	opts    Options
}

// NewServer creates a new API server
func NewServer(service InterviewService, opts Options) *Server {
	return &Server{
		service: service,
		opts:    opts,
	}
}

// Router returns the HTTP router
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	extension := cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	})(s.requireExtensionToken(http.HandlerFunc(s.handleIngestTranscript)))
	mux.Handle("POST /api/transcripts", extension)
	mux.Handle("OPTIONS /api/transcripts", extension)

	mux.HandleFunc("GET /api/interviews", s.handleListInterviews)
	mux.HandleFunc("GET /api/interviews/{id}", s.handleGetInterview)
	mux.HandleFunc("DELETE /api/interviews/{id}", s.handleDeleteInterview)
	mux.HandleFunc("POST /api/interviews/{id}/reparse", s.handleReparse)
	mux.HandleFunc("GET /api/interviews/{id}/similar", s.handleSimilar)
	mux.HandleFunc("POST /api/interviews/{id}/feedback", s.handleSubmitFeedback)
	mux.HandleFunc("POST /api/reparse", s.handleReparseAll)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("POST /api/drive/import", s.handleDriveImport)
	mux.HandleFunc("POST /api/dedupe", s.handleDedupe)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handleUpdateSettings)
	mux.HandleFunc("GET /api/lever/templates", s.handleLeverTemplates)
	mux.HandleFunc("GET /api/export", s.handleExport)

	mux.HandleFunc("GET /auth/google", s.handleGoogleAuth)
	mux.HandleFunc("GET /auth/google/callback", s.handleGoogleCallback)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	return s.loggingMiddleware(mux)
}

// handleRoot provides API information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "Interview Notes",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"POST /api/transcripts":              "Ingest a transcript from the browser extension",
			"GET /api/interviews":                "List interviews",
			"GET /api/interviews/{id}":           "Get one interview",
			"DELETE /api/interviews/{id}":        "Delete an interview",
			"POST /api/interviews/{id}/reparse":  "Rerun analysis for an interview",
			"GET /api/interviews/{id}/similar":   "Find similar interviews",
			"POST /api/interviews/{id}/feedback": "Submit feedback to Lever",
			"POST /api/reparse":                  "Rerun analysis for all interviews",
			"GET /api/search":                    "Semantic search",
			"POST /api/drive/import":             "Import transcripts from Google Drive",
			"POST /api/dedupe":                   "Remove duplicate interviews",
			"GET /api/settings":                  "Get settings",
			"PUT /api/settings":                  "Update settings",
			"GET /api/lever/templates":           "List Lever feedback templates",
			"GET /api/export":                    "Download an Excel export",
			"GET /auth/google":                   "Authorize Google Drive access",
			"GET /health":                        "Health check",
		},
	})
}

// handleHealth provides a health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.opts.Health.Ping(ctx); err != nil {
			slog.Error("Health check failed", "error", err)
			s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError sends an error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondServiceError maps domain errors onto HTTP statuses
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	s.respondError(w, status, err.Error())
}

func statusFor(err error) int {
	var leverErr *lever.APIError
	switch {
	case errors.Is(err, agent.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ingestion.ErrNotAuthorized):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrNoEmbedding),
		errors.Is(err, lever.ErrNoOpportunity):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, agent.ErrImportInProgress):
		return http.StatusConflict
	case errors.Is(err, agent.ErrDriveNotConfigured),
		errors.Is(err, agent.ErrLeverNotConfigured):
		return http.StatusServiceUnavailable
	case errors.As(err, &leverErr):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// statusRecorder captures the status written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"remote", r.RemoteAddr)
	})
}
