package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fmuoria/interview-notes/internal/analysis"
	"github.com/fmuoria/interview-notes/internal/ingestion"
	"github.com/fmuoria/interview-notes/internal/lever"
	"github.com/fmuoria/interview-notes/internal/llm"
	"github.com/fmuoria/interview-notes/internal/models"
	"github.com/fmuoria/interview-notes/internal/store"
)

const (
	defaultMatchCount          = 5
	maxMatchCount              = 50
	defaultSimilarityThreshold = 0.5
)

var (
	// ErrImportInProgress is returned when a Drive import is already running
	ErrImportInProgress = errors.New("a drive import is already in progress")
	// ErrInvalidInput marks caller errors
	ErrInvalidInput = errors.New("invalid input")
	// ErrDriveNotConfigured is returned when Google OAuth is not set up
	ErrDriveNotConfigured = errors.New("google drive is not configured")
	// ErrLeverNotConfigured is returned when no Lever API key is set
	ErrLeverNotConfigured = errors.New("lever is not configured")
)

// ProgressCallback is called to report progress during processing
type ProgressCallback func(current, total int, message string)

// Store is the persistence the agent needs
type Store interface {
	CreateInterview(ctx context.Context, iv *models.Interview, embedding []float32) error
	GetInterview(ctx context.Context, id uuid.UUID) (*models.Interview, error)
	ListInterviews(ctx context.Context, opts store.ListOptions) ([]models.Interview, error)
	DeleteInterview(ctx context.Context, id uuid.UUID) error
	DeleteInterviews(ctx context.Context, ids []uuid.UUID) (int64, error)
	ExistingFileNames(ctx context.Context, names []string) (map[string]bool, error)
	MeetingKeyExists(ctx context.Context, key string) (bool, error)
	UpdateAnalysis(ctx context.Context, iv *models.Interview, embedding []float32) error
	MarkFeedbackSubmitted(ctx context.Context, id uuid.UUID, opportunityID string, at time.Time) error
	GetEmbedding(ctx context.Context, id uuid.UUID) ([]float32, error)
	MatchInterviews(ctx context.Context, embedding []float32, threshold float64, count int) ([]models.SimilarInterview, error)
	DuplicateRows(ctx context.Context) ([]store.DedupRow, error)
	GetSettings(ctx context.Context) (map[string]string, error)
	PutSettings(ctx context.Context, values map[string]string) error
}

// Analyzer summarizes and classifies a transcript
type Analyzer interface {
	Analyze(ctx context.Context, title, transcript string) (models.Analysis, error)
}

// DriveSource lists and reads transcript files
type DriveSource interface {
	ListFiles(ctx context.Context, folderID string) ([]ingestion.DriveFile, error)
	FetchText(ctx context.Context, file ingestion.DriveFile) (string, error)
}

// DriveFactory builds an authorized Drive source on demand, since the OAuth
// grant may happen after startup
type DriveFactory func(ctx context.Context) (DriveSource, error)

// LeverClient is the subset of the Lever API used for feedback
type LeverClient interface {
	FindOpportunities(ctx context.Context, email string) ([]lever.Opportunity, error)
	ListFeedbackTemplates(ctx context.Context) ([]lever.FeedbackTemplate, error)
	GetFeedbackTemplate(ctx context.Context, id string) (*lever.FeedbackTemplate, error)
	SubmitFeedback(ctx context.Context, opportunityID, performAs string, form lever.FeedbackForm) error
}

// Dependencies wires an InterviewAgent. Drive and Lever are optional.
type Dependencies struct {
	Store    Store
	Analyzer Analyzer
	Embedder llm.Embedder
	Drive    DriveFactory
	Lever    LeverClient
	// DriveFolderID is used when no folder is stored in settings
	DriveFolderID       string
	SimilarityThreshold float64
}

// InterviewAgent orchestrates ingestion, analysis, search and feedback
type InterviewAgent struct {
	store     Store
	analyzer  Analyzer
	embedder  llm.Embedder
	newDrive  DriveFactory
	lever     LeverClient
	folderID  string
	threshold float64
	now       func() time.Time

	importMu   sync.Mutex
	mu         sync.RWMutex
	progressCb ProgressCallback
}

// NewInterviewAgent creates a new interview agent
func NewInterviewAgent(deps Dependencies) *InterviewAgent {
	threshold := deps.SimilarityThreshold
	if threshold <= 0 {
		threshold = defaultSimilarityThreshold
	}
	return &InterviewAgent{
		store:     deps.Store,
		analyzer:  deps.Analyzer,
		embedder:  deps.Embedder,
		newDrive:  deps.Drive,
		lever:     deps.Lever,
		folderID:  deps.DriveFolderID,
		threshold: threshold,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetProgressCallback sets the progress callback function
func (a *InterviewAgent) SetProgressCallback(cb ProgressCallback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.progressCb = cb
}

// reportProgress calls the progress callback if set
func (a *InterviewAgent) reportProgress(current, total int, message string) {
	a.mu.RLock()
	cb := a.progressCb
	a.mu.RUnlock()

	if cb != nil {
		cb(current, total, message)
	}
}

// ListInterviews returns stored interviews newest first
func (a *InterviewAgent) ListInterviews(ctx context.Context, opts store.ListOptions) ([]models.Interview, error) {
	return a.store.ListInterviews(ctx, opts)
}

// GetInterview returns one interview
func (a *InterviewAgent) GetInterview(ctx context.Context, id uuid.UUID) (*models.Interview, error) {
	return a.store.GetInterview(ctx, id)
}

// DeleteInterview removes one interview
func (a *InterviewAgent) DeleteInterview(ctx context.Context, id uuid.UUID) error {
	if err := a.store.DeleteInterview(ctx, id); err != nil {
		return err
	}
	slog.Info("Interview deleted", "id", id)
	return nil
}

// analyze fills the AI fields of iv and returns its embedding. On error iv
// keeps whatever was filled before the failure.
func (a *InterviewAgent) analyze(ctx context.Context, iv *models.Interview) ([]float32, error) {
	result, err := a.analyzer.Analyze(ctx, iv.Title, iv.Transcript)
	if err != nil {
		if iv.CandidateName == "" {
			iv.CandidateName = ingestion.CandidateFromTitle(iv.Title)
		}
		return nil, fmt.Errorf("failed to analyze transcript: %w", err)
	}

	iv.Summary = analysis.ComposeSummary(result)
	iv.CandidateName = result.CandidateName
	if iv.CandidateName == "" {
		iv.CandidateName = ingestion.CandidateFromTitle(iv.Title)
	}
	iv.CandidateEmail = result.CandidateEmail
	iv.Interviewer = result.Interviewer
	iv.Rating = result.Rating
	iv.Category = result.Category

	embedding, err := a.embedder.Embed(ctx, analysis.EmbeddingText(*iv))
	if err != nil {
		return nil, fmt.Errorf("failed to embed interview: %w", err)
	}
	return embedding, nil
}
