package models

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies how a transcript reached the system
type Source string

const (
	SourceDrive     Source = "drive"
	SourceExtension Source = "extension"
)

// Rating is the hiring recommendation extracted from a transcript
type Rating string

const (
	RatingNone         Rating = ""
	RatingStrongNoHire Rating = "strong_no_hire"
	RatingNoHire       Rating = "no_hire"
	RatingHire         Rating = "hire"
	RatingStrongHire   Rating = "strong_hire"
)

// Category is the AI classification of a meeting
type Category string

const (
	CategoryInterview Category = "interview"
	CategoryScreen    Category = "screen"
	CategoryDebrief   Category = "debrief"
	CategoryOther     Category = "other"
)

// Interview is one stored meeting transcript with its analysis
type Interview struct {
	ID                  uuid.UUID  `json:"id" db:"id"`
	Source              Source     `json:"source" db:"source"`
	FileName            string     `json:"file_name,omitempty" db:"file_name"`
	DriveFileID         string     `json:"drive_file_id,omitempty" db:"drive_file_id"`
	MeetingKey          string     `json:"meeting_key,omitempty" db:"meeting_key"`
	Title               string     `json:"title" db:"title"`
	MeetingDate         *time.Time `json:"meeting_date,omitempty" db:"meeting_date"`
	Transcript          string     `json:"transcript" db:"transcript"`
	Summary             string     `json:"summary" db:"summary"`
	CandidateName       string     `json:"candidate_name" db:"candidate_name"`
	CandidateEmail      string     `json:"candidate_email,omitempty" db:"candidate_email"`
	Interviewer         string     `json:"interviewer,omitempty" db:"interviewer"`
	Rating              Rating     `json:"rating" db:"rating"`
	Category            Category   `json:"category" db:"category"`
	LeverOpportunityID  string     `json:"lever_opportunity_id,omitempty" db:"lever_opportunity_id"`
	FeedbackSubmittedAt *time.Time `json:"feedback_submitted_at,omitempty" db:"feedback_submitted_at"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

// DedupKey returns the key used to detect duplicate rows
func (i Interview) DedupKey() string {
	if i.FileName != "" {
		return "file:" + i.FileName
	}
	if i.MeetingKey != "" {
		return "meet:" + i.MeetingKey
	}
	return ""
}

// Analysis is the structured output of summarizing a transcript
type Analysis struct {
	CandidateName  string   `json:"candidate_name"`
	CandidateEmail string   `json:"candidate_email"`
	Interviewer    string   `json:"interviewer"`
	Summary        string   `json:"summary"`
	Rating         Rating   `json:"rating"`
	Category       Category `json:"category"`
	Strengths      []string `json:"strengths"`
	Concerns       []string `json:"concerns"`
}

// TranscriptPayload is what the browser extension posts after a meeting
type TranscriptPayload struct {
	MeetingCode string    `json:"meeting_code"`
	Title       string    `json:"title"`
	Transcript  string    `json:"transcript"`
	StartedAt   time.Time `json:"started_at"`
}

// SimilarInterview is one row returned by the similarity search
type SimilarInterview struct {
	ID            uuid.UUID `json:"id" db:"id"`
	CandidateName string    `json:"candidate_name" db:"candidate_name"`
	Title         string    `json:"title" db:"title"`
	Summary       string    `json:"summary" db:"summary"`
	Similarity    float64   `json:"similarity" db:"similarity"`
}

// DuplicateGroup is a set of rows sharing the same dedup key
type DuplicateGroup struct {
	Key      string      `json:"key"`
	Keep     uuid.UUID   `json:"keep"`
	Remove   []uuid.UUID `json:"remove"`
	RowCount int         `json:"row_count"`
}

// DedupeReport summarizes a dedupe run
type DedupeReport struct {
	Groups  []DuplicateGroup `json:"groups"`
	Removed int              `json:"removed"`
	DryRun  bool             `json:"dry_run"`
}

// ImportResult summarizes a Drive import run
type ImportResult struct {
	Listed   int      `json:"listed"`
	Skipped  int      `json:"skipped"`
	Imported int      `json:"imported"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// ReparseResult summarizes a bulk reparse run
type ReparseResult struct {
	Total   int      `json:"total"`
	Updated int      `json:"updated"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// Settings holds the recruiter-editable runtime settings
type Settings struct {
	DriveFolderID   string `json:"drive_folder_id"`
	LeverPerformAs  string `json:"lever_perform_as"`
	LeverTemplateID string `json:"lever_template_id"`
	PollEnabled     bool   `json:"poll_enabled"`
}

// FeedbackRequest is the recruiter's request to push feedback to Lever
type FeedbackRequest struct {
	OpportunityID string `json:"opportunity_id"`
	TemplateID    string `json:"template_id"`
	PerformAs     string `json:"perform_as"`
	Notes         string `json:"notes"`
	Rating        Rating `json:"rating"`
}

// Valid reports whether r is a known rating, including the empty rating
func (r Rating) Valid() bool {
	switch r {
	case RatingNone, RatingStrongNoHire, RatingNoHire, RatingHire, RatingStrongHire:
		return true
	}
	return false
}

// Label returns the human readable form used in reports and Lever
func (r Rating) Label() string {
	switch r {
	case RatingStrongNoHire:
		return "Strong No Hire"
	case RatingNoHire:
		return "No Hire"
	case RatingHire:
		return "Hire"
	case RatingStrongHire:
		return "Strong Hire"
	default:
		return "Unrated"
	}
}

// Score maps a rating onto Lever's 1-4 score system, 0 when unrated
func (r Rating) Score() int {
	switch r {
	case RatingStrongNoHire:
		return 1
	case RatingNoHire:
		return 2
	case RatingHire:
		return 3
	case RatingStrongHire:
		return 4
	default:
		return 0
	}
}
