package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fmuoria/interview-notes/internal/llm"
	"github.com/fmuoria/interview-notes/internal/models"
)

// maxTranscriptChars caps the transcript sent to the model; long calls are
// cut from the middle so both the intros and the closing verdict survive
const maxTranscriptChars = 120000

// Analyzer summarizes and classifies transcripts using an LLM
type Analyzer struct {
	generator llm.Generator
}

// NewAnalyzer creates a new analyzer instance
func NewAnalyzer(generator llm.Generator) *Analyzer {
	return &Analyzer{
		generator: generator,
	}
}

// Analyze summarizes a meeting transcript and extracts candidate details
func (a *Analyzer) Analyze(ctx context.Context, title, transcript string) (models.Analysis, error) {
	transcript = strings.TrimSpace(sanitizeUTF8(transcript))
	if transcript == "" {
		return models.Analysis{}, fmt.Errorf("transcript is empty")
	}

	prompt := a.buildAnalysisPrompt(sanitizeUTF8(title), truncateMiddle(transcript, maxTranscriptChars))

	response, err := a.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return models.Analysis{}, fmt.Errorf("failed to get LLM response: %w", err)
	}

	result, err := parseAnalysis(response)
	if err != nil {
		return models.Analysis{}, fmt.Errorf("failed to parse analysis: %w", err)
	}

	return result, nil
}

// buildAnalysisPrompt creates the summarize/classify prompt for one transcript
func (a *Analyzer) buildAnalysisPrompt(title, transcript string) string {
	var sb strings.Builder

	sb.WriteString("You are an experienced technical recruiter reviewing the transcript of a Google Meet call. ")
	sb.WriteString("Summarize it for the hiring team and extract structured details.\n\n")

	if title != "" {
		sb.WriteString(fmt.Sprintf("## MEETING TITLE\n%s\n\n", title))
	}

	sb.WriteString("## TRANSCRIPT\n")
	sb.WriteString(transcript)
	sb.WriteString("\n\n")

	sb.WriteString("## INSTRUCTIONS\n")
	sb.WriteString("Identify the candidate (the person being interviewed, not the interviewer). ")
	sb.WriteString("If the call is not about a candidate, leave candidate fields empty.\n\n")
	sb.WriteString("Provide your answer in the following JSON format:\n")
	sb.WriteString("{\n")
	sb.WriteString(`  "candidate_name": "<full name or empty>",` + "\n")
	sb.WriteString(`  "candidate_email": "<email if mentioned, else empty>",` + "\n")
	sb.WriteString(`  "interviewer": "<interviewer name(s), comma separated>",` + "\n")
	sb.WriteString(`  "category": "<interview | screen | debrief | other>",` + "\n")
	sb.WriteString(`  "rating": "<strong_no_hire | no_hire | hire | strong_hire | empty if no signal>",` + "\n")
	sb.WriteString(`  "summary": "<4-8 sentence summary of the conversation>",` + "\n")
	sb.WriteString(`  "strengths": ["<strength>", ...],` + "\n")
	sb.WriteString(`  "concerns": ["<concern>", ...]` + "\n")
	sb.WriteString("}\n\n")

	sb.WriteString("CATEGORY GUIDE:\n")
	sb.WriteString("- interview: a technical or behavioral interview with a candidate.\n")
	sb.WriteString("- screen: a short recruiter or hiring-manager screen with a candidate.\n")
	sb.WriteString("- debrief: interviewers discussing a candidate without the candidate present.\n")
	sb.WriteString("- other: anything else.\n\n")
	sb.WriteString("Only give a rating when the transcript contains enough evidence. ")
	sb.WriteString("Return ONLY the JSON object, no additional text.\n")

	return sb.String()
}

// parseAnalysis extracts the analysis from an LLM response
func parseAnalysis(response string) (models.Analysis, error) {
	// Find JSON in response (in case there's extra text or a code fence)
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx < startIdx {
		return models.Analysis{}, fmt.Errorf("no JSON found in response")
	}

	var raw struct {
		CandidateName  string   `json:"candidate_name"`
		CandidateEmail string   `json:"candidate_email"`
		Interviewer    string   `json:"interviewer"`
		Summary        string   `json:"summary"`
		Rating         string   `json:"rating"`
		Category       string   `json:"category"`
		Strengths      []string `json:"strengths"`
		Concerns       []string `json:"concerns"`
	}
	if err := json.Unmarshal([]byte(response[startIdx:endIdx+1]), &raw); err != nil {
		return models.Analysis{}, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	if strings.TrimSpace(raw.Summary) == "" {
		return models.Analysis{}, fmt.Errorf("response has no summary")
	}

	return models.Analysis{
		CandidateName:  strings.TrimSpace(raw.CandidateName),
		CandidateEmail: strings.ToLower(strings.TrimSpace(raw.CandidateEmail)),
		Interviewer:    strings.TrimSpace(raw.Interviewer),
		Summary:        strings.TrimSpace(raw.Summary),
		Rating:         NormalizeRating(raw.Rating),
		Category:       NormalizeCategory(raw.Category),
		Strengths:      compact(raw.Strengths),
		Concerns:       compact(raw.Concerns),
	}, nil
}

// NormalizeRating maps free-form model or user ratings onto the rating vocabulary
func NormalizeRating(s string) models.Rating {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", " ", "_", " ").Replace(key)
	key = strings.Join(strings.Fields(key), " ")

	switch key {
	case "strong no hire", "strong no", "definitely not", "1":
		return models.RatingStrongNoHire
	case "no hire", "no", "lean no", "2":
		return models.RatingNoHire
	case "hire", "yes", "lean yes", "3":
		return models.RatingHire
	case "strong hire", "strong yes", "definitely", "4":
		return models.RatingStrongHire
	default:
		return models.RatingNone
	}
}

// NormalizeCategory maps a model classification onto the category vocabulary
func NormalizeCategory(s string) models.Category {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "interview", "technical interview", "behavioral interview":
		return models.CategoryInterview
	case "screen", "phone screen", "recruiter screen":
		return models.CategoryScreen
	case "debrief":
		return models.CategoryDebrief
	default:
		return models.CategoryOther
	}
}

// ComposeSummary renders the stored summary with strengths and concerns appended
func ComposeSummary(a models.Analysis) string {
	var sb strings.Builder
	sb.WriteString(a.Summary)

	if len(a.Strengths) > 0 {
		sb.WriteString("\n\nStrengths:\n")
		for _, s := range a.Strengths {
			sb.WriteString("- " + s + "\n")
		}
	}
	if len(a.Concerns) > 0 {
		if len(a.Strengths) == 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("\nConcerns:\n")
		for _, c := range a.Concerns {
			sb.WriteString("- " + c + "\n")
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

// EmbeddingText is the text embedded for similarity search
func EmbeddingText(iv models.Interview) string {
	var parts []string
	if iv.Title != "" {
		parts = append(parts, iv.Title)
	}
	if iv.CandidateName != "" {
		parts = append(parts, "Candidate: "+iv.CandidateName)
	}
	if iv.Summary != "" {
		parts = append(parts, iv.Summary)
	} else {
		parts = append(parts, truncateMiddle(iv.Transcript, 8000))
	}
	return sanitizeUTF8(strings.Join(parts, "\n"))
}

// sanitizeUTF8 replaces invalid UTF-8 sequences so the text can be sent to the API
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "�")
}

// truncateMiddle keeps the head and tail of s when it exceeds limit bytes
func truncateMiddle(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	const marker = "\n[... transcript truncated ...]\n"
	half := (limit - len(marker)) / 2
	head := strings.ToValidUTF8(s[:half], "")
	tail := strings.ToValidUTF8(s[len(s)-half:], "")
	return head + marker + tail
}

func compact(items []string) []string {
	var out []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// FeedbackNotes renders the free-text feedback pushed to the ATS
func FeedbackNotes(iv models.Interview, notes string) string {
	var sb strings.Builder
	if notes = strings.TrimSpace(notes); notes != "" {
		sb.WriteString(notes)
		sb.WriteString("\n\n")
	}
	sb.WriteString("AI summary")
	if iv.Title != "" {
		sb.WriteString(" of \"" + iv.Title + "\"")
	}
	sb.WriteString(":\n")
	sb.WriteString(iv.Summary)
	return sb.String()
}
