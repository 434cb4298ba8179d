package lever

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/fmuoria/interview-notes/internal/models"
)

// Field types used by feedback templates
const (
	FieldScoreSystem = "score-system"
	FieldTextarea    = "textarea"
	FieldText        = "text"
)

// Opportunity is a candidate's application in Lever
type Opportunity struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Emails    []string  `json:"emails"`
	CreatedAt int64     `json:"createdAt"`
	Archived  *Archived `json:"archived"`
}

// Archived is set on closed opportunities
type Archived struct {
	ArchivedAt int64  `json:"archivedAt"`
	Reason     string `json:"reason"`
}

// FeedbackTemplate is an interview feedback form definition
type FeedbackTemplate struct {
	ID           string          `json:"id"`
	Text         string          `json:"text"`
	Instructions string          `json:"instructions,omitempty"`
	Fields       []TemplateField `json:"fields"`
}

// TemplateField is one question on a feedback template
type TemplateField struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Text     string `json:"text"`
	Required bool   `json:"required"`
}

// FeedbackForm is the body of a feedback submission
type FeedbackForm struct {
	BaseTemplateID string       `json:"baseTemplateId"`
	FieldValues    []FieldValue `json:"fieldValues"`
	CompletedAt    int64        `json:"completedAt,omitempty"`
}

// FieldValue answers one template field
type FieldValue struct {
	ID    string      `json:"id"`
	Value interface{} `json:"value"`
}

// FindOpportunities returns the candidate's opportunities, open ones first and
// newest first within each group
func (c *Client) FindOpportunities(ctx context.Context, email string) ([]Opportunity, error) {
	if email == "" {
		return nil, fmt.Errorf("candidate email is required: %w", ErrNoOpportunity)
	}

	var all []Opportunity
	query := url.Values{"email": {email}, "limit": {"100"}}
	for {
		env, err := c.doRequest(ctx, requestOptions{Method: http.MethodGet, Path: "/opportunities", Query: query})
		if err != nil {
			return nil, fmt.Errorf("failed to find opportunities: %w", err)
		}

		var page []Opportunity
		if err := json.Unmarshal(env.Data, &page); err != nil {
			return nil, fmt.Errorf("failed to decode opportunities: %w", err)
		}
		all = append(all, page...)

		if !env.HasNext || env.Next == "" {
			break
		}
		query.Set("offset", env.Next)
	}

	if len(all) == 0 {
		return nil, fmt.Errorf("%s: %w", email, ErrNoOpportunity)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if (all[i].Archived == nil) != (all[j].Archived == nil) {
			return all[i].Archived == nil
		}
		return all[i].CreatedAt > all[j].CreatedAt
	})
	return all, nil
}

// ListFeedbackTemplates returns the account's feedback templates
func (c *Client) ListFeedbackTemplates(ctx context.Context) ([]FeedbackTemplate, error) {
	env, err := c.doRequest(ctx, requestOptions{Method: http.MethodGet, Path: "/feedback_templates"})
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback templates: %w", err)
	}

	templates := []FeedbackTemplate{}
	if err := json.Unmarshal(env.Data, &templates); err != nil {
		return nil, fmt.Errorf("failed to decode feedback templates: %w", err)
	}
	return templates, nil
}

// GetFeedbackTemplate returns one template by ID
func (c *Client) GetFeedbackTemplate(ctx context.Context, id string) (*FeedbackTemplate, error) {
	env, err := c.doRequest(ctx, requestOptions{Method: http.MethodGet, Path: "/feedback_templates/" + url.PathEscape(id)})
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback template: %w", err)
	}

	var tmpl FeedbackTemplate
	if err := json.Unmarshal(env.Data, &tmpl); err != nil {
		return nil, fmt.Errorf("failed to decode feedback template: %w", err)
	}
	return &tmpl, nil
}

// SubmitFeedback files a completed feedback form on an opportunity as the given Lever user
func (c *Client) SubmitFeedback(ctx context.Context, opportunityID, performAs string, form FeedbackForm) error {
	if opportunityID == "" || performAs == "" {
		return fmt.Errorf("opportunity ID and perform_as user are required")
	}

	_, err := c.doRequest(ctx, requestOptions{
		Method: http.MethodPost,
		Path:   "/opportunities/" + url.PathEscape(opportunityID) + "/feedback",
		Query:  url.Values{"perform_as": {performAs}},
		Body:   form,
	})
	if err != nil {
		return fmt.Errorf("failed to submit feedback: %w", err)
	}
	return nil
}

// BuildFeedbackForm fills a template: the rating goes into the score-system
// field and the notes into the first free-text field
func BuildFeedbackForm(tmpl *FeedbackTemplate, notes string, rating models.Rating, completedAt time.Time) FeedbackForm {
	form := FeedbackForm{
		BaseTemplateID: tmpl.ID,
		FieldValues:    []FieldValue{},
	}
	if !completedAt.IsZero() {
		form.CompletedAt = completedAt.UnixMilli()
	}

	notesPlaced := false
	for _, f := range tmpl.Fields {
		switch f.Type {
		case FieldScoreSystem:
			if score := rating.Score(); score > 0 {
				form.FieldValues = append(form.FieldValues, FieldValue{ID: f.ID, Value: score})
			}
		case FieldTextarea, FieldText:
			if !notesPlaced && notes != "" {
				form.FieldValues = append(form.FieldValues, FieldValue{ID: f.ID, Value: notes})
				notesPlaced = true
			}
		}
	}
	return form
}
