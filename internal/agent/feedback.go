package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/fmuoria/interview-notes/internal/analysis"
	"github.com/fmuoria/interview-notes/internal/lever"
	"github.com/fmuoria/interview-notes/internal/models"
	"github.com/fmuoria/interview-notes/internal/store"
)

// SubmitFeedback pushes an interview's feedback to Lever. Unset request
// fields fall back to stored settings and the interview's own analysis.
func (a *InterviewAgent) SubmitFeedback(ctx context.Context, id uuid.UUID, req models.FeedbackRequest) (*models.Interview, error) {
	if a.lever == nil {
		return nil, ErrLeverNotConfigured
	}
	if !req.Rating.Valid() {
		return nil, fmt.Errorf("%w: unknown rating %q", ErrInvalidInput, req.Rating)
	}

	iv, err := a.store.GetInterview(ctx, id)
	if err != nil {
		return nil, err
	}

	settings, err := a.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	performAs := firstNonEmpty(req.PerformAs, settings.LeverPerformAs)
	templateID := firstNonEmpty(req.TemplateID, settings.LeverTemplateID)
	if performAs == "" || templateID == "" {
		return nil, fmt.Errorf("%w: lever user and feedback template are required", ErrInvalidInput)
	}

	opportunityID := firstNonEmpty(req.OpportunityID, iv.LeverOpportunityID)
	if opportunityID == "" {
		opps, err := a.lever.FindOpportunities(ctx, iv.CandidateEmail)
		if err != nil {
			return nil, err
		}
		opportunityID = opps[0].ID
	}

	tmpl, err := a.lever.GetFeedbackTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	rating := req.Rating
	if rating == models.RatingNone {
		rating = iv.Rating
	}

	submittedAt := a.now()
	form := lever.BuildFeedbackForm(tmpl, analysis.FeedbackNotes(*iv, req.Notes), rating, submittedAt)
	if err := a.lever.SubmitFeedback(ctx, opportunityID, performAs, form); err != nil {
		return nil, err
	}

	if err := a.store.MarkFeedbackSubmitted(ctx, id, opportunityID, submittedAt); err != nil {
		return nil, err
	}
	iv.LeverOpportunityID = opportunityID
	iv.FeedbackSubmittedAt = &submittedAt

	slog.Info("Feedback submitted to Lever", "id", id, "opportunity", opportunityID, "rating", rating)
	return iv, nil
}

// ListFeedbackTemplates returns the Lever feedback templates
func (a *InterviewAgent) ListFeedbackTemplates(ctx context.Context) ([]lever.FeedbackTemplate, error) {
	if a.lever == nil {
		return nil, ErrLeverNotConfigured
	}
	return a.lever.ListFeedbackTemplates(ctx)
}

// GetSettings returns the runtime settings. Polling defaults to enabled and
// the Drive folder defaults to the configured one.
func (a *InterviewAgent) GetSettings(ctx context.Context) (models.Settings, error) {
	values, err := a.store.GetSettings(ctx)
	if err != nil {
		return models.Settings{}, err
	}

	settings := models.Settings{
		DriveFolderID:   firstNonEmpty(values[store.SettingDriveFolderID], a.folderID),
		LeverPerformAs:  values[store.SettingLeverPerformAs],
		LeverTemplateID: values[store.SettingLeverTemplateID],
		PollEnabled:     true,
	}
	if v, ok := values[store.SettingPollEnabled]; ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			slog.Warn("Ignoring invalid poll_enabled setting", "value", v)
		} else {
			settings.PollEnabled = enabled
		}
	}
	return settings, nil
}

// UpdateSettings stores the given settings and returns the effective values
func (a *InterviewAgent) UpdateSettings(ctx context.Context, settings models.Settings) (models.Settings, error) {
	values := map[string]string{
		store.SettingDriveFolderID:   settings.DriveFolderID,
		store.SettingLeverPerformAs:  settings.LeverPerformAs,
		store.SettingLeverTemplateID: settings.LeverTemplateID,
		store.SettingPollEnabled:     strconv.FormatBool(settings.PollEnabled),
	}
	if err := a.store.PutSettings(ctx, values); err != nil {
		return models.Settings{}, err
	}
	slog.Info("Settings updated", "drive_folder_id", settings.DriveFolderID, "poll_enabled", settings.PollEnabled)
	return a.GetSettings(ctx)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
