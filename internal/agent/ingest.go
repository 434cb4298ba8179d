package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fmuoria/interview-notes/internal/ingestion"
	"github.com/fmuoria/interview-notes/internal/models"
	"github.com/fmuoria/interview-notes/internal/store"
)

// IngestTranscript stores a transcript captured by the browser extension.
// A capture whose meeting key is already stored returns store.ErrDuplicate.
func (a *InterviewAgent) IngestTranscript(ctx context.Context, payload models.TranscriptPayload) (*models.Interview, error) {
	transcript := ingestion.NormalizeTranscript(payload.Transcript)
	if transcript == "" {
		return nil, fmt.Errorf("%w: transcript is empty", ErrInvalidInput)
	}

	key, err := ingestion.MeetingKey(payload.MeetingCode, payload.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	exists, err := a.store.MeetingKeyExists(ctx, key)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("meeting %s: %w", key, store.ErrDuplicate)
	}

	title := strings.TrimSpace(payload.Title)
	if title == "" {
		title = "Meeting " + strings.SplitN(key, "/", 2)[0]
	}
	started := payload.StartedAt.UTC()

	iv := &models.Interview{
		Source:      models.SourceExtension,
		MeetingKey:  key,
		Title:       title,
		MeetingDate: &started,
		Transcript:  transcript,
	}

	embedding, err := a.analyze(ctx, iv)
	if err != nil {
		slog.Warn("Storing transcript without analysis", "meeting_key", key, "error", err)
	}

	if err := a.store.CreateInterview(ctx, iv, embedding); err != nil {
		return nil, err
	}

	slog.Info("Transcript ingested", "id", iv.ID, "meeting_key", key, "candidate", iv.CandidateName)
	return iv, nil
}

// ImportFromDrive imports every transcript in the Drive folder whose file
// name is not stored yet. Per-file failures are counted and the run continues.
func (a *InterviewAgent) ImportFromDrive(ctx context.Context) (models.ImportResult, error) {
	var result models.ImportResult

	if !a.importMu.TryLock() {
		return result, ErrImportInProgress
	}
	defer a.importMu.Unlock()

	if a.newDrive == nil {
		return result, ErrDriveNotConfigured
	}

	folderID, err := a.driveFolder(ctx)
	if err != nil {
		return result, err
	}
	if folderID == "" {
		return result, fmt.Errorf("%w: drive folder is not set", ErrInvalidInput)
	}

	a.reportProgress(0, 100, "Connecting to Google Drive...")

	drive, err := a.newDrive(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to connect to drive: %w", err)
	}

	files, err := drive.ListFiles(ctx, folderID)
	if err != nil {
		return result, err
	}
	result.Listed = len(files)

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	existing, err := a.store.ExistingFileNames(ctx, names)
	if err != nil {
		return result, err
	}

	var pending []ingestion.DriveFile
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		// a second file with the same name in the listing is a duplicate too
		if existing[f.Name] || seen[f.Name] {
			result.Skipped++
			continue
		}
		seen[f.Name] = true
		pending = append(pending, f)
	}

	slog.Info("Drive folder listed", "folder", folderID, "files", result.Listed, "new", len(pending))

	for i, f := range pending {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		a.reportProgress(i+1, len(pending), fmt.Sprintf("Importing %s (%d/%d)", f.Name, i+1, len(pending)))

		if err := a.importFile(ctx, drive, f); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				result.Skipped++
				continue
			}
			slog.Error("Failed to import drive file", "file", f.Name, "error", err)
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", f.Name, err))
			continue
		}
		result.Imported++
	}

	slog.Info("Drive import finished",
		"listed", result.Listed, "skipped", result.Skipped,
		"imported", result.Imported, "failed", result.Failed)
	return result, nil
}

func (a *InterviewAgent) importFile(ctx context.Context, drive DriveSource, f ingestion.DriveFile) error {
	text, err := drive.FetchText(ctx, f)
	if err != nil {
		return err
	}

	iv := &models.Interview{
		Source:      models.SourceDrive,
		FileName:    f.Name,
		DriveFileID: f.ID,
		Title:       ingestion.TitleFromFileName(f.Name),
		Transcript:  text,
	}
	if d, ok := ingestion.DateFromFileName(f.Name); ok {
		iv.MeetingDate = &d
	} else if !f.CreatedTime.IsZero() {
		created := f.CreatedTime.UTC()
		iv.MeetingDate = &created
	}

	embedding, err := a.analyze(ctx, iv)
	if err != nil {
		slog.Warn("Storing drive transcript without analysis", "file", f.Name, "error", err)
	}
	return a.store.CreateInterview(ctx, iv, embedding)
}

// RunPoller imports from Drive every interval until ctx is cancelled. Ticks
// are skipped while polling is disabled in settings.
func (a *InterviewAgent) RunPoller(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("Drive poller started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Drive poller stopped")
			return
		case <-ticker.C:
			a.pollOnce(ctx)
		}
	}
}

func (a *InterviewAgent) pollOnce(ctx context.Context) {
	settings, err := a.GetSettings(ctx)
	if err != nil {
		slog.Error("Poller could not load settings", "error", err)
		return
	}
	if !settings.PollEnabled || settings.DriveFolderID == "" {
		return
	}

	if _, err := a.ImportFromDrive(ctx); err != nil {
		if errors.Is(err, ErrImportInProgress) {
			slog.Debug("Skipping poll, import already running")
			return
		}
		slog.Error("Scheduled drive import failed", "error", err)
	}
}

// driveFolder prefers the folder stored in settings over the configured one
func (a *InterviewAgent) driveFolder(ctx context.Context) (string, error) {
	settings, err := a.GetSettings(ctx)
	if err != nil {
		return "", err
	}
	return settings.DriveFolderID, nil
}
