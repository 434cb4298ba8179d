package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/fmuoria/interview-notes/internal/models"
	"github.com/fmuoria/interview-notes/internal/store"
)

// Reparse reruns analysis and embedding for one interview
func (a *InterviewAgent) Reparse(ctx context.Context, id uuid.UUID) (*models.Interview, error) {
	iv, err := a.store.GetInterview(ctx, id)
	if err != nil {
		return nil, err
	}

	embedding, err := a.analyze(ctx, iv)
	if err != nil {
		return nil, err
	}
	if err := a.store.UpdateAnalysis(ctx, iv, embedding); err != nil {
		return nil, err
	}

	slog.Info("Interview reparsed", "id", id, "rating", iv.Rating, "category", iv.Category)
	return iv, nil
}

// ReparseAll reruns analysis for every interview, or only for those missing
// a summary or embedding
func (a *InterviewAgent) ReparseAll(ctx context.Context, onlyMissing bool) (models.ReparseResult, error) {
	var result models.ReparseResult

	interviews, err := a.store.ListInterviews(ctx, store.ListOptions{MissingAnalysis: onlyMissing})
	if err != nil {
		return result, err
	}
	result.Total = len(interviews)

	for i := range interviews {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		iv := &interviews[i]
		a.reportProgress(i+1, len(interviews), fmt.Sprintf("Reparsing %s (%d/%d)", iv.Title, i+1, len(interviews)))

		embedding, err := a.analyze(ctx, iv)
		if err == nil {
			err = a.store.UpdateAnalysis(ctx, iv, embedding)
		}
		if err != nil {
			slog.Error("Failed to reparse interview", "id", iv.ID, "error", err)
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", iv.ID, err))
			continue
		}
		result.Updated++
	}

	slog.Info("Reparse finished", "total", result.Total, "updated", result.Updated, "failed", result.Failed)
	return result, nil
}

// Dedupe removes rows sharing a file name or meeting key, keeping one per key.
// With dryRun nothing is deleted and Removed counts what would be.
func (a *InterviewAgent) Dedupe(ctx context.Context, dryRun bool) (models.DedupeReport, error) {
	report := models.DedupeReport{DryRun: dryRun, Groups: []models.DuplicateGroup{}}

	rows, err := a.store.DuplicateRows(ctx)
	if err != nil {
		return report, err
	}

	report.Groups = PlanDedupe(rows)

	var remove []uuid.UUID
	for _, g := range report.Groups {
		remove = append(remove, g.Remove...)
	}

	if dryRun || len(remove) == 0 {
		report.Removed = len(remove)
		slog.Info("Dedupe planned", "groups", len(report.Groups), "removable", len(remove), "dry_run", dryRun)
		return report, nil
	}

	n, err := a.store.DeleteInterviews(ctx, remove)
	if err != nil {
		return report, err
	}
	report.Removed = int(n)

	slog.Info("Dedupe finished", "groups", len(report.Groups), "removed", report.Removed)
	return report, nil
}

// PlanDedupe groups rows by dedup key and picks the survivor of each group:
// the longest transcript, then the earliest created, then the lowest ID.
// Rows without a key are never grouped.
func PlanDedupe(rows []store.DedupRow) []models.DuplicateGroup {
	byKey := make(map[string][]store.DedupRow)
	for _, r := range rows {
		key := r.Key()
		if key == "" {
			continue
		}
		byKey[key] = append(byKey[key], r)
	}

	groups := []models.DuplicateGroup{}
	for key, members := range byKey {
		if len(members) < 2 {
			continue
		}

		sort.Slice(members, func(i, j int) bool {
			if members[i].TranscriptLength != members[j].TranscriptLength {
				return members[i].TranscriptLength > members[j].TranscriptLength
			}
			if !members[i].CreatedAt.Equal(members[j].CreatedAt) {
				return members[i].CreatedAt.Before(members[j].CreatedAt)
			}
			return members[i].ID.String() < members[j].ID.String()
		})

		group := models.DuplicateGroup{
			Key:      key,
			Keep:     members[0].ID,
			RowCount: len(members),
		}
		for _, m := range members[1:] {
			group.Remove = append(group.Remove, m.ID)
		}
		groups = append(groups, group)
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups
}
