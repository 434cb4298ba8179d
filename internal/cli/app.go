package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fmuoria/interview-notes/internal/agent"
	"github.com/fmuoria/interview-notes/internal/analysis"
	"github.com/fmuoria/interview-notes/internal/config"
	"github.com/fmuoria/interview-notes/internal/ingestion"
	"github.com/fmuoria/interview-notes/internal/lever"
	"github.com/fmuoria/interview-notes/internal/llm"
	"github.com/fmuoria/interview-notes/internal/store"
)

// app holds the wired subsystems shared by every command
type app struct {
	cfg       *config.Config
	store     *store.Store
	generator llm.Generator
	auth      *ingestion.GoogleAuth
	agent     *agent.InterviewAgent
}

// newApp connects to Postgres, applies migrations and builds the agent
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(); err != nil {
		st.Close()
		return nil, err
	}

	generator, err := llm.NewGenerator(ctx, cfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	embedder, err := llm.NewEmbedder(ctx, cfg)
	if err != nil {
		generator.Close()
		st.Close()
		return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
	}

	a := &app{cfg: cfg, store: st, generator: generator}

	deps := agent.Dependencies{
		Store:         st,
		Analyzer:      analysis.NewAnalyzer(generator),
		Embedder:      embedder,
		DriveFolderID: cfg.DriveFolderID,
	}

	if cfg.DriveEnabled() {
		a.auth = ingestion.NewGoogleAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL, st)
		deps.Drive = func(ctx context.Context) (agent.DriveSource, error) {
			httpClient, err := a.auth.Client(ctx)
			if err != nil {
				return nil, err
			}
			return ingestion.NewDriveClient(ctx, httpClient)
		}
	} else {
		slog.Info("Google OAuth not configured, Drive import disabled")
	}

	if cfg.LeverEnabled() {
		deps.Lever = lever.NewClient(cfg.LeverAPIKey, cfg.LeverBaseURL)
	} else {
		slog.Info("Lever API key not set, feedback submission disabled")
	}

	a.agent = agent.NewInterviewAgent(deps)
	a.agent.SetProgressCallback(func(current, total int, message string) {
		slog.Debug("Progress", "current", current, "total", total, "message", message)
	})
	return a, nil
}

// Close releases the model client and the database pool
func (a *app) Close() error {
	return errors.Join(a.generator.Close(), a.store.Close())
}
