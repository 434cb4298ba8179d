package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fmuoria/interview-notes/internal/export"
	"github.com/fmuoria/interview-notes/internal/store"
)

// runWithApp loads config, wires the app and hands it to fn
func runWithApp(cmd *cobra.Command, fn func(a *app) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("Failed to close resources", "error", err)
		}
	}()
	return fn(a)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Import new transcripts from the Drive folder",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd, func(a *app) error {
				result, err := a.agent.ImportFromDrive(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
}

func newDedupeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Remove duplicate interviews",
		Long:  "Groups interviews by Drive file name or meeting key and keeps the most complete row of each group.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			return runWithApp(cmd, func(a *app) error {
				report, err := a.agent.Dedupe(cmd.Context(), dryRun)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().Bool("dry-run", false, "report duplicates without deleting them")
	return cmd
}

func newReparseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reparse",
		Short: "Rerun analysis on stored transcripts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			idFlag, _ := cmd.Flags().GetString("id")
			missing, _ := cmd.Flags().GetBool("missing")
			if idFlag != "" && missing {
				return errors.New("--id and --missing cannot be combined")
			}

			var id uuid.UUID
			if idFlag != "" {
				parsed, err := uuid.Parse(idFlag)
				if err != nil {
					return fmt.Errorf("invalid --id: %w", err)
				}
				id = parsed
			}

			return runWithApp(cmd, func(a *app) error {
				if id != uuid.Nil {
					iv, err := a.agent.Reparse(cmd.Context(), id)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), iv)
				}
				result, err := a.agent.ReparseAll(cmd.Context(), missing)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().String("id", "", "reparse a single interview")
	cmd.Flags().Bool("missing", false, "only reparse interviews without a summary or embedding")
	return cmd
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all interviews to an Excel workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, _ := cmd.Flags().GetString("out")
			return runWithApp(cmd, func(a *app) error {
				interviews, err := a.agent.ListInterviews(cmd.Context(), store.ListOptions{})
				if err != nil {
					return err
				}
				if err := export.ExportToExcel(interviews, out); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d interviews to %s\n", len(interviews), out)
				return nil
			})
		},
	}
	cmd.Flags().StringP("out", "o", "interviews.xlsx", "output file")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// migrations only need the database
			cfg, err := readConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("database_url is required")
			}
			st, err := store.Open(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Migrate(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}
}
