package admin

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cloo-solutions/remind/internal/domain"
	"github.com/cloo-solutions/remind/internal/jobs"
	"github.com/cloo-solutions/remind/internal/pagination"
	"github.com/spf13/cobra"
)

func printJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

// withApp loads config, opens the app for one command, and tears both down after fn.
func withApp(cmd *cobra.Command, opts AppOptions, fn func(app *App) error) error {
	cfg, shutdownTelemetry, err := loadConfig()
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	ctx, cancel := exitOnSignal(cmd.Context())
	defer cancel()
	cmd.SetContext(ctx)

	app, err := NewApp(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(app)
}

func ConsolidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Fold unprocessed ledger rows into the corpus once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return withApp(cmd, AppOptions{NoMigrate: true}, func(app *App) error {
				res, err := app.Consolidator.Consolidate(cmd.Context())
				if err != nil {
					return err
				}
				if outputFormat == "json" {
					return printJSON(cmd.OutOrStdout(), res)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Fetched %d rows, added %d entries in %d days, marked %d, skipped %d\n",
					res.Fetched, res.Added, res.Buckets, res.Marked, res.Skipped)
				return nil
			})
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func SyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Index corpus entries that are not yet searchable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return withApp(cmd, AppOptions{SkipArchive: true}, func(app *App) error {
				if app.Sync == nil {
					return fmt.Errorf("%w: set REMIND_DATABASE_URL and an OpenAI endpoint", domain.ErrIndexUnavailable)
				}
				res, err := app.Sync.Sync(cmd.Context())
				if err != nil {
					return err
				}
				if outputFormat == "json" {
					return printJSON(cmd.OutOrStdout(), res)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d new entries as %d chunks (%d pending, %d total)\n",
					res.New, res.Chunks, res.Pending, res.Entries)
				return nil
			})
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func SweepCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete ledger rows older than the retention horizon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, AppOptions{NoMigrate: true, SkipArchive: true}, func(app *App) error {
				if days <= 0 {
					days = app.Config.RetentionDays
				}
				retention, err := jobs.NewRetentionScheduler(app.Ledger, app.Config.RetentionCron, days)
				if err != nil {
					return err
				}
				deleted, err := retention.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d rows older than %d days\n", deleted, days)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Retention in days (defaults to REMIND_RETENTION_DAYS)")

	return cmd
}

func AskCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from this machine's history without the server",
		Long:  "Answers a question locally. With --summary-date and no question, summarizes that day instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			question := strings.Join(args, " ")
			if question == "" && date == "" {
				return fmt.Errorf("a question or --summary-date is required")
			}
			return withApp(cmd, AppOptions{NoMigrate: true, SkipArchive: true}, func(app *App) error {
				if app.Gate == nil {
					return domain.ErrModelUnavailable
				}

				var (
					answer any
					text   string
				)
				if question != "" {
					res, err := app.Gate.Ask(cmd.Context(), question)
					if err != nil {
						return err
					}
					answer, text = res, res.Answer
				} else {
					day, err := time.ParseInLocation(domain.DateLayout, date, time.Local)
					if err != nil {
						return domain.ErrInvalidDate
					}
					res, err := app.Gate.Summarize(cmd.Context(), day)
					if err != nil {
						return err
					}
					answer, text = res, res.Answer
				}

				if outputFormat == "json" {
					return printJSON(cmd.OutOrStdout(), answer)
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().StringVar(&date, "summary-date", "", "Summarize this day (YYYY-MM-DD) instead of answering")

	return cmd
}

func DeadLettersCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "deadletters",
		Short: "List captures whose text extraction failed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			decoded, err := pagination.DecodeCursor(cursor)
			if err != nil {
				return err
			}
			return withApp(cmd, AppOptions{NoMigrate: true, SkipArchive: true}, func(app *App) error {
				page, err := app.Ledger.ListDeadLetters(cmd.Context(), decoded, limit)
				if err != nil {
					return err
				}
				if outputFormat == "json" {
					return printJSON(cmd.OutOrStdout(), page)
				}

				out := cmd.OutOrStdout()
				if len(page.Items) == 0 {
					fmt.Fprintln(out, "No dead letters.")
					return nil
				}
				for _, dl := range page.Items {
					fmt.Fprintf(out, "%d\t%s\t%s\t%d\t%s\n", dl.ID, dl.Stage, dl.Path, dl.Attempts, dl.Error)
				}
				if page.HasMore && page.Cursor != "" {
					fmt.Fprintf(out, "\nMore results available. Use --cursor %s\n", page.Cursor)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}
