package admin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/remind/internal/api/handlers"
	"github.com/cloo-solutions/remind/internal/capture"
	"github.com/cloo-solutions/remind/internal/config"
	"github.com/cloo-solutions/remind/internal/ingest"
	"github.com/cloo-solutions/remind/internal/jobs"
	"github.com/cloo-solutions/remind/internal/server"
	"github.com/cloo-solutions/remind/internal/telemetry"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// RunCmd returns the run command
func RunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the capture pipeline and query server",
		Long: `Runs every pipeline stage until interrupted: the screen capture loop, the
ingestion watcher, periodic consolidation, index sync, the retention sweep, and
the HTTP query server.`,
		RunE: runDaemon,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides REMIND_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic index migrations on startup")
	cmd.Flags().Bool("no-capture", false, "Do not sample the screen; only ingest files dropped into the watched folders")

	return cmd
}

func loadConfig() (*config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Default to 10% sampling in production, 100% in development
	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}
	shutdownTelemetry, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
		shutdownTelemetry = func() {}
	}
	return cfg, shutdownTelemetry, nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, shutdownTelemetry, err := loadConfig()
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	noCapture, _ := cmd.Flags().GetBool("no-capture")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg, AppOptions{NoMigrate: noMigrate})
	if err != nil {
		return err
	}
	defer app.Close()

	recognizer, err := app.Recognizer()
	if err != nil {
		return err
	}
	watcher, err := ingest.NewWatcher(app.Ledger, recognizer, ingest.Options{
		ImageRoot:      cfg.ScreenshotsDir,
		TranscriptRoot: cfg.TranscriptionsDir,
		KeepImage:      cfg.KeepImages,
	})
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	retention, err := jobs.NewRetentionScheduler(app.Ledger, cfg.RetentionCron, cfg.RetentionDays)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	workers := []*jobs.Worker{
		jobs.NewWorker("consolidate", app.Consolidator, cfg.ConsolidateInterval),
	}
	if !noCapture {
		grabber := &capture.ScreenGrabber{Display: cfg.Display}
		capturer := capture.NewCapturer(grabber, cfg.ScreenshotsDir, capture.Options{
			Threshold: cfg.SimilarityThreshold,
			Adaptive:  cfg.AdaptiveThreshold,
			Window:    cfg.SimilarityWindow,
			Histogram: cfg.HistogramCheck,
		})
		workers = append(workers, jobs.NewWorker("capture", capturer, cfg.CaptureInterval))
	}
	if app.Sync != nil {
		workers = append(workers, jobs.NewWorker("sync", app.Sync, cfg.SyncInterval).RunImmediately())
	} else {
		log.Println("sync: disabled (set REMIND_DATABASE_URL and an OpenAI endpoint to enable)")
	}
	for _, w := range workers {
		g.Go(func() error {
			w.Start(gctx)
			return nil
		})
	}

	g.Go(func() error {
		return watcher.Run(gctx)
	})
	g.Go(func() error {
		return retention.Start(gctx)
	})

	router := server.NewRouter(server.RouterConfig{
		APIToken:          cfg.APIToken,
		QueryHandler:      handlers.NewQueryHandler(app.RetrievalService()),
		DocumentHandler:   handlers.NewDocumentHandler(app.DocumentIndexer()),
		DeadLetterHandler: handlers.NewDeadLetterHandler(app.Ledger),
		HealthHandler:     handlers.NewHealthHandler(app.Ledger, app.HealthChecks()),
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Println("daemon exited")
	return nil
}

// exitOnSignal is used by one-shot commands so an interrupt cancels in-flight work.
func exitOnSignal(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
