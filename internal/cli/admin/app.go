package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/cloo-solutions/remind/internal/api/handlers"
	"github.com/cloo-solutions/remind/internal/config"
	"github.com/cloo-solutions/remind/internal/corpus"
	"github.com/cloo-solutions/remind/internal/database"
	"github.com/cloo-solutions/remind/internal/ingest"
	"github.com/cloo-solutions/remind/internal/ledger"
	"github.com/cloo-solutions/remind/internal/openai"
	"github.com/cloo-solutions/remind/internal/repository"
	"github.com/cloo-solutions/remind/internal/service"
	"github.com/cloo-solutions/remind/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AppOptions select which optional dependencies are opened.
type AppOptions struct {
	NoMigrate bool
	// SkipArchive leaves snapshot upload off even when S3 is configured.
	SkipArchive bool
}

// App holds the daemon's stores and services. Index, Sync and Gate are nil when
// their backing services are not configured.
type App struct {
	Config       *config.Config
	Ledger       *ledger.Store
	Corpus       *corpus.Store
	IDs          *corpus.IDSet
	Consolidator *service.Consolidator
	Model        *openai.Client
	Index        *repository.ChunkRepository
	Sync         *service.IndexSynchronizer
	Gate         *service.RetrievalGate

	pool *pgxpool.Pool
}

// NewApp opens the ledger and corpus files, and the index, model and archive
// when configured.
func NewApp(ctx context.Context, cfg *config.Config, opts AppOptions) (*App, error) {
	store, err := ledger.Open(ctx, cfg.LedgerPath)
	if err != nil {
		return nil, err
	}
	app := &App{
		Config: cfg,
		Ledger: store,
		Corpus: corpus.NewStore(cfg.DeltaCorpusPath, cfg.FullCorpusPath),
	}

	app.IDs, err = corpus.LoadIDSet(cfg.ProcessedIDsPath)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to load processed ids: %w", err)
	}

	app.Consolidator = service.NewConsolidator(app.Ledger, app.Corpus)
	if cfg.HasS3() && !opts.SkipArchive {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready for corpus snapshots", cfg.S3Bucket)
		app.Consolidator.WithArchiver(s3Client)
	}

	if cfg.HasOpenAI() {
		app.Model = openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			BaseURL:             cfg.OpenAIBaseURL,
			EmbeddingModel:      cfg.EmbeddingModel,
			EmbeddingDimensions: cfg.EmbeddingDimensions,
			ChatModel:           cfg.ChatModel,
		})
	}

	if cfg.HasIndex() {
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL, MaxConns: 4})
		if err != nil {
			app.Close()
			return nil, err
		}
		app.pool = pool
		log.Println("connected to index database")

		if !opts.NoMigrate {
			if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
				app.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		app.Index = repository.NewChunkRepository(pool)
	}

	if app.Model != nil {
		// a nil *ChunkRepository must not reach the gate as a non-nil interface
		var index service.ChunkIndex
		if app.Index != nil {
			index = app.Index
		}
		app.Gate = service.NewRetrievalGate(app.Model, app.Model, index, cfg.SearchLimit)

		if index != nil {
			chunker := service.NewChunker(cfg.ChunkTokens, cfg.ChunkOverlap)
			app.Sync = service.NewIndexSynchronizer(app.Corpus, app.IDs, index, app.Model, chunker, service.SyncConfig{
				UseDelta:   cfg.SyncSource == "delta",
				MaxEntries: cfg.SyncMaxEntries,
			})
		}
	}

	return app, nil
}

// Recognizer returns the configured OCR backend.
func (a *App) Recognizer() (ingest.Recognizer, error) {
	switch a.Config.OCRBackend {
	case "openai":
		if a.Model == nil {
			return nil, fmt.Errorf("REMIND_OCR_BACKEND=openai requires REMIND_OPENAI_API_KEY or REMIND_OPENAI_BASE_URL")
		}
		return a.Model, nil
	default:
		return ingest.NewCommandRecognizer(a.Config.OCRCommand), nil
	}
}

// RetrievalService returns the gate as a handler dependency, or nil when no
// model is configured.
func (a *App) RetrievalService() handlers.RetrievalService {
	if a.Gate == nil {
		return nil
	}
	return a.Gate
}

// DocumentIndexer returns the synchronizer as a handler dependency, or nil when
// the index is not configured.
func (a *App) DocumentIndexer() handlers.DocumentIndexer {
	if a.Sync == nil {
		return nil
	}
	return a.Sync
}

// HealthChecks pings the optional index alongside the ledger.
func (a *App) HealthChecks() map[string]handlers.Check {
	checks := map[string]handlers.Check{}
	if a.Index != nil {
		checks["index"] = a.Index.Ping
	}
	return checks
}

func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.Ledger != nil {
		if err := a.Ledger.Close(); err != nil {
			log.Printf("failed to close ledger: %v", err)
		}
	}
}
