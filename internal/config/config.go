package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
)

type Config struct {
	Port     string `envconfig:"PORT" default:"8005"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
	APIToken string `envconfig:"API_TOKEN"`

	// Layout of the on-disk state. Empty paths are derived from HomeDir.
	HomeDir           string `envconfig:"HOME_DIR"`
	ScreenshotsDir    string `envconfig:"SCREENSHOTS_DIR"`
	TranscriptionsDir string `envconfig:"TRANSCRIPTIONS_DIR"`
	LedgerPath        string `envconfig:"LEDGER_PATH"`
	DeltaCorpusPath   string `envconfig:"DELTA_CORPUS_PATH"`
	FullCorpusPath    string `envconfig:"FULL_CORPUS_PATH"`
	ProcessedIDsPath  string `envconfig:"PROCESSED_IDS_PATH"`

	CaptureInterval     time.Duration `envconfig:"CAPTURE_INTERVAL" default:"2s"`
	SimilarityThreshold float64       `envconfig:"SIMILARITY_THRESHOLD" default:"0.95"`
	AdaptiveThreshold   bool          `envconfig:"ADAPTIVE_THRESHOLD" default:"true"`
	SimilarityWindow    int           `envconfig:"SIMILARITY_WINDOW" default:"10"`
	HistogramCheck      bool          `envconfig:"HISTOGRAM_CHECK" default:"true"`
	Display             int           `envconfig:"DISPLAY_INDEX" default:"0"`

	OCRBackend string `envconfig:"OCR_BACKEND" default:"command"`
	OCRCommand string `envconfig:"OCR_COMMAND" default:"tesseract"`
	KeepImages bool   `envconfig:"KEEP_IMAGES" default:"false"`

	ConsolidateInterval time.Duration `envconfig:"CONSOLIDATE_INTERVAL" default:"2m"`
	SyncInterval        time.Duration `envconfig:"SYNC_INTERVAL" default:"10m"`
	SyncSource          string        `envconfig:"SYNC_SOURCE" default:"full"`
	SyncMaxEntries      int           `envconfig:"SYNC_MAX_ENTRIES" default:"0"`
	ChunkTokens         int           `envconfig:"CHUNK_TOKENS" default:"500"`
	ChunkOverlap        int           `envconfig:"CHUNK_OVERLAP" default:"100"`
	SearchLimit         int           `envconfig:"SEARCH_LIMIT" default:"8"`

	RetentionDays int    `envconfig:"RETENTION_DAYS" default:"7"`
	RetentionCron string `envconfig:"RETENTION_CRON" default:"0 3 * * *"`

	DatabaseURL string `envconfig:"DATABASE_URL"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string `envconfig:"OPENAI_BASE_URL"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	ChatModel           string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"remind-snapshots"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("REMIND", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) resolvePaths() error {
	if c.HomeDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to resolve home directory: %w", err)
		}
		c.HomeDir = filepath.Join(home, ".remind")
	}

	defaults := []struct {
		field *string
		name  string
	}{
		{&c.ScreenshotsDir, "screenshots"},
		{&c.TranscriptionsDir, "transcription"},
		{&c.LedgerPath, "regular_data.db"},
		{&c.DeltaCorpusPath, "new_texts.json"},
		{&c.FullCorpusPath, "all_texts.json"},
		{&c.ProcessedIDsPath, "processed_ids.json"},
	}
	for _, d := range defaults {
		if *d.field == "" {
			*d.field = filepath.Join(c.HomeDir, d.name)
		}
	}
	return nil
}

func (c *Config) validate() error {
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("REMIND_SIMILARITY_THRESHOLD must be in (0, 1], got %v", c.SimilarityThreshold)
	}
	if c.CaptureInterval <= 0 || c.ConsolidateInterval <= 0 || c.SyncInterval <= 0 {
		return fmt.Errorf("intervals must be positive")
	}
	if c.RetentionDays <= 0 {
		return fmt.Errorf("REMIND_RETENTION_DAYS must be positive, got %d", c.RetentionDays)
	}
	switch c.SyncSource {
	case "full", "delta":
	default:
		return fmt.Errorf("REMIND_SYNC_SOURCE must be full or delta, got %q", c.SyncSource)
	}
	switch c.OCRBackend {
	case "command", "openai":
	default:
		return fmt.Errorf("REMIND_OCR_BACKEND must be command or openai, got %q", c.OCRBackend)
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(c.RetentionCron); err != nil {
		return fmt.Errorf("invalid REMIND_RETENTION_CRON %q: %w", c.RetentionCron, err)
	}
	return nil
}

// Retention returns the retention horizon as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != "" || c.OpenAIBaseURL != ""
}

func (c *Config) HasIndex() bool {
	return c.DatabaseURL != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}
