// Package config reads runtime settings from the environment and an
// optional .env file.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Collector modes.
const (
	ModeAPI     = "api"
	ModePublic  = "public"
	ModeArchive = "archive"
	ModeMock    = "mock"
)

type Config struct {
	// Which collector to use: api, public, archive or mock
	Mode string `env:"COLLECTOR_MODE, default=public"`

	UserAgent    string `env:"REDDIT_USER_AGENT"`
	ClientID     string `env:"REDDIT_CLIENT_ID"`
	ClientSecret string `env:"REDDIT_CLIENT_SECRET"`
	Username     string `env:"REDDIT_USERNAME"`
	Password     string `env:"REDDIT_PASSWORD"`

	// Base URL of a Pushshift-compatible search API
	ArchiveBaseURL string `env:"ARCHIVE_BASE_URL, default=https://api.pullpush.io"`

	PageSize   int    `env:"PAGE_SIZE, default=100"`
	MaxRetries uint64 `env:"MAX_RETRIES, default=4"`

	OutputDir    string `env:"OUTPUT_DIR, default=."`
	OutputFormat string `env:"OUTPUT_FORMAT, default=csv"`

	// How long after creation scores are still refreshed on incremental runs
	RefetchWindow time.Duration `env:"REFETCH_WINDOW, default=166h40m"`

	// Which format to use for logging: either text or json
	LogFormat string `env:"LOG_FORMAT, default=json"`
}

// Load reads .env (when present) and then the process environment.
func Load(ctx context.Context) (Config, error) {
	// A missing .env is fine; real environment variables win either way.
	_ = godotenv.Load()
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith decodes the configuration from l. Mode requirements are checked
// by Validate once flags have been applied.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return Config{}, fmt.Errorf("error parsing config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings the selected mode depends on.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeAPI:
		if c.ClientID == "" || c.ClientSecret == "" {
			return fmt.Errorf("REDDIT_CLIENT_ID and REDDIT_CLIENT_SECRET are required for api mode")
		}
		if c.UserAgent == "" {
			return fmt.Errorf("REDDIT_USER_AGENT is required for api mode")
		}
	case ModePublic:
		if c.UserAgent == "" {
			return fmt.Errorf("REDDIT_USER_AGENT is required for public mode")
		}
	case ModeArchive:
		if c.ArchiveBaseURL == "" {
			return fmt.Errorf("ARCHIVE_BASE_URL is required for archive mode")
		}
	case ModeMock:
	default:
		return fmt.Errorf("unknown COLLECTOR_MODE: %s (use 'api', 'public', 'archive' or 'mock')", c.Mode)
	}
	if c.PageSize <= 0 || c.PageSize > 1000 {
		return fmt.Errorf("PAGE_SIZE must be between 1 and 1000, got %d", c.PageSize)
	}
	if c.RefetchWindow < 0 {
		return fmt.Errorf("REFETCH_WINDOW must not be negative")
	}
	return nil
}
