package collector

import (
	"fmt"

	"github.com/qepting91/reddit-export/internal/config"
	"github.com/qepting91/reddit-export/internal/domain"
)

// NewCollector selects the correct implementation based on the mode
func NewCollector(cfg config.Config) (domain.Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := []Option{WithPageSize(cfg.PageSize), WithMaxRetries(cfg.MaxRetries)}

	switch cfg.Mode {
	case config.ModeAPI:
		return NewAPIClient(
			cfg.ClientID,
			cfg.ClientSecret,
			cfg.Username,
			cfg.Password,
			cfg.UserAgent,
			opts...,
		)
	case config.ModePublic:
		return NewPublicClient(cfg.UserAgent, opts...)
	case config.ModeArchive:
		return NewArchiveClient(cfg.ArchiveBaseURL, cfg.UserAgent, opts...), nil
	case config.ModeMock:
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown COLLECTOR_MODE: %s (use 'api', 'public', 'archive' or 'mock')", cfg.Mode)
	}
}
