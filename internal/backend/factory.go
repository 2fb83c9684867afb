package backend

import (
	"context"
	"fmt"

	"github.com/caseline/caseline/internal/common/config"

	"go.uber.org/zap"
)

// NewRegistryFromConfig builds the backend registry from configuration.
// Entries without an API key are skipped so that Get for their name reports
// not-configured rather than registering an adapter that can only fail.
func NewRegistryFromConfig(ctx context.Context, logger *zap.Logger, cfgs []config.BackendConfig) (*Registry, error) {
	registry := NewRegistry()
	for _, cfg := range cfgs {
		if cfg.APIKey == "" {
			logger.Warn("skipping backend without api key", zap.String("name", cfg.Name))
			continue
		}
		switch cfg.Provider {
		case "gemini":
			adapter, err := NewGeminiAdapter(ctx, logger, cfg)
			if err != nil {
				return nil, fmt.Errorf("backend %s: %w", cfg.Name, err)
			}
			registry.Register(cfg.Name, adapter)
		case "openai", "groq":
			registry.Register(cfg.Name, NewOpenAIAdapter(logger, cfg))
		default:
			return nil, fmt.Errorf("unsupported backend provider: %s", cfg.Provider)
		}
		logger.Info("registered backend",
			zap.String("name", cfg.Name),
			zap.String("provider", cfg.Provider),
			zap.String("model", cfg.Model))
	}
	return registry, nil
}
