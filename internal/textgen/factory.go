package textgen

import (
	"context"
	"fmt"
	"log/slog"

	"paradiso/internal/config"
	"paradiso/internal/services"
	algoliasvc "paradiso/internal/services/algolia"
	"paradiso/internal/services/llm"
)

// New selects the backend described by cfg. Credentials are validated here so
// a run never starts against a backend that cannot answer. Every returned
// backend enforces the configured per-call timeout.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Backend, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "textgen", "new", "config required", nil)
	}
	if err := cfg.ValidateBackend(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "textgen", "new", "backend settings", err)
	}
	timeout := cfg.CallTimeout()

	if cfg.UsesLocalBackend() {
		return WithTimeout(newLocalBackend(cfg.Local.BaseURL, cfg.Local.Model), timeout), nil
	}

	var backend Backend
	switch cfg.Backend.Provider {
	case config.ProviderOpenRouter:
		backend = newOpenRouterBackend(llm.NewClient(llm.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Referer: cfg.LLM.Referer,
			Title:   cfg.LLM.Title,
			Timeout: timeout,
		}))
	case config.ProviderOpenAI:
		backend = newOpenAIBackend(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model)
	case config.ProviderAnthropic:
		backend = newAnthropicBackend(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model)
	case config.ProviderGemini:
		gemini, err := newGeminiBackend(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			return nil, err
		}
		backend = gemini
	case config.ProviderAlgolia:
		client, err := algoliasvc.NewClient(algoliasvc.Config{AppID: cfg.Algolia.AppID, APIKey: cfg.Algolia.APIKey})
		if err != nil {
			return nil, err
		}
		reg := indexRegistry{open: func(name string) algoliasvc.Index { return client.InitIndex(name) }}
		backend = newAlgoliaBackend(AlgoliaConfig{
			AppID:   cfg.Algolia.AppID,
			APIKey:  cfg.Algolia.APIKey,
			BaseURL: cfg.Algolia.GenAIBaseURL,
			Indexes: map[Source]string{
				SourceReviews: cfg.Algolia.ReviewsIndex,
				SourceCatalog: cfg.Algolia.MoviesIndex,
			},
			Timeout: timeout,
		}, reg, logger)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "textgen", "new", fmt.Sprintf("unsupported provider %q", cfg.Backend.Provider), nil)
	}
	return WithTimeout(backend, timeout), nil
}

// Describe returns a short operator-facing label for the selected backend.
func Describe(cfg *config.Config) string {
	if cfg == nil {
		return "unknown"
	}
	if cfg.UsesLocalBackend() {
		return fmt.Sprintf("local (%s @ %s)", cfg.Local.Model, cfg.Local.BaseURL)
	}
	if cfg.Backend.Provider == config.ProviderAlgolia {
		return "hosted (algolia generative experiences)"
	}
	return fmt.Sprintf("hosted (%s, %s)", cfg.Backend.Provider, cfg.LLM.Model)
}
