package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is structurally usable. Credentials are
// checked separately by ValidateBackend and ValidateStores because read-only
// commands do not need every integration configured.
func (c *Config) Validate() error {
	if err := c.validateReconcile(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateBackendShape(); err != nil {
		return err
	}
	if err := c.validateStoreKinds(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateReconcile() error {
	if c.Reconcile.BatchSize < 1 || c.Reconcile.BatchSize > maxBatchSize {
		return fmt.Errorf("reconcile.batch_size must be between 1 and %d", maxBatchSize)
	}
	if c.Reconcile.Limit < 1 {
		return errors.New("reconcile.limit must be positive")
	}
	if c.Reconcile.MaxCandidates < 1 || c.Reconcile.MaxCandidates > 100 {
		return errors.New("reconcile.max_candidates must be between 1 and 100")
	}
	if c.Reconcile.PacingMillis < 0 {
		return errors.New("reconcile.pacing_ms must be zero or positive")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be at least 1")
	}
	if c.Retry.BaseDelaySeconds < 0 || c.Retry.MaxDelaySeconds < 0 {
		return errors.New("retry delays must be zero or positive")
	}
	if c.Retry.MaxDelaySeconds < c.Retry.BaseDelaySeconds {
		return errors.New("retry.max_delay_seconds must be >= retry.base_delay_seconds")
	}
	return nil
}

func (c *Config) validateBackendShape() error {
	switch c.Backend.Mode {
	case BackendHosted, BackendLocal:
	default:
		return fmt.Errorf("backend.mode: unsupported value %q (use hosted or local)", c.Backend.Mode)
	}
	switch c.Backend.Provider {
	case ProviderOpenRouter, ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderAlgolia:
	default:
		return fmt.Errorf("backend.provider: unsupported value %q", c.Backend.Provider)
	}
	if c.Backend.HostedTimeoutSeconds < 1 || c.Backend.LocalTimeoutSeconds < 1 {
		return errors.New("backend timeouts must be positive")
	}
	return nil
}

func (c *Config) validateStoreKinds() error {
	switch c.Store.Reviews {
	case StoreSQLite, StoreAlgolia:
	default:
		return fmt.Errorf("store.reviews: unsupported value %q (use sqlite or algolia)", c.Store.Reviews)
	}
	switch c.Store.Catalog {
	case StoreSQLite, StoreAlgolia, StoreTMDB:
	default:
		return fmt.Errorf("store.catalog: unsupported value %q (use sqlite, algolia, or tmdb)", c.Store.Catalog)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	return nil
}

// ValidateBackend checks that the selected text-generation backend has the
// settings it needs to make calls.
func (c *Config) ValidateBackend() error {
	if c.UsesLocalBackend() {
		if strings.TrimSpace(c.Local.Model) == "" {
			return errors.New("local.model is required when backend.mode is local")
		}
		return nil
	}
	switch c.Backend.Provider {
	case ProviderAlgolia:
		return c.validateAlgoliaCredentials("backend.provider = algolia")
	default:
		if c.LLM.APIKey == "" {
			env := strings.Join(providerKeyEnv(c.Backend.Provider), " or ")
			return fmt.Errorf("llm.api_key is required for provider %s. Set %s or edit the config (create with 'paradiso config init')", c.Backend.Provider, env)
		}
		if c.LLM.Model == "" {
			return fmt.Errorf("llm.model is required for provider %s", c.Backend.Provider)
		}
	}
	return nil
}

// ValidateStores checks credentials for non-local review and catalog stores.
func (c *Config) ValidateStores() error {
	if c.Store.Reviews == StoreAlgolia {
		if err := c.validateAlgoliaCredentials("store.reviews = algolia"); err != nil {
			return err
		}
	}
	switch c.Store.Catalog {
	case StoreAlgolia:
		return c.validateAlgoliaCredentials("store.catalog = algolia")
	case StoreTMDB:
		if c.TMDB.APIKey == "" {
			return errors.New("tmdb.api_key is required when store.catalog = tmdb. Set TMDB_API_KEY or edit the config")
		}
	}
	return nil
}

func (c *Config) validateAlgoliaCredentials(reason string) error {
	if c.Algolia.AppID == "" || c.Algolia.APIKey == "" {
		return fmt.Errorf("algolia.app_id and algolia.api_key are required when %s. Set ALGOLIA_APP_ID and ALGOLIA_ADMIN_KEY or edit the config", reason)
	}
	return nil
}
