package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeReconcile()
	c.normalizeBackend()
	c.normalizeLLM()
	c.normalizeLocal()
	c.normalizeAlgolia()
	c.normalizeTMDB()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(strings.TrimSpace(c.Paths.DataDir)); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Store.SQLitePath = strings.TrimSpace(c.Store.SQLitePath)
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = filepath.Join(c.Paths.DataDir, defaultSQLiteName)
	}
	if c.Store.SQLitePath, err = expandPath(c.Store.SQLitePath); err != nil {
		return fmt.Errorf("store.sqlite_path: %w", err)
	}
	c.Store.Reviews = lowerTrim(c.Store.Reviews, StoreSQLite)
	c.Store.Catalog = lowerTrim(c.Store.Catalog, StoreSQLite)
	return nil
}

func (c *Config) normalizeReconcile() {
	if c.Reconcile.BatchSize == 0 {
		c.Reconcile.BatchSize = defaultBatchSize
	}
	if c.Reconcile.Limit == 0 {
		c.Reconcile.Limit = defaultLimit
	}
	if c.Reconcile.MaxCandidates == 0 {
		c.Reconcile.MaxCandidates = defaultMaxCandidates
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = defaultRetryAttempts
	}
	if c.Retry.BaseDelaySeconds == 0 {
		c.Retry.BaseDelaySeconds = defaultRetryBaseSeconds
	}
	if c.Retry.MaxDelaySeconds == 0 {
		c.Retry.MaxDelaySeconds = defaultRetryMaxSeconds
	}
}

func (c *Config) normalizeBackend() {
	c.Backend.Mode = lowerTrim(c.Backend.Mode, BackendHosted)
	c.Backend.Provider = lowerTrim(c.Backend.Provider, ProviderOpenRouter)
	if c.Backend.HostedTimeoutSeconds == 0 {
		c.Backend.HostedTimeoutSeconds = defaultHostedTimeoutSeconds
	}
	if c.Backend.LocalTimeoutSeconds == 0 {
		c.Backend.LocalTimeoutSeconds = defaultLocalTimeoutSeconds
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = lookupEnv(providerKeyEnv(c.Backend.Provider)...)
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" && c.Backend.Provider == ProviderOpenRouter {
		c.LLM.BaseURL = defaultOpenRouterBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultModel(c.Backend.Provider)
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.Referer == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
}

func (c *Config) normalizeLocal() {
	c.Local.BaseURL = strings.TrimRight(strings.TrimSpace(c.Local.BaseURL), "/")
	if c.Local.BaseURL == "" {
		if host := lookupEnv("OLLAMA_HOST"); host != "" {
			if !strings.Contains(host, "://") {
				host = "http://" + host
			}
			c.Local.BaseURL = strings.TrimRight(host, "/")
		} else {
			c.Local.BaseURL = defaultLocalBaseURL
		}
	}
	c.Local.Model = strings.TrimSpace(c.Local.Model)
	if c.Local.Model == "" {
		c.Local.Model = defaultLocalModel
	}
}

func (c *Config) normalizeAlgolia() {
	c.Algolia.AppID = strings.TrimSpace(c.Algolia.AppID)
	if c.Algolia.AppID == "" {
		c.Algolia.AppID = lookupEnv("ALGOLIA_APP_ID", "NEXT_PUBLIC_ALGOLIA_APP_ID")
	}
	c.Algolia.APIKey = strings.TrimSpace(c.Algolia.APIKey)
	if c.Algolia.APIKey == "" {
		c.Algolia.APIKey = lookupEnv("ALGOLIA_ADMIN_KEY")
	}
	if c.Algolia.ReviewsIndex = strings.TrimSpace(c.Algolia.ReviewsIndex); c.Algolia.ReviewsIndex == "" {
		c.Algolia.ReviewsIndex = defaultReviewsIndex
	}
	if c.Algolia.MoviesIndex = strings.TrimSpace(c.Algolia.MoviesIndex); c.Algolia.MoviesIndex == "" {
		c.Algolia.MoviesIndex = defaultMoviesIndex
	}
	c.Algolia.GenAIBaseURL = strings.TrimRight(strings.TrimSpace(c.Algolia.GenAIBaseURL), "/")
	if c.Algolia.GenAIBaseURL == "" {
		c.Algolia.GenAIBaseURL = defaultGenAIBaseURL
	}
}

func (c *Config) normalizeTMDB() {
	c.TMDB.APIKey = strings.TrimSpace(c.TMDB.APIKey)
	if c.TMDB.APIKey == "" {
		c.TMDB.APIKey = lookupEnv("TMDB_API_KEY")
	}
	c.TMDB.BaseURL = strings.TrimSpace(c.TMDB.BaseURL)
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	c.TMDB.Language = strings.TrimSpace(c.TMDB.Language)
	if c.TMDB.Language == "" {
		c.TMDB.Language = defaultTMDBLanguage
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = lowerTrim(c.Logging.Format, defaultLogFormat)
	c.Logging.Level = lowerTrim(c.Logging.Level, defaultLogLevel)
}

func providerKeyEnv(provider string) []string {
	switch provider {
	case ProviderOpenAI:
		return []string{"OPENAI_API_KEY"}
	case ProviderAnthropic:
		return []string{"ANTHROPIC_API_KEY"}
	case ProviderGemini:
		return []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	case ProviderOpenRouter:
		return []string{"OPENROUTER_API_KEY"}
	default:
		return nil
	}
}

func defaultModel(provider string) string {
	switch provider {
	case ProviderOpenRouter:
		return defaultOpenRouterModel
	case ProviderOpenAI:
		return defaultOpenAIModel
	case ProviderAnthropic:
		return defaultAnthropicModel
	case ProviderGemini:
		return defaultGeminiModel
	default:
		return ""
	}
}

func lookupEnv(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func lowerTrim(value, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	return value
}

// OverrideBackend applies command-line backend selections on top of the
// loaded file. Provider-derived defaults (model, key, base URL) are recomputed
// when the provider changes unless the file set them explicitly.
func (c *Config) OverrideBackend(mode, provider, localModel string) error {
	if mode = strings.ToLower(strings.TrimSpace(mode)); mode != "" {
		c.Backend.Mode = mode
	}
	if provider = strings.ToLower(strings.TrimSpace(provider)); provider != "" && provider != c.Backend.Provider {
		if c.LLM.Model == defaultModel(c.Backend.Provider) {
			c.LLM.Model = ""
		}
		if c.LLM.APIKey != "" && c.LLM.APIKey == lookupEnv(providerKeyEnv(c.Backend.Provider)...) {
			c.LLM.APIKey = ""
		}
		if c.LLM.BaseURL == defaultOpenRouterBaseURL {
			c.LLM.BaseURL = ""
		}
		c.Backend.Provider = provider
		if mode == "" {
			c.Backend.Mode = BackendHosted
		}
	}
	if localModel = strings.TrimSpace(localModel); localModel != "" {
		c.Local.Model = localModel
		if mode == "" {
			c.Backend.Mode = BackendLocal
		}
	}
	c.normalizeBackend()
	c.normalizeLLM()
	c.normalizeLocal()
	return c.validateBackendShape()
}
