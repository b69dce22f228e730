package config

// Backend modes.
const (
	BackendHosted = "hosted"
	BackendLocal  = "local"
)

// Hosted providers.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGemini     = "gemini"
	ProviderAlgolia    = "algolia"
)

// Store kinds.
const (
	StoreSQLite  = "sqlite"
	StoreAlgolia = "algolia"
	StoreTMDB    = "tmdb"
)

const (
	defaultConfigPath           = "~/.config/paradiso/config.toml"
	defaultDataDir              = "~/.local/share/paradiso"
	defaultLogDir               = "~/.local/share/paradiso/logs"
	defaultSQLiteName           = "paradiso.db"
	defaultLogRetentionDays     = 30
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultBatchSize            = 10
	defaultLimit                = 100
	defaultMaxCandidates        = 10
	defaultPacingMillis         = 100
	defaultRetryAttempts        = 3
	defaultRetryBaseSeconds     = 1
	defaultRetryMaxSeconds      = 10
	defaultHostedTimeoutSeconds = 30
	defaultLocalTimeoutSeconds  = 60
	defaultLocalBaseURL         = "http://localhost:11434"
	defaultLocalModel           = "mistral"
	defaultOpenRouterBaseURL    = "https://openrouter.ai/api/v1/chat/completions"
	defaultOpenRouterModel      = "google/gemini-3-flash-preview"
	defaultOpenAIModel          = "gpt-4o-mini"
	defaultAnthropicModel       = "claude-3-5-haiku-20241022"
	defaultGeminiModel          = "gemini-1.5-flash"
	defaultLLMReferer           = "https://github.com/paradiso/paradiso"
	defaultLLMTitle             = "Paradiso Review Reconciler"
	defaultReviewsIndex         = "paradiso_reviews"
	defaultMoviesIndex          = "paradiso_movies"
	defaultGenAIBaseURL         = "https://generative-us.algolia.com"
	defaultTMDBLanguage         = "en-US"
	defaultTMDBBaseURL          = "https://api.themoviedb.org/3"

	// maxBatchSize mirrors the hosted index's hitsPerPage ceiling.
	maxBatchSize = 1000
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Reconcile: Reconcile{
			BatchSize:     defaultBatchSize,
			Limit:         defaultLimit,
			MaxCandidates: defaultMaxCandidates,
			PacingMillis:  defaultPacingMillis,
		},
		Retry: Retry{
			MaxAttempts:      defaultRetryAttempts,
			BaseDelaySeconds: defaultRetryBaseSeconds,
			MaxDelaySeconds:  defaultRetryMaxSeconds,
		},
		Backend: Backend{
			Mode:                 BackendHosted,
			Provider:             ProviderOpenRouter,
			HostedTimeoutSeconds: defaultHostedTimeoutSeconds,
			LocalTimeoutSeconds:  defaultLocalTimeoutSeconds,
		},
		LLM: LLM{
			Referer: defaultLLMReferer,
			Title:   defaultLLMTitle,
		},
		Local: Local{
			BaseURL: defaultLocalBaseURL,
			Model:   defaultLocalModel,
		},
		Store: Store{
			Reviews: StoreSQLite,
			Catalog: StoreSQLite,
		},
		Algolia: Algolia{
			ReviewsIndex: defaultReviewsIndex,
			MoviesIndex:  defaultMoviesIndex,
			GenAIBaseURL: defaultGenAIBaseURL,
		},
		TMDB: TMDB{
			BaseURL:  defaultTMDBBaseURL,
			Language: defaultTMDBLanguage,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
