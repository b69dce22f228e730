package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"paradiso/internal/config"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())
	for _, key := range []string{
		"OPENROUTER_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY",
		"ALGOLIA_APP_ID", "NEXT_PUBLIC_ALGOLIA_APP_ID", "ALGOLIA_ADMIN_KEY", "TMDB_API_KEY", "OLLAMA_HOST",
	} {
		t.Setenv(key, "")
	}
	return home
}

func TestLoadDefaultsExpandPaths(t *testing.T) {
	home := isolateEnv(t)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if resolved != filepath.Join(home, ".config", "paradiso", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}

	wantData := filepath.Join(home, ".local", "share", "paradiso")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Store.SQLitePath != filepath.Join(wantData, "paradiso.db") {
		t.Fatalf("unexpected sqlite path: %q", cfg.Store.SQLitePath)
	}
	if cfg.LockPath() != filepath.Join(wantData, "reconcile.lock") {
		t.Fatalf("unexpected lock path: %q", cfg.LockPath())
	}
	if cfg.Reconcile.BatchSize != 10 || cfg.Reconcile.Limit != 100 || cfg.Reconcile.MaxCandidates != 10 {
		t.Fatalf("unexpected reconcile defaults: %+v", cfg.Reconcile)
	}
	if cfg.Pacing() != 100*time.Millisecond {
		t.Fatalf("unexpected pacing: %s", cfg.Pacing())
	}
	base, maxDelay := cfg.RetryDelays()
	if cfg.Retry.MaxAttempts != 3 || base != time.Second || maxDelay != 10*time.Second {
		t.Fatalf("unexpected retry defaults: %+v", cfg.Retry)
	}
	if cfg.CallTimeout() != 30*time.Second {
		t.Fatalf("expected hosted timeout 30s, got %s", cfg.CallTimeout())
	}
	if cfg.LLM.BaseURL == "" || cfg.LLM.Model == "" {
		t.Fatalf("expected openrouter defaults, got %+v", cfg.LLM)
	}
	if cfg.Reconcile.RevisitMedium {
		t.Fatal("expected medium revisit disabled by default")
	}
}

func TestLoadCustomPath(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "paradiso.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"

[reconcile]
batch_size = 25
limit = 500
revisit_medium = true

[backend]
mode = "LOCAL"

[local]
model = "llama3"
base_url = "http://gpu-box:11434/"

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected custom path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Reconcile.BatchSize != 25 || cfg.Reconcile.Limit != 500 || !cfg.Reconcile.RevisitMedium {
		t.Fatalf("unexpected reconcile settings: %+v", cfg.Reconcile)
	}
	if !cfg.UsesLocalBackend() {
		t.Fatal("expected local backend")
	}
	if cfg.CallTimeout() != 60*time.Second {
		t.Fatalf("expected local timeout 60s, got %s", cfg.CallTimeout())
	}
	if cfg.Local.BaseURL != "http://gpu-box:11434" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Local.BaseURL)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lowercased format, got %q", cfg.Logging.Format)
	}
	if err := cfg.ValidateBackend(); err != nil {
		t.Fatalf("ValidateBackend: %v", err)
	}
}

func TestDotEnvSuppliesCredentials(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[store]\nreviews = \"algolia\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	envFile := "ALGOLIA_APP_ID=APP123\nALGOLIA_ADMIN_KEY=admin-secret\nOPENROUTER_API_KEY=or-key\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(envFile), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	// Cleared keys exist as empty values; unset them so godotenv can fill them.
	for _, key := range []string{"ALGOLIA_APP_ID", "ALGOLIA_ADMIN_KEY", "OPENROUTER_API_KEY"} {
		os.Unsetenv(key)
	}
	t.Cleanup(func() {
		for _, key := range []string{"ALGOLIA_APP_ID", "ALGOLIA_ADMIN_KEY", "OPENROUTER_API_KEY"} {
			os.Unsetenv(key)
		}
	})

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Algolia.AppID != "APP123" || cfg.Algolia.APIKey != "admin-secret" {
		t.Fatalf("expected algolia credentials from .env, got %+v", cfg.Algolia)
	}
	if cfg.LLM.APIKey != "or-key" {
		t.Fatalf("expected llm key from .env, got %q", cfg.LLM.APIKey)
	}
	if err := cfg.ValidateStores(); err != nil {
		t.Fatalf("ValidateStores: %v", err)
	}
	if err := cfg.ValidateBackend(); err != nil {
		t.Fatalf("ValidateBackend: %v", err)
	}
}

func TestProviderSelectsKeyEnvAndModel(t *testing.T) {
	isolateEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "anthropic-key")
	t.Setenv("OPENROUTER_API_KEY", "wrong-key")
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[backend]\nprovider = \"anthropic\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "anthropic-key" {
		t.Fatalf("expected provider-specific key, got %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model == "" || strings.Contains(cfg.LLM.Model, "gemini") {
		t.Fatalf("expected anthropic default model, got %q", cfg.LLM.Model)
	}
	if cfg.LLM.BaseURL != "" {
		t.Fatalf("openrouter base url should not apply to anthropic, got %q", cfg.LLM.BaseURL)
	}
}

func TestOverrideBackendRecomputesProviderDefaults(t *testing.T) {
	isolateEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "router-key")
	t.Setenv("ANTHROPIC_API_KEY", "anthropic-key")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if err := cfg.OverrideBackend("", "Anthropic", ""); err != nil {
		t.Fatalf("OverrideBackend: %v", err)
	}
	if cfg.Backend.Provider != config.ProviderAnthropic || cfg.Backend.Mode != config.BackendHosted {
		t.Fatalf("unexpected backend %+v", cfg.Backend)
	}
	if cfg.LLM.APIKey != "anthropic-key" {
		t.Fatalf("expected anthropic key, got %q", cfg.LLM.APIKey)
	}
	if strings.Contains(cfg.LLM.Model, "gemini") || cfg.LLM.BaseURL != "" {
		t.Fatalf("openrouter defaults leaked: model=%q base=%q", cfg.LLM.Model, cfg.LLM.BaseURL)
	}

	if err := cfg.OverrideBackend("", "", "llama3"); err != nil {
		t.Fatalf("OverrideBackend local: %v", err)
	}
	if !cfg.UsesLocalBackend() || cfg.Local.Model != "llama3" {
		t.Fatalf("expected local llama3, got %+v %+v", cfg.Backend, cfg.Local)
	}

	if err := cfg.OverrideBackend("remote", "", ""); err == nil {
		t.Fatal("expected unsupported mode error")
	}
}

func TestValidateBackendRequiresCredentials(t *testing.T) {
	isolateEnv(t)
	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if err := cfg.ValidateBackend(); err == nil {
		t.Fatal("expected missing api key error")
	}

	cfg.Backend.Provider = config.ProviderAlgolia
	if err := cfg.ValidateBackend(); err == nil || !strings.Contains(err.Error(), "algolia") {
		t.Fatalf("expected algolia credential error, got %v", err)
	}

	cfg.Store.Catalog = config.StoreTMDB
	if err := cfg.ValidateStores(); err == nil {
		t.Fatal("expected tmdb key error")
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Reconcile.BatchSize != 10 || cfg.Backend.Mode != "hosted" {
		t.Fatalf("sample does not carry defaults: %+v %+v", cfg.Reconcile, cfg.Backend)
	}
	if !strings.Contains(cfg.Paths.DataDir, "paradiso") {
		t.Fatalf("expected data dir to contain paradiso, got %q", cfg.Paths.DataDir)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"batch size too large", func(c *config.Config) { c.Reconcile.BatchSize = 5000 }},
		{"negative limit", func(c *config.Config) { c.Reconcile.Limit = -1 }},
		{"negative pacing", func(c *config.Config) { c.Reconcile.PacingMillis = -5 }},
		{"retry cap below base", func(c *config.Config) { c.Retry.BaseDelaySeconds = 5; c.Retry.MaxDelaySeconds = 2 }},
		{"unknown mode", func(c *config.Config) { c.Backend.Mode = "remote" }},
		{"unknown provider", func(c *config.Config) { c.Backend.Provider = "mystery" }},
		{"unknown review store", func(c *config.Config) { c.Store.Reviews = "postgres" }},
		{"tmdb review store", func(c *config.Config) { c.Store.Reviews = "tmdb" }},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
