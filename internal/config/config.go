package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Reconcile contains the batch loop settings for a reconciliation pass.
type Reconcile struct {
	BatchSize     int  `toml:"batch_size"`
	Limit         int  `toml:"limit"`
	MaxCandidates int  `toml:"max_candidates"`
	PacingMillis  int  `toml:"pacing_ms"`
	RevisitMedium bool `toml:"revisit_medium"`
}

// Retry contains the per-call retry policy for backend generation calls.
type Retry struct {
	MaxAttempts      int `toml:"max_attempts"`
	BaseDelaySeconds int `toml:"base_delay_seconds"`
	MaxDelaySeconds  int `toml:"max_delay_seconds"`
}

// Backend selects the text-generation backend used by both stages.
type Backend struct {
	Mode                 string `toml:"mode"`
	Provider             string `toml:"provider"`
	HostedTimeoutSeconds int    `toml:"hosted_timeout_seconds"`
	LocalTimeoutSeconds  int    `toml:"local_timeout_seconds"`
}

// LLM contains hosted provider connection settings.
type LLM struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	Referer string `toml:"referer"`
	Title   string `toml:"title"`
}

// Local contains settings for a locally served model (Ollama).
type Local struct {
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// Store selects the review and catalog store implementations.
type Store struct {
	Reviews    string `toml:"reviews"`
	Catalog    string `toml:"catalog"`
	SQLitePath string `toml:"sqlite_path"`
}

// Algolia contains credentials and index names for the hosted search index
// and its generative endpoint.
type Algolia struct {
	AppID        string `toml:"app_id"`
	APIKey       string `toml:"api_key"`
	ReviewsIndex string `toml:"reviews_index"`
	MoviesIndex  string `toml:"movies_index"`
	GenAIBaseURL string `toml:"genai_base_url"`
}

// TMDB contains configuration for The Movie Database API.
type TMDB struct {
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
	Language string `toml:"language"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for paradiso.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Reconcile: page size, processing limit, pacing, medium revisit
//   - Retry: attempts and backoff for generation calls
//   - Backend, LLM, Local: which generator answers and how to reach it
//   - Store, Algolia, TMDB: where reviews and the catalog live
//   - Logging: log format, level, and retention
type Config struct {
	Paths     Paths     `toml:"paths"`
	Reconcile Reconcile `toml:"reconcile"`
	Retry     Retry     `toml:"retry"`
	Backend   Backend   `toml:"backend"`
	LLM       LLM       `toml:"llm"`
	Local     Local     `toml:"local"`
	Store     Store     `toml:"store"`
	Algolia   Algolia   `toml:"algolia"`
	TMDB      TMDB      `toml:"tmdb"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file next to the config file or in the
// working directory is loaded first; variables already present in the environment win.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(filepath.Dir(resolvedPath)); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("paradiso.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func loadDotEnv(configDir string) error {
	candidates := []string{".env"}
	if configDir != "" && configDir != "." {
		candidates = append(candidates, filepath.Join(configDir, ".env"))
	}
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		if info, err := os.Stat(abs); err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(abs); err != nil {
			return fmt.Errorf("load env file %s: %w", abs, err)
		}
	}
	return nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, filepath.Dir(c.Store.SQLitePath)} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath is the cross-process lock guarding a reconciliation pass.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "reconcile.lock")
}

// UsesLocalBackend reports whether generation runs against a local model.
func (c *Config) UsesLocalBackend() bool {
	return c.Backend.Mode == BackendLocal
}

// CallTimeout returns the per-call timeout for the selected backend path.
func (c *Config) CallTimeout() time.Duration {
	if c.UsesLocalBackend() {
		return time.Duration(c.Backend.LocalTimeoutSeconds) * time.Second
	}
	return time.Duration(c.Backend.HostedTimeoutSeconds) * time.Second
}

// Pacing returns the delay inserted between reviews.
func (c *Config) Pacing() time.Duration {
	return time.Duration(c.Reconcile.PacingMillis) * time.Millisecond
}

// RetryDelays returns the base and maximum backoff for generation retries.
func (c *Config) RetryDelays() (time.Duration, time.Duration) {
	return time.Duration(c.Retry.BaseDelaySeconds) * time.Second, time.Duration(c.Retry.MaxDelaySeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
