package testsupport

import (
	"path/filepath"
	"testing"

	"paradiso/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Both stores default to a SQLite database under the temp directory and the
// pacing delay is zero.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Store.SQLitePath = filepath.Join(base, "data", "paradiso.db")
	cfgVal.Reconcile.PacingMillis = 0
	cfgVal.LLM.APIKey = "test"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithProvider selects a hosted provider.
func WithProvider(provider string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Backend.Mode = config.BackendHosted
		b.cfg.Backend.Provider = provider
	}
}

// WithLocalModel selects the local backend with the given model.
func WithLocalModel(model string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Backend.Mode = config.BackendLocal
		b.cfg.Local.Model = model
	}
}

// WithReconcile overrides the batch loop settings.
func WithReconcile(batchSize, limit int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Reconcile.BatchSize = batchSize
		b.cfg.Reconcile.Limit = limit
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
