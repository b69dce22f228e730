package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"paradiso/internal/config"
	"paradiso/internal/testsupport"
	"paradiso/internal/textgen"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	backend    *testsupport.ScriptedBackend
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{
		"OPENROUTER_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY",
		"ALGOLIA_APP_ID", "NEXT_PUBLIC_ALGOLIA_APP_ID", "ALGOLIA_ADMIN_KEY", "TMDB_API_KEY", "OLLAMA_HOST",
	} {
		t.Setenv(key, "")
	}

	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithLocalModel("test-model")}, opts...)...)
	configPath := filepath.Join(home, ".config", "paradiso", "config.toml")
	writeTestConfig(t, configPath, cfg)

	backend := testsupport.NewScriptedBackend()
	previous := newBackend
	newBackend = func(context.Context, *config.Config, *slog.Logger) (textgen.Backend, error) {
		return backend, nil
	}
	t.Cleanup(func() { newBackend = previous })

	return &cliTestEnv{cfg: cfg, configPath: configPath, backend: backend}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	return runCLIContext(t, context.Background(), args, configPath)
}

func runCLIContext(t *testing.T, ctx context.Context, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireNotContains(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Fatalf("expected %q not to contain %q", output, substr)
	}
}
