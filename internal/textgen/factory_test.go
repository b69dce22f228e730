package textgen

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/liushuangls/go-anthropic/v2"
	"google.golang.org/api/googleapi"

	"paradiso/internal/config"
	"paradiso/internal/logging"
	"paradiso/internal/services"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.LLM.Model = "demo"
	cfg.LLM.BaseURL = "http://127.0.0.1:1"
	return &cfg
}

func TestNewRejectsMissingCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.APIKey = ""
	if _, err := New(context.Background(), cfg, logging.NewNop()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewSelectsProviders(t *testing.T) {
	for _, provider := range []string{config.ProviderOpenRouter, config.ProviderOpenAI, config.ProviderAnthropic} {
		cfg := testConfig()
		cfg.Backend.Provider = provider
		cfg.LLM.APIKey = "key"
		backend, err := New(context.Background(), cfg, logging.NewNop())
		if err != nil {
			t.Fatalf("%s: New: %v", provider, err)
		}
		if backend == nil {
			t.Fatalf("%s: nil backend", provider)
		}
	}
}

func TestNewLocalIgnoresHostedCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.Backend.Mode = config.BackendLocal
	cfg.LLM.APIKey = ""
	backend, err := New(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tb, ok := backend.(*timeoutBackend)
	if !ok || tb.timeout != cfg.CallTimeout() {
		t.Fatalf("expected local timeout wrapper, got %#v", backend)
	}
	if local, ok := tb.next.(*openAIBackend); !ok || !local.local {
		t.Fatalf("expected local backend, got %#v", tb.next)
	}
}

func TestNewAlgoliaRequiresCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.Backend.Provider = config.ProviderAlgolia
	if _, err := New(context.Background(), cfg, logging.NewNop()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	cfg.Algolia.AppID = "app"
	cfg.Algolia.APIKey = "key"
	backend, err := New(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := backend.(Preparer); !ok {
		t.Fatal("algolia backend must be a Preparer")
	}
}

func TestDescribe(t *testing.T) {
	cfg := testConfig()
	if got := Describe(cfg); got != "hosted (openrouter, demo)" {
		t.Fatalf("unexpected description %q", got)
	}
	cfg.Backend.Mode = config.BackendLocal
	if got := Describe(cfg); got != "local (mistral @ http://localhost:11434)" {
		t.Fatalf("unexpected description %q", got)
	}
}

func TestClassifyAnthropic(t *testing.T) {
	err := classifyAnthropic(&anthropic.APIError{Type: anthropic.ErrTypeRateLimit, Message: "slow"})
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected rate limit, got %v", err)
	}
	err = classifyAnthropic(&anthropic.APIError{Type: anthropic.ErrTypeOverloaded, Message: "busy"})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient, got %v", err)
	}
	err = classifyAnthropic(&anthropic.APIError{Type: anthropic.ErrTypeAuthentication, Message: "bad key"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration, got %v", err)
	}
}

func TestClassifyGemini(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "4")
	err := classifyGemini(&googleapi.Error{Code: http.StatusTooManyRequests, Message: "quota", Header: header})
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected rate limit, got %v", err)
	}
	if services.RetryAfter(err).Seconds() != 4 {
		t.Fatalf("expected retry-after, got %s", services.RetryAfter(err))
	}
	if err := classifyGemini(errors.New("connection reset")); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient, got %v", err)
	}
}
