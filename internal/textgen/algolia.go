package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"paradiso/internal/logging"
	"paradiso/internal/services"
	algoliasvc "paradiso/internal/services/algolia"
)

const (
	genAIService          = "algolia-genai"
	promptRegistryIndex   = "algolia_rag_prompts"
	sourceRegistryIndex   = "algolia_rag_data_sources"
	genAIUnscopedHits     = 20
	genAIDefaultTone      = "natural"
	genAIResponseSnippet  = 200
	genAIDefaultHTTPLimit = 30 * time.Second
)

// AlgoliaConfig configures the Algolia Generative Experiences backend.
type AlgoliaConfig struct {
	AppID   string
	APIKey  string
	BaseURL string
	// Indexes maps a request source to the search index backing it.
	Indexes map[Source]string
	Timeout time.Duration
}

// registry finds previously registered prompts and data sources by name.
type registry interface {
	lookup(ctx context.Context, index, name string) (string, bool, error)
}

type indexRegistry struct {
	open func(name string) algoliasvc.Index
}

func (r indexRegistry) lookup(ctx context.Context, index, name string) (string, bool, error) {
	return algoliasvc.LookupByName(ctx, r.open(index), name)
}

// algoliaBackend answers requests through the hosted generative endpoint.
// Prompts and data sources are registered once and cached by name.
type algoliaBackend struct {
	cfg        AlgoliaConfig
	httpClient *http.Client
	registry   registry
	logger     *slog.Logger

	mu      sync.Mutex
	prompts map[string]string
	sources map[Source]string
}

func newAlgoliaBackend(cfg AlgoliaConfig, reg registry, logger *slog.Logger) *algoliaBackend {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = genAIDefaultHTTPLimit
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	return &algoliaBackend{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		registry:   reg,
		logger:     logging.NewComponentLogger(logger, "algolia-genai"),
		prompts:    make(map[string]string),
		sources:    make(map[Source]string),
	}
}

// Prepare registers every prompt and every configured data source.
func (b *algoliaBackend) Prepare(ctx context.Context, prompts ...Prompt) error {
	for _, prompt := range prompts {
		if _, err := b.ensurePrompt(ctx, prompt); err != nil {
			return err
		}
	}
	for source := range b.cfg.Indexes {
		if _, err := b.ensureSource(ctx, source); err != nil {
			return err
		}
	}
	return nil
}

func (b *algoliaBackend) Generate(ctx context.Context, req Request) (string, error) {
	promptID, err := b.ensurePrompt(ctx, req.Prompt)
	if err != nil {
		return "", err
	}
	sourceID, err := b.ensureSource(ctx, req.Source)
	if err != nil {
		return "", err
	}
	payload := generateRequest{
		Query:                req.Query,
		PromptID:             promptID,
		DataSourceID:         sourceID,
		Save:                 true,
		UseCache:             false,
		Origin:               "api",
		NbHits:               genAIUnscopedHits,
		AttributesToRetrieve: []string{"*"},
	}
	if len(req.Scope) > 0 {
		payload.WithObjectIDs = req.Scope
		payload.NbHits = len(req.Scope)
	}
	var resp struct {
		Response string `json:"response"`
	}
	if err := b.post(ctx, "/generate/response", payload, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

type generateRequest struct {
	Query                string   `json:"query"`
	PromptID             string   `json:"promptId"`
	DataSourceID         string   `json:"dataSourceId"`
	Save                 bool     `json:"save"`
	UseCache             bool     `json:"useCache"`
	Origin               string   `json:"origin"`
	NbHits               int      `json:"nbHits"`
	AttributesToRetrieve []string `json:"attributesToRetrieve"`
	WithObjectIDs        []string `json:"withObjectIds,omitempty"`
}

func (b *algoliaBackend) ensurePrompt(ctx context.Context, prompt Prompt) (string, error) {
	name := strings.TrimSpace(prompt.Name)
	if name == "" {
		return "", services.Wrap(services.ErrValidation, genAIService, "prompt", "prompt name required", nil)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if id, ok := b.prompts[name]; ok {
		return id, nil
	}
	id, found, err := b.registry.lookup(ctx, promptRegistryIndex, name)
	if err != nil {
		b.logger.Warn("prompt lookup failed; creating",
			logging.String("prompt", name),
			logging.Error(err),
			logging.String(logging.FieldEventType, "genai_lookup_failed"),
			logging.String(logging.FieldErrorHint, "check the Algolia admin key has search rights on "+promptRegistryIndex),
			logging.String(logging.FieldImpact, "a duplicate prompt may be registered"),
		)
	}
	if !found {
		var created struct {
			ObjectID string `json:"objectID"`
		}
		body := map[string]string{"name": name, "instructions": prompt.Instructions, "tone": genAIDefaultTone}
		if err := b.post(ctx, "/create/prompt", body, &created); err != nil {
			return "", err
		}
		id = created.ObjectID
		b.logger.Info("registered prompt", logging.String("prompt", name), logging.String("prompt_id", id),
			logging.String(logging.FieldEventType, "genai_prompt_created"))
	}
	if id == "" {
		return "", services.Wrap(services.ErrExternalTool, genAIService, "create prompt", "empty objectID", nil)
	}
	b.prompts[name] = id
	return id, nil
}

func (b *algoliaBackend) ensureSource(ctx context.Context, source Source) (string, error) {
	index := strings.TrimSpace(b.cfg.Indexes[source])
	if index == "" {
		return "", services.Wrap(services.ErrConfiguration, genAIService, "data source", fmt.Sprintf("no index configured for %q", source), nil)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if id, ok := b.sources[source]; ok {
		return id, nil
	}
	name := index + " source"
	id, found, err := b.registry.lookup(ctx, sourceRegistryIndex, name)
	if err != nil {
		b.logger.Warn("data source lookup failed; creating",
			logging.String("data_source", name),
			logging.Error(err),
			logging.String(logging.FieldEventType, "genai_lookup_failed"),
			logging.String(logging.FieldErrorHint, "check the Algolia admin key has search rights on "+sourceRegistryIndex),
			logging.String(logging.FieldImpact, "a duplicate data source may be registered"),
		)
	}
	if !found {
		var created struct {
			ObjectID string `json:"objectID"`
		}
		if err := b.post(ctx, "/create/data_source", map[string]string{"name": name, "source": index}, &created); err != nil {
			return "", err
		}
		id = created.ObjectID
		b.logger.Info("registered data source", logging.String("data_source", name), logging.String("data_source_id", id),
			logging.String(logging.FieldEventType, "genai_source_created"))
	}
	if id == "" {
		return "", services.Wrap(services.ErrExternalTool, genAIService, "create data source", "empty objectID", nil)
	}
	b.sources[source] = id
	return id, nil
}

func (b *algoliaBackend) post(ctx context.Context, path string, payload any, target any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("genai %s: encode body: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("genai %s: new request: %w", path, err)
	}
	req.Header.Set("x-algolia-application-id", b.cfg.AppID)
	req.Header.Set("x-algolia-api-key", b.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return services.ClassifyTransport(genAIService, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return services.ClassifyTransport(genAIService, err)
	}
	if resp.StatusCode != http.StatusOK {
		return services.NewStatusError(genAIService, resp.StatusCode, truncate(body, genAIResponseSnippet), resp.Header.Get("Retry-After"))
	}
	if err := json.Unmarshal(body, target); err != nil {
		return services.Wrap(services.ErrExternalTool, genAIService, path, "decode response", err)
	}
	return nil
}

func truncate(body []byte, limit int) []byte {
	if len(body) <= limit {
		return body
	}
	return body[:limit]
}
