package textgen

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"paradiso/internal/services"
)

// Source names the data a request is grounded on.
type Source string

const (
	// SourceReviews grounds a request on the review collection.
	SourceReviews Source = "reviews"
	// SourceCatalog grounds a request on the movie catalog.
	SourceCatalog Source = "catalog"
)

// StatusError is the HTTP failure type shared by every provider.
type StatusError = services.StatusError

// Prompt is a named instruction set. Providers that store prompts server-side
// register it under Name.
type Prompt struct {
	Name         string
	Instructions string
}

// Request is one generation call.
type Request struct {
	Prompt Prompt
	Query  string
	// Scope restricts hosted retrieval to these object IDs.
	Scope  []string
	Source Source
	// Records are context records appended as [SEARCH RESULTS].
	Records []any
}

// Backend produces raw, untrusted text for a request.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Preparer is implemented by backends that must register prompts or data
// sources before the first call. Prepare is idempotent.
type Preparer interface {
	Prepare(ctx context.Context, prompts ...Prompt) error
}

// BuildPrompt renders the single-prompt layout used by the local backend.
func BuildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("[INSTRUCTIONS]\n")
	b.WriteString(strings.TrimSpace(req.Prompt.Instructions))
	b.WriteString("\n\n[QUERY]\n")
	b.WriteString(req.Query)
	if results := recordsJSON(req.Records); results != "" {
		b.WriteString("\n\n[SEARCH RESULTS]\n")
		b.WriteString(results)
	}
	return b.String()
}

// userMessage is the user turn for chat providers: the query plus any
// context records.
func userMessage(req Request) string {
	results := recordsJSON(req.Records)
	if results == "" {
		return req.Query
	}
	return req.Query + "\n\n[SEARCH RESULTS]\n" + results
}

// wantsJSON reports whether the instructions ask for a JSON reply.
func wantsJSON(instructions string) bool {
	return strings.Contains(strings.ToLower(instructions), "json")
}

func recordsJSON(records []any) string {
	if len(records) == 0 {
		return ""
	}
	encoded, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return ""
	}
	return string(encoded)
}

type timeoutBackend struct {
	next    Backend
	timeout time.Duration
}

// WithTimeout bounds every Generate call on next by d.
func WithTimeout(next Backend, d time.Duration) Backend {
	if d <= 0 {
		return next
	}
	return &timeoutBackend{next: next, timeout: d}
}

func (b *timeoutBackend) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.Generate(ctx, req)
}

// Close releases the wrapped backend's resources when it holds any.
func (b *timeoutBackend) Close() error {
	if c, ok := b.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Prepare forwards to the wrapped backend when it needs preparation.
func (b *timeoutBackend) Prepare(ctx context.Context, prompts ...Prompt) error {
	if p, ok := b.next.(Preparer); ok {
		return p.Prepare(ctx, prompts...)
	}
	return nil
}
