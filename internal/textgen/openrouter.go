package textgen

import (
	"context"

	"paradiso/internal/services/llm"
)

type openRouterBackend struct {
	client *llm.Client
}

func newOpenRouterBackend(client *llm.Client) *openRouterBackend {
	return &openRouterBackend{client: client}
}

func (b *openRouterBackend) Generate(ctx context.Context, req Request) (string, error) {
	return b.client.Complete(ctx, req.Prompt.Instructions, userMessage(req), wantsJSON(req.Prompt.Instructions))
}
