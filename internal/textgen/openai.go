package textgen

import (
	"context"
	"errors"
	"strings"

	"github.com/sashabaranov/go-openai"

	"paradiso/internal/services"
)

// openAIBackend talks to the OpenAI chat API or any compatible server. The
// local path reuses it against Ollama's /v1 endpoint with a single user
// prompt instead of a system/user pair.
type openAIBackend struct {
	client  *openai.Client
	model   string
	service string
	local   bool
}

func newOpenAIBackend(apiKey, baseURL, model string) *openAIBackend {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &openAIBackend{client: openai.NewClientWithConfig(cfg), model: model, service: "openai"}
}

func newLocalBackend(baseURL, model string) *openAIBackend {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if !strings.HasSuffix(baseURL, "/v1") {
		baseURL += "/v1"
	}
	// Ollama ignores the key but the client requires one.
	backend := newOpenAIBackend("ollama", baseURL, model)
	backend.service = "ollama"
	backend.local = true
	return backend
}

func (b *openAIBackend) Generate(ctx context.Context, req Request) (string, error) {
	var messages []openai.ChatCompletionMessage
	if b.local {
		messages = []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(req)},
		}
	} else {
		messages = []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.Prompt.Instructions},
			{Role: openai.ChatMessageRoleUser, Content: userMessage(req)},
		}
	}
	chat := openai.ChatCompletionRequest{
		Model:       b.model,
		Messages:    messages,
		Temperature: 0,
	}
	if wantsJSON(req.Prompt.Instructions) {
		chat.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	resp, err := b.client.CreateChatCompletion(ctx, chat)
	if err != nil {
		return "", classifyOpenAI(b.service, err)
	}
	for _, choice := range resp.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
	}
	return "", services.Wrap(services.ErrTransient, b.service, "generate", "no response choices", nil)
}

func classifyOpenAI(service string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return services.NewStatusError(service, apiErr.HTTPStatusCode, []byte(apiErr.Message), "")
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		body := ""
		if reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return services.NewStatusError(service, reqErr.HTTPStatusCode, []byte(body), "")
	}
	return services.ClassifyTransport(service, err)
}
