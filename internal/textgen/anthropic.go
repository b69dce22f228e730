package textgen

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"

	"paradiso/internal/services"
)

const anthropicMaxTokens = 512

type anthropicBackend struct {
	client *anthropic.Client
	model  string
}

func newAnthropicBackend(apiKey, baseURL, model string) *anthropicBackend {
	var opts []anthropic.ClientOption
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	return &anthropicBackend{client: anthropic.NewClient(apiKey, opts...), model: model}
}

func (b *anthropicBackend) Generate(ctx context.Context, req Request) (string, error) {
	temperature := float32(0)
	resp, err := b.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:  anthropic.Model(b.model),
		System: req.Prompt.Instructions,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(userMessage(req)),
		},
		MaxTokens:   anthropicMaxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return "", classifyAnthropic(err)
	}
	for _, content := range resp.Content {
		if content.Text != nil {
			if text := strings.TrimSpace(*content.Text); text != "" {
				return text, nil
			}
		}
	}
	return "", services.Wrap(services.ErrTransient, "anthropic", "generate", "no response content", nil)
}

func classifyAnthropic(err error) error {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		return services.NewStatusError("anthropic", anthropicStatus(apiErr), []byte(apiErr.Message), "")
	}
	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) && reqErr.StatusCode > 0 {
		body := ""
		if reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return services.NewStatusError("anthropic", reqErr.StatusCode, []byte(body), "")
	}
	return services.ClassifyTransport("anthropic", err)
}

// anthropicStatus recovers the HTTP status from the typed error body.
func anthropicStatus(apiErr *anthropic.APIError) int {
	switch {
	case apiErr.IsRateLimitErr():
		return http.StatusTooManyRequests
	case apiErr.IsOverloadedErr():
		return http.StatusServiceUnavailable
	case apiErr.IsApiErr():
		return http.StatusInternalServerError
	case apiErr.IsAuthenticationErr():
		return http.StatusUnauthorized
	case apiErr.IsPermissionErr():
		return http.StatusForbidden
	case apiErr.IsNotFoundErr():
		return http.StatusNotFound
	case apiErr.IsTooLargeErr():
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusBadRequest
	}
}
