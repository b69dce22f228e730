package textgen

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"paradiso/internal/services"
)

type geminiBackend struct {
	client *genai.Client
	model  string
}

func newGeminiBackend(ctx context.Context, apiKey, model string) (*geminiBackend, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "gemini", "client", "create client", err)
	}
	return &geminiBackend{client: client, model: model}, nil
}

func (b *geminiBackend) Generate(ctx context.Context, req Request) (string, error) {
	model := b.client.GenerativeModel(b.model)
	model.SetTemperature(0)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.Prompt.Instructions)}}
	if wantsJSON(req.Prompt.Instructions) {
		model.ResponseMIMEType = "application/json"
	}
	resp, err := model.GenerateContent(ctx, genai.Text(userMessage(req)))
	if err != nil {
		// A safety block carries no usable text; the normalizer turns the
		// empty answer into low confidence or abstention.
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return "", nil
		}
		return "", classifyGemini(err)
	}
	return geminiText(resp), nil
}

// Close releases the underlying client.
func (b *geminiBackend) Close() error {
	return b.client.Close()
}

func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		if b.Len() > 0 {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

func classifyGemini(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code > 0 {
		retryAfter := ""
		if apiErr.Header != nil {
			retryAfter = apiErr.Header.Get("Retry-After")
		}
		return services.NewStatusError("gemini", apiErr.Code, []byte(apiErr.Message), retryAfter)
	}
	return services.ClassifyTransport("gemini", err)
}
