package testsupport

import (
	"context"
	"fmt"
	"sync"

	"paradiso/internal/textgen"
)

// Reply is one scripted backend answer.
type Reply struct {
	Text string
	Err  error
}

// ScriptedBackend answers generation calls from per-prompt queues and records
// every request. A prompt with an empty queue fails the call.
type ScriptedBackend struct {
	mu       sync.Mutex
	replies  map[string][]Reply
	requests []textgen.Request
}

var _ textgen.Backend = (*ScriptedBackend)(nil)

// NewScriptedBackend returns an empty backend.
func NewScriptedBackend() *ScriptedBackend {
	return &ScriptedBackend{replies: make(map[string][]Reply)}
}

// Queue appends replies for the prompt named promptName.
func (b *ScriptedBackend) Queue(promptName string, replies ...Reply) *ScriptedBackend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replies[promptName] = append(b.replies[promptName], replies...)
	return b
}

// Text queues plain text replies.
func (b *ScriptedBackend) Text(promptName string, texts ...string) *ScriptedBackend {
	replies := make([]Reply, 0, len(texts))
	for _, text := range texts {
		replies = append(replies, Reply{Text: text})
	}
	return b.Queue(promptName, replies...)
}

// Generate pops the next reply for req.Prompt.Name.
func (b *ScriptedBackend) Generate(ctx context.Context, req textgen.Request) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	queue := b.replies[req.Prompt.Name]
	if len(queue) == 0 {
		return "", fmt.Errorf("no scripted reply for prompt %q", req.Prompt.Name)
	}
	reply := queue[0]
	b.replies[req.Prompt.Name] = queue[1:]
	return reply.Text, reply.Err
}

// Requests returns the recorded requests, optionally filtered by prompt name.
func (b *ScriptedBackend) Requests(promptName string) []textgen.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	if promptName == "" {
		return append([]textgen.Request(nil), b.requests...)
	}
	var out []textgen.Request
	for _, req := range b.requests {
		if req.Prompt.Name == promptName {
			out = append(out, req)
		}
	}
	return out
}
