// Package scripted provides a canned core.ReasoningBackend for examples and
// tests. Responses are selected by prompt substring; no network is involved.
package scripted

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gridmind/gridmind/core"
)

type rule struct {
	match string
	text  string
}

// Backend answers from an ordered rule script. The first rule whose match
// string appears in the prompt wins; otherwise the default text is returned.
type Backend struct {
	mu          sync.Mutex
	rules       []rule
	defaultText string
	latency     time.Duration
	errQueue    []error
	calls       []core.BackendRequest
}

// Option customizes a scripted backend.
type Option func(*Backend)

// WithRule adds a prompt-substring rule. Rules match in insertion order.
func WithRule(match, response string) Option {
	return func(b *Backend) {
		b.rules = append(b.rules, rule{match: match, text: response})
	}
}

// WithDefault sets the response used when no rule matches.
func WithDefault(text string) Option {
	return func(b *Backend) { b.defaultText = text }
}

// WithLatency simulates backend latency per call.
func WithLatency(d time.Duration) Option {
	return func(b *Backend) { b.latency = d }
}

// New creates a scripted backend.
func New(optFns ...Option) *Backend {
	b := &Backend{defaultText: "{}"}
	for _, fn := range optFns {
		fn(b)
	}
	return b
}

// QueueError makes the next call fail with err, once.
func (b *Backend) QueueError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errQueue = append(b.errQueue, err)
}

// Calls returns the requests seen so far.
func (b *Backend) Calls() []core.BackendRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]core.BackendRequest, len(b.calls))
	copy(out, b.calls)
	return out
}

// Complete implements core.ReasoningBackend.
func (b *Backend) Complete(ctx context.Context, req core.BackendRequest) (*core.BackendResponse, error) {
	if b.latency > 0 {
		select {
		case <-time.After(b.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	b.calls = append(b.calls, req)
	if len(b.errQueue) > 0 {
		err := b.errQueue[0]
		b.errQueue = b.errQueue[1:]
		b.mu.Unlock()
		return nil, err
	}
	text := b.defaultText
	for _, r := range b.rules {
		if strings.Contains(req.Prompt, r.match) {
			text = r.text
			break
		}
	}
	b.mu.Unlock()

	return &core.BackendResponse{
		Text: text,
		Usage: core.TokenUsage{
			PromptTokens:     len(req.Prompt) / 4,
			CompletionTokens: len(text) / 4,
			TotalTokens:      (len(req.Prompt) + len(text)) / 4,
		},
	}, nil
}
