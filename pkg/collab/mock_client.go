package collab

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MockClient is a deterministic LLMClient for tests and keyless runs. It
// replies from a script keyed by prompt substring, records every request,
// and can simulate latency and failures.
type MockClient struct {
	mu       sync.Mutex
	script   map[string]string
	fallback string
	err      error
	delay    time.Duration
	requests []CompletionRequest
}

// NewMockClient creates a mock that echoes a generic tutoring reply.
func NewMockClient() *MockClient {
	return &MockClient{
		script:   make(map[string]string),
		fallback: "Here is a concrete starting point for that. What constraint matters most to you?",
	}
}

// WithResponse registers a scripted reply returned when the last user
// message contains the given substring.
func (m *MockClient) WithResponse(substring, reply string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script[substring] = reply
	return m
}

// WithFallback sets the reply used when no script entry matches.
func (m *MockClient) WithFallback(reply string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = reply
	return m
}

// WithError makes every call fail with err.
func (m *MockClient) WithError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithDelay makes every call sleep first, for timeout and cancellation tests.
func (m *MockClient) WithDelay(d time.Duration) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// Requests returns a copy of every request seen so far.
func (m *MockClient) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompletionRequest(nil), m.requests...)
}

// Complete implements LLMClient.
func (m *MockClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, in)
	script := m.script
	fallback := m.fallback
	err := m.err
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return CompletionResponse{}, ctx.Err()
		}
	}
	if err != nil {
		return CompletionResponse{}, err
	}
	if ctx.Err() != nil {
		return CompletionResponse{}, ctx.Err()
	}

	prompt := lastUserContent(in.Messages)
	for substring, reply := range script {
		if strings.Contains(prompt, substring) {
			return CompletionResponse{Content: reply, StopReason: "end_turn"}, nil
		}
	}
	return CompletionResponse{Content: fallback, StopReason: "end_turn"}, nil
}

// Stream implements LLMClient by wrapping Complete.
func (m *MockClient) Stream(ctx context.Context, in CompletionRequest) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk, 2)
	go func() {
		defer close(ch)
		resp, err := m.Complete(ctx, in)
		if err != nil {
			ch <- StreamChunk{Error: err}
			return
		}
		ch <- StreamChunk{Content: resp.Content}
		ch <- StreamChunk{Done: true}
	}()
	return ch, nil
}

func lastUserContent(messages []CompletionMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
