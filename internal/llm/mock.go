package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is a scripted Client for tests. Replies are returned in order;
// once exhausted the last reply repeats.
type MockClient struct {
	replies []MockReply
	prompts []string
	mu      sync.Mutex
}

// MockReply is one scripted response.
type MockReply struct {
	Err  error
	Text string
}

// NewMockClient creates a mock client that returns the given replies.
func NewMockClient(replies ...MockReply) *MockClient {
	return &MockClient{replies: replies}
}

// Complete records the prompt and returns the next scripted reply.
func (m *MockClient) Complete(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := len(m.prompts)
	m.prompts = append(m.prompts, prompt)

	if len(m.replies) == 0 {
		return "", fmt.Errorf("mock client has no scripted replies")
	}
	if idx >= len(m.replies) {
		idx = len(m.replies) - 1
	}
	reply := m.replies[idx]
	return reply.Text, reply.Err
}

// Prompts returns every prompt received so far.
func (m *MockClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// CallCount returns the number of Complete calls.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}
