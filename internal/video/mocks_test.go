package video_test

import (
	"context"
	"sync"

	"lighthouse.app/cityintel/common/llm"
	"lighthouse.app/cityintel/internal/model"
)

type mockLLMClient struct {
	invokeFn  func(ctx context.Context, req llm.Request) (*llm.Response, error)
	callCount int
}

func (m *mockLLMClient) Invoke(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.callCount++
	if m.invokeFn != nil {
		return m.invokeFn(ctx, req)
	}
	return &llm.Response{Content: `{"scenes":["a","b","c"]}`}, nil
}

func (m *mockLLMClient) Model() string { return "mock-model" }

type mockRenderer struct {
	mu         sync.Mutex
	generateFn func(ctx context.Context, prompt string) ([]byte, error)
	prompts    []string
}

func (m *mockRenderer) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.generateFn != nil {
		return m.generateFn(ctx, prompt)
	}
	return []byte("\x89PNG"), nil
}

type mockFrameStore struct {
	mu      sync.Mutex
	putFn   func(ctx context.Context, key string, data []byte, contentType string) error
	objects map[string]string
}

func (m *mockFrameStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if m.putFn != nil {
		if err := m.putFn(ctx, key, data, contentType); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string]string{}
	}
	m.objects[key] = contentType
	return nil
}

type recordingSink struct {
	mu      sync.Mutex
	entries []model.LogEntry
}

func (s *recordingSink) Log(source, message string, typ model.LogType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, model.LogEntry{Source: source, Message: message, Type: typ})
}

func (s *recordingSink) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Message)
	}
	return out
}
