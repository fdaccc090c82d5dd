package brain_test

import (
	"context"
	"sync"

	"lighthouse.app/cityintel/common/llm"
)

type mockLLMClient struct {
	mu        sync.Mutex
	invokeFn  func(ctx context.Context, req llm.Request) (*llm.Response, error)
	requests  []llm.Request
	callCount int
}

func (m *mockLLMClient) Invoke(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	m.callCount++
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.invokeFn != nil {
		return m.invokeFn(ctx, req)
	}
	return &llm.Response{Content: "{}"}, nil
}

func (m *mockLLMClient) Model() string {
	return "mock-model"
}

func (m *mockLLMClient) lastRequest() llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

func respondWith(content string) func(context.Context, llm.Request) (*llm.Response, error) {
	return func(context.Context, llm.Request) (*llm.Response, error) {
		return &llm.Response{Content: content}, nil
	}
}

func failWith(err error) func(context.Context, llm.Request) (*llm.Response, error) {
	return func(context.Context, llm.Request) (*llm.Response, error) {
		return nil, err
	}
}
