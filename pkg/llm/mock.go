// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"errors"
	"sync"
)

// MockProvider is a testing implementation of Provider.
type MockProvider struct {
	Response string
	Err      error
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Chat returns ChatFunc's result, Err, or Response in that order.
func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &ChatResponse{
		Content: m.Response,
		Usage:   Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20},
	}, nil
}

// ErrScriptExhausted is returned once a ScriptedMockProvider runs out of
// responses.
var ErrScriptExhausted = errors.New("scripted mock: no more responses available")

// ScriptedMockProvider returns a pre-defined sequence of responses, one per
// call, and records every request it receives.
type ScriptedMockProvider struct {
	mu        sync.Mutex
	responses []ChatResponse
	requests  []ChatRequest
}

// NewScriptedMockProvider creates a provider that replays responses in order.
func NewScriptedMockProvider(responses ...ChatResponse) *ScriptedMockProvider {
	return &ScriptedMockProvider{responses: responses}
}

// Chat pops the next scripted response.
func (s *ScriptedMockProvider) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if len(s.responses) == 0 {
		return nil, ErrScriptExhausted
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return &resp, nil
}

// Requests returns the requests received so far.
func (s *ScriptedMockProvider) Requests() []ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatRequest(nil), s.requests...)
}

// TextResponse is a scripted plain-content reply.
func TextResponse(content string) ChatResponse {
	return ChatResponse{Content: content}
}

// ToolCallResponse is a scripted reply calling a single tool with the given
// JSON encoded arguments.
func ToolCallResponse(name, arguments string) ChatResponse {
	return ChatResponse{
		ToolCalls: []ToolCall{{
			ID:       "call_" + name,
			Type:     ToolTypeFunction,
			Function: FunctionCall{Name: name, Arguments: arguments},
		}},
	}
}
