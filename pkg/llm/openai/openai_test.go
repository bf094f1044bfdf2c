// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jllopis/agentloop/pkg/llm"
)

func TestNewProvider(t *testing.T) {
	p := New()
	if p.model != DefaultModel {
		t.Errorf("expected model %s, got %s", DefaultModel, p.model)
	}
	p = New(WithModel("gpt-4-turbo"), WithModel(""))
	if p.model != "gpt-4-turbo" {
		t.Errorf("expected model gpt-4-turbo, got %s", p.model)
	}
}

func TestNewGroqKeepsBothOptions(t *testing.T) {
	p := NewGroq("test-key", "llama-3.3-70b-versatile")
	if p.model != "llama-3.3-70b-versatile" {
		t.Fatalf("unexpected model %s", p.model)
	}
	if len(p.options) != 2 {
		t.Fatalf("expected base url and api key options, got %d", len(p.options))
	}
}

func TestConvertTool(t *testing.T) {
	tool := llm.Tool{
		Type: llm.ToolTypeFunction,
		Function: llm.FunctionDef{
			Name:        "read_project_file",
			Description: "Reads a file from the project.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name": map[string]any{"type": "string"},
				},
				"required": []string{"name"},
			},
		},
	}

	got, err := convertTool(tool)
	if err != nil {
		t.Fatalf("convertTool: %v", err)
	}
	if got.Function.Name != "read_project_file" {
		t.Fatalf("unexpected name %s", got.Function.Name)
	}
	if got.Function.Parameters["type"] != "object" {
		t.Fatalf("unexpected parameters %v", got.Function.Parameters)
	}
}

func TestChatAgainstCompatibleServer(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			http.Error(w, "bad key "+got, http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "llama-3.3-70b-versatile",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "terminate", "arguments": "{\"message\":\"done\"}"}
					}]
				}
			}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 5, "total_tokens": 25}
		}`))
	}))
	defer srv.Close()

	p := New(WithBaseURL(srv.URL), WithAPIKey("test-key"), WithModel("llama-3.3-70b-versatile"))
	resp, err := p.Chat(context.Background(), llm.ChatRequest{
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: "finish"}},
		Tools:     []llm.Tool{{Type: llm.ToolTypeFunction, Function: llm.FunctionDef{Name: "terminate"}}},
		MaxTokens: 1024,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if body["model"] != "llama-3.3-70b-versatile" || body["max_tokens"] != float64(1024) {
		t.Fatalf("unexpected request body: %v", body)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Function.Arguments != `{"message":"done"}` {
		t.Fatalf("unexpected tool calls: %+v", resp.ToolCalls)
	}
	if resp.Usage.TotalTokens != 25 {
		t.Fatalf("expected 25 tokens, got %d", resp.Usage.TotalTokens)
	}
}
