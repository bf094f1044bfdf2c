// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	agenterr "github.com/jllopis/agentloop/pkg/errors"
	"github.com/jllopis/agentloop/pkg/prompt"
	"github.com/jllopis/agentloop/pkg/resilience"
)

// DefaultMaxTokens bounds each completion.
const DefaultMaxTokens = 1024

// Responder adapts a Provider to the agent's model collaborator contract:
// a prompt in, a raw string out. When tools were offered and the model
// called one, the first call is returned as {"tool": name, "args": {...}};
// otherwise the message content is returned.
type Responder struct {
	provider    Provider
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	retry       resilience.RetryConfig
	logger      *slog.Logger
}

// ResponderOption configures a Responder.
type ResponderOption func(*Responder)

// WithModel sets the model name sent with each request.
func WithModel(model string) ResponderOption {
	return func(r *Responder) { r.model = model }
}

// WithMaxTokens sets the completion token limit.
func WithMaxTokens(n int) ResponderOption {
	return func(r *Responder) {
		if n > 0 {
			r.maxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ResponderOption {
	return func(r *Responder) { r.temperature = t }
}

// WithTimeout bounds each provider call. Zero disables the bound.
func WithTimeout(d time.Duration) ResponderOption {
	return func(r *Responder) { r.timeout = d }
}

// WithRetry sets the retry policy for provider calls.
func WithRetry(rc resilience.RetryConfig) ResponderOption {
	return func(r *Responder) { r.retry = rc }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ResponderOption {
	return func(r *Responder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResponder wraps provider.
func NewResponder(provider Provider, opts ...ResponderOption) *Responder {
	r := &Responder{
		provider:  provider,
		maxTokens: DefaultMaxTokens,
		retry:     resilience.DefaultRetryConfig(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Respond sends p to the provider and returns the raw decision string.
func (r *Responder) Respond(ctx context.Context, p prompt.Prompt) (string, error) {
	req := r.request(p)
	r.logger.DebugContext(ctx, "model request",
		"model", req.Model,
		"messages", len(req.Messages),
		"tools", len(req.Tools),
	)

	rc := r.retry.WithOnRetry(func(attempt int, err error) {
		r.logger.WarnContext(ctx, "retrying model call", "attempt", attempt, "error", err)
	})
	resp, err := resilience.DoValue(ctx, rc, func() (*ChatResponse, error) {
		return resilience.WithTimeout(ctx, r.timeout, func(ctx context.Context) (*ChatResponse, error) {
			return r.provider.Chat(ctx, req)
		})
	})
	if err != nil {
		return "", agenterr.New(agenterr.CodeLLMError, "model call failed", err).
			WithContext("model", req.Model)
	}
	if resp == nil {
		return "", agenterr.New(agenterr.CodeLLMError, "model returned no response", nil).
			WithContext("model", req.Model)
	}

	out, err := decision(p, resp)
	if err != nil {
		return "", err
	}
	r.logger.DebugContext(ctx, "model response",
		"model", req.Model,
		"tool_calls", len(resp.ToolCalls),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return out, nil
}

func (r *Responder) request(p prompt.Prompt) ChatRequest {
	req := ChatRequest{
		Model:       r.model,
		Messages:    make([]Message, 0, len(p.Messages)),
		Temperature: r.temperature,
		MaxTokens:   r.maxTokens,
	}
	for _, m := range p.Messages {
		req.Messages = append(req.Messages, Message{Role: Role(m.Role), Content: m.Content})
	}
	for _, t := range p.Tools {
		req.Tools = append(req.Tools, Tool{
			Type: ToolTypeFunction,
			Function: FunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return req
}

type toolDecision struct {
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args"`
}

func decision(p prompt.Prompt, resp *ChatResponse) (string, error) {
	tc, ok := resp.FirstToolCall()
	if !p.HasTools() || !ok {
		return resp.Content, nil
	}
	call := tc.Function
	args := strings.TrimSpace(call.Arguments)
	var raw json.RawMessage
	switch {
	case args == "":
		raw = json.RawMessage("{}")
	case json.Valid([]byte(args)):
		raw = json.RawMessage(args)
	default:
		// keep it as a string so the parser reports it
		quoted, err := json.Marshal(args)
		if err != nil {
			return "", agenterr.New(agenterr.CodeLLMError, "encode tool arguments", err)
		}
		raw = quoted
	}
	data, err := json.Marshal(toolDecision{Tool: call.Name, Args: raw})
	if err != nil {
		return "", agenterr.New(agenterr.CodeLLMError, "encode tool call", err)
	}
	return string(data), nil
}
