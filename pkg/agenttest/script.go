// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

package agenttest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/jllopis/agentloop/pkg/prompt"
)

// ErrScriptExhausted is returned once every scripted response was used.
var ErrScriptExhausted = errors.New("agenttest: script exhausted")

// Script is a model that replays responses in order and captures the
// prompts it receives. Respond has the agent.ModelFunc signature.
type Script struct {
	mu        sync.Mutex
	responses []scripted
	prompts   []prompt.Prompt
}

type scripted struct {
	text string
	err  error
}

// NewScript creates a script of raw model responses.
func NewScript(responses ...string) *Script {
	s := &Script{}
	for _, r := range responses {
		s.responses = append(s.responses, scripted{text: r})
	}
	return s
}

// Then queues another response.
func (s *Script) Then(response string) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, scripted{text: response})
	return s
}

// ThenError queues a model failure.
func (s *Script) ThenError(err error) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, scripted{err: err})
	return s
}

// Respond returns the next scripted response.
func (s *Script) Respond(_ context.Context, p prompt.Prompt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, p)
	if len(s.responses) == 0 {
		return "", ErrScriptExhausted
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	return next.text, next.err
}

// Prompts returns the captured prompts.
func (s *Script) Prompts() []prompt.Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]prompt.Prompt(nil), s.prompts...)
}

// Calls returns the number of model calls.
func (s *Script) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// ToolCall renders a structured decision selecting name with args.
func ToolCall(name string, args map[string]any) string {
	if args == nil {
		args = map[string]any{}
	}
	data, err := json.Marshal(map[string]any{"tool": name, "args": args})
	if err != nil {
		panic(err)
	}
	return string(data)
}
