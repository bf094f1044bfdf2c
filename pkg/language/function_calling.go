// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

package language

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jllopis/agentloop/pkg/action"
	agenterr "github.com/jllopis/agentloop/pkg/errors"
	"github.com/jllopis/agentloop/pkg/goal"
	"github.com/jllopis/agentloop/pkg/memory"
	"github.com/jllopis/agentloop/pkg/prompt"
)

// MaxToolDescription is the byte limit applied to tool descriptions.
const MaxToolDescription = 1024

const goalSeparator = "-------------------"

// FunctionCalling renders actions as native tools and expects either plain
// text or a JSON object {"tool": name, "args": {...}} back.
type FunctionCalling struct {
	window int
}

var _ Language = (*FunctionCalling)(nil)

// Option configures FunctionCalling.
type Option func(*FunctionCalling)

// WithMemoryWindow bounds how many memory entries are rendered. Zero renders
// the full log; n > 0 renders the first entry plus the last n.
func WithMemoryWindow(n int) Option {
	return func(f *FunctionCalling) {
		if n > 0 {
			f.window = n
		}
	}
}

// NewFunctionCalling creates the function-calling language.
func NewFunctionCalling(opts ...Option) *FunctionCalling {
	f := &FunctionCalling{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// BuildPrompt renders a system message with every goal, one message per
// rendered memory entry and one tool per action.
func (f *FunctionCalling) BuildPrompt(goals []goal.Goal, entries []memory.Entry, actions []action.Action) (prompt.Prompt, error) {
	window := f.windowed(entries)
	p := prompt.Prompt{
		Messages: make([]prompt.Message, 0, len(window)+1),
	}
	if len(goals) > 0 {
		p.Messages = append(p.Messages, prompt.Message{
			Role:    prompt.RoleSystem,
			Content: renderGoals(goals),
		})
	}
	for _, e := range window {
		msg, err := renderEntry(e)
		if err != nil {
			return prompt.Prompt{}, err
		}
		p.Messages = append(p.Messages, msg)
	}
	if len(actions) > 0 {
		p.Tools = make([]prompt.Tool, 0, len(actions))
		for _, a := range actions {
			p.Tools = append(p.Tools, prompt.Tool{
				Name:        a.Name,
				Description: truncate(a.Description, MaxToolDescription),
				Parameters:  parameters(a.Parameters),
			})
		}
	}
	return p, nil
}

func (f *FunctionCalling) windowed(entries []memory.Entry) []memory.Entry {
	if f.window == 0 || len(entries) <= f.window+1 {
		return entries
	}
	out := make([]memory.Entry, 0, f.window+1)
	out = append(out, entries[0])
	return append(out, entries[len(entries)-f.window:]...)
}

func renderGoals(goals []goal.Goal) string {
	var b strings.Builder
	for i, g := range goal.Sorted(goals) {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%s:\n%s\n%s\n%s", g.Name(), goalSeparator, g.Description(), goalSeparator)
	}
	return b.String()
}

func renderEntry(e memory.Entry) (prompt.Message, error) {
	var role prompt.Role
	switch e.Type {
	case memory.EntryUser:
		role = prompt.RoleUser
	case memory.EntryAssistant, memory.EntryEnvironment:
		role = prompt.RoleAssistant
	default:
		return prompt.Message{}, fmt.Errorf("render entry %s: unknown type %q", e.ID, e.Type)
	}
	content, err := renderContent(e.Content)
	if err != nil {
		return prompt.Message{}, fmt.Errorf("render entry %s: %w", e.ID, err)
	}
	return prompt.Message{Role: role, Content: content}, nil
}

func renderContent(content any) (string, error) {
	switch c := content.(type) {
	case string:
		return c, nil
	case nil:
		return "", nil
	}
	data, err := json.Marshal(content)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func parameters(s action.Schema) map[string]any {
	typ := s.Type
	if typ == "" {
		typ = "object"
	}
	props := s.Properties
	if props == nil {
		props = map[string]any{}
	}
	out := map[string]any{
		"type":       typ,
		"properties": props,
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	return out
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// ParseResponse interprets the raw model output. A JSON object carrying a
// "tool" key, optionally inside one markdown code fence, is an action
// selection. Anything else is returned verbatim as text.
func (f *FunctionCalling) ParseResponse(raw string) (Decision, error) {
	body := stripFence(strings.TrimSpace(raw))
	if !strings.HasPrefix(body, "{") {
		return Decision{Text: raw}, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return Decision{Text: raw}, nil
	}
	rawTool, ok := fields["tool"]
	if !ok {
		return Decision{Text: raw}, nil
	}

	var name string
	if err := json.Unmarshal(rawTool, &name); err != nil || strings.TrimSpace(name) == "" {
		return Decision{}, parseError("\"tool\" must be a non-empty string", raw, err)
	}

	args, err := decodeArgs(fields["args"])
	if err != nil {
		return Decision{}, parseError("\"args\" must be an object", raw, err).WithContext("tool", name)
	}
	return Decision{Action: name, Args: args}, nil
}

func decodeArgs(raw json.RawMessage) (action.Args, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" || trimmed == `""` {
		return action.Args{}, nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, err
		}
		if strings.TrimSpace(encoded) == "" {
			return action.Args{}, nil
		}
		raw = json.RawMessage(encoded)
	}
	var args action.Args
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = action.Args{}
	}
	return args, nil
}

func parseError(msg, raw string, cause error) *agenterr.Error {
	if cause == nil {
		cause = ErrResponseParse
	} else {
		cause = fmt.Errorf("%w: %w", ErrResponseParse, cause)
	}
	return agenterr.New(agenterr.CodeResponseParse, msg, cause).WithContext("response", raw)
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	inner := strings.TrimSuffix(s[3:], "```")
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
		// drop the language tag
		inner = inner[nl+1:]
	}
	return strings.TrimSpace(inner)
}
