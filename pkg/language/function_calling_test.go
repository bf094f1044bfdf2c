// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

package language

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jllopis/agentloop/pkg/action"
	agenterr "github.com/jllopis/agentloop/pkg/errors"
	"github.com/jllopis/agentloop/pkg/goal"
	"github.com/jllopis/agentloop/pkg/memory"
	"github.com/jllopis/agentloop/pkg/prompt"
)

func noop(context.Context, action.Args) (any, error) { return nil, nil }

func testActions() []action.Action {
	return []action.Action{
		{Name: "list_project_files", Description: "Lists all files in the project.", Function: noop},
		{
			Name:        "read_project_file",
			Description: "Reads a file from the project.",
			Parameters: action.Schema{
				Type:       "object",
				Properties: map[string]any{"name": action.StringParam("")},
				Required:   []string{"name"},
			},
			Function: noop,
		},
		{Name: "terminate", Description: "Terminates the session.", Terminal: true, Function: noop},
	}
}

func testEntries() []memory.Entry {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []memory.Entry{
		{ID: "1", Type: memory.EntryUser, Content: "List the files.", CreatedAt: at},
		{ID: "2", Type: memory.EntryAssistant, Content: `{"tool":"list_project_files","args":{}}`, CreatedAt: at},
		{ID: "3", Type: memory.EntryEnvironment, Content: map[string]any{"tool_executed": true, "result": []string{"main.py"}}, CreatedAt: at},
	}
}

func TestBuildPrompt(t *testing.T) {
	goals := []goal.Goal{
		goal.MustNew(2, "Terminate", "Call terminate when done"),
		goal.MustNew(1, "Gather Information", "Read each file"),
	}

	p, err := NewFunctionCalling().BuildPrompt(goals, testEntries(), testActions())
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}

	want := []prompt.Message{
		{
			Role: prompt.RoleSystem,
			Content: "Gather Information:\n-------------------\nRead each file\n-------------------\n\n" +
				"Terminate:\n-------------------\nCall terminate when done\n-------------------",
		},
		{Role: prompt.RoleUser, Content: "List the files."},
		{Role: prompt.RoleAssistant, Content: `{"tool":"list_project_files","args":{}}`},
		{Role: prompt.RoleAssistant, Content: `{"result":["main.py"],"tool_executed":true}`},
	}
	if diff := cmp.Diff(want, p.Messages); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"list_project_files", "read_project_file", "terminate"}, p.ToolNames()); diff != "" {
		t.Fatalf("tool order mismatch (-want +got):\n%s", diff)
	}
	params, ok := p.Tools[1].Parameters.(map[string]any)
	if !ok {
		t.Fatalf("expected map parameters, got %T", p.Tools[1].Parameters)
	}
	if params["type"] != "object" {
		t.Fatalf("expected object schema, got %v", params["type"])
	}
	empty := p.Tools[0].Parameters.(map[string]any)
	if _, ok := empty["properties"].(map[string]any); !ok {
		t.Fatalf("expected empty properties map, got %#v", empty)
	}
}

func TestBuildPromptIsIdempotent(t *testing.T) {
	lang := NewFunctionCalling()
	goals := []goal.Goal{goal.MustNew(1, "Gather Information", "Read each file")}

	first, err := lang.BuildPrompt(goals, testEntries(), testActions())
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	second, err := lang.BuildPrompt(goals, testEntries(), testActions())
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("BuildPrompt is not idempotent (-first +second):\n%s", diff)
	}
}

func TestBuildPromptMemoryWindow(t *testing.T) {
	entries := testEntries()
	entries = append(entries,
		memory.Entry{ID: "4", Type: memory.EntryAssistant, Content: "thinking"},
		memory.Entry{ID: "5", Type: memory.EntryAssistant, Content: "still thinking"},
	)

	p, err := NewFunctionCalling(WithMemoryWindow(2)).BuildPrompt(nil, entries, nil)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	got := make([]string, 0, len(p.Messages))
	for _, m := range p.Messages {
		got = append(got, m.Content)
	}
	want := []string{"List the files.", "thinking", "still thinking"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("window mismatch (-want +got):\n%s", diff)
	}
	if p.HasTools() {
		t.Fatal("expected no tools")
	}
}

func TestBuildPromptTruncatesDescriptions(t *testing.T) {
	long := strings.Repeat("é", MaxToolDescription)
	actions := []action.Action{{Name: "verbose", Description: long, Function: noop}}

	p, err := NewFunctionCalling().BuildPrompt(nil, nil, actions)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	desc := p.Tools[0].Description
	if len(desc) > MaxToolDescription {
		t.Fatalf("description not truncated: %d bytes", len(desc))
	}
	if len(desc) != MaxToolDescription {
		t.Fatalf("expected cut on a rune boundary at %d bytes, got %d", MaxToolDescription, len(desc))
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Decision
	}{
		{
			name: "tool with args",
			raw:  `{"tool": "read_project_file", "args": {"name": "main.py"}}`,
			want: Decision{Action: "read_project_file", Args: action.Args{"name": "main.py"}},
		},
		{
			name: "null args",
			raw:  `{"tool": "list_project_files", "args": null}`,
			want: Decision{Action: "list_project_files", Args: action.Args{}},
		},
		{
			name: "missing args",
			raw:  `{"tool": "list_project_files"}`,
			want: Decision{Action: "list_project_files", Args: action.Args{}},
		},
		{
			name: "string encoded args",
			raw:  `{"tool": "terminate", "args": "{\"message\": \"done\"}"}`,
			want: Decision{Action: "terminate", Args: action.Args{"message": "done"}},
		},
		{
			name: "empty string args",
			raw:  `{"tool": "terminate", "args": ""}`,
			want: Decision{Action: "terminate", Args: action.Args{}},
		},
		{
			name: "fenced",
			raw:  "```json\n{\"tool\": \"terminate\", \"args\": {\"message\": \"done\"}}\n```",
			want: Decision{Action: "terminate", Args: action.Args{"message": "done"}},
		},
		{
			name: "plain text",
			raw:  "I will list the files first.",
			want: Decision{Text: "I will list the files first."},
		},
		{
			name: "json without tool",
			raw:  `{"answer": 42}`,
			want: Decision{Text: `{"answer": 42}`},
		},
		{
			name: "broken json is text",
			raw:  `{"tool": "terminate"`,
			want: Decision{Text: `{"tool": "terminate"`},
		},
	}

	lang := NewFunctionCalling()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := lang.ParseResponse(tt.raw)
			if err != nil {
				t.Fatalf("ParseResponse: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("decision mismatch (-want +got):\n%s", diff)
			}
			if got.IsAction() != (tt.want.Action != "") {
				t.Fatalf("IsAction = %v", got.IsAction())
			}
		})
	}
}

func TestParseResponseErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty tool", raw: `{"tool": ""}`},
		{name: "numeric tool", raw: `{"tool": 7}`},
		{name: "array args", raw: `{"tool": "terminate", "args": [1, 2]}`},
		{name: "scalar args", raw: `{"tool": "terminate", "args": 3}`},
		{name: "string args not an object", raw: `{"tool": "terminate", "args": "done"}`},
	}

	lang := NewFunctionCalling()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := lang.ParseResponse(tt.raw)
			if !errors.Is(err, ErrResponseParse) {
				t.Fatalf("expected ErrResponseParse, got %v", err)
			}
			if code := agenterr.CodeOf(err); code != agenterr.CodeResponseParse {
				t.Fatalf("expected RESPONSE_PARSE code, got %s", code)
			}
		})
	}
}
