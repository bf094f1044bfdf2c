// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/agentloop/pkg/action"
)

// ToolCaller executes MCP tools by name.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// ToolLister lists the tools of an MCP server.
type ToolLister interface {
	ListTools(ctx context.Context) ([]mcp.Tool, error)
}

// Session is a connected MCP server.
type Session interface {
	ToolCaller
	ToolLister
}

// ErrToolFailed is returned by bridged actions when the server reports a
// tool error.
var ErrToolFailed = errors.New("mcp tool failed")

// Actions lists the tools of s and converts each into an Action. A
// non-empty prefix is joined to the tool name as prefix__name so tools of
// different servers cannot collide in a registry.
func Actions(ctx context.Context, s Session, prefix string) ([]action.Action, error) {
	tools, err := s.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]action.Action, 0, len(tools))
	for _, tool := range tools {
		a, err := ToolAction(tool, s, prefix)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// ToolAction converts one MCP tool into an Action backed by caller.
func ToolAction(tool mcp.Tool, caller ToolCaller, prefix string) (action.Action, error) {
	if tool.Name == "" {
		return action.Action{}, errors.New("mcp tool name is required")
	}
	if caller == nil {
		return action.Action{}, errors.New("tool caller is required")
	}
	schema, err := toolSchema(tool)
	if err != nil {
		return action.Action{}, fmt.Errorf("mcp tool %q: %w", tool.Name, err)
	}

	name := tool.Name
	if prefix != "" {
		name = prefix + "__" + tool.Name
	}
	remote := tool.Name
	return action.Action{
		Name:        name,
		Description: tool.Description,
		Parameters:  schema,
		Function: func(ctx context.Context, args action.Args) (any, error) {
			res, err := caller.CallTool(ctx, remote, args)
			if err != nil {
				return nil, err
			}
			return toolResultToOutput(res)
		},
	}, nil
}

func toolSchema(tool mcp.Tool) (action.Schema, error) {
	if len(tool.RawInputSchema) > 0 {
		var s action.Schema
		if err := json.Unmarshal(tool.RawInputSchema, &s); err != nil {
			return action.Schema{}, fmt.Errorf("invalid input schema: %w", err)
		}
		return s, nil
	}
	return action.Schema{
		Type:       tool.InputSchema.Type,
		Properties: tool.InputSchema.Properties,
		Required:   tool.InputSchema.Required,
	}, nil
}

// toolResultToOutput prefers structured content, then text.
func toolResultToOutput(result *mcp.CallToolResult) (any, error) {
	if result == nil {
		return nil, errors.New("mcp tool result is nil")
	}
	if result.IsError {
		return nil, fmt.Errorf("%w: %s", ErrToolFailed, extractTextContent(result.Content))
	}
	if result.StructuredContent != nil {
		return result.StructuredContent, nil
	}
	return extractTextContent(result.Content), nil
}

func extractTextContent(items []mcp.Content) string {
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		default:
			parts = append(parts, fmt.Sprintf("[non-text content: %T]", item))
		}
	}
	return strings.Join(parts, "\n")
}
