// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/agentloop/pkg/action"
	"github.com/jllopis/agentloop/pkg/environment"
)

// Version is reported to MCP peers.
const Version = "0.1.0"

// Executor runs actions and reports an envelope.
type Executor interface {
	ExecuteAction(ctx context.Context, a action.Action, args action.Args) environment.Result
}

// Server exposes the actions of a registry as MCP tools. Calls go through
// the executor, so they get the same argument checks and failure envelopes
// as calls made by an agent.
type Server struct {
	mcpServer *server.MCPServer
	env       Executor
}

// NewServer creates a server offering every action in registry.
func NewServer(name, version string, registry *action.Registry, env Executor) (*Server, error) {
	s := &Server{
		mcpServer: server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
		env:       env,
	}
	for _, a := range registry.All() {
		if err := s.addAction(a); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Server) addAction(a action.Action) error {
	schema, err := json.Marshal(a.Parameters)
	if err != nil {
		return fmt.Errorf("encode schema of %q: %w", a.Name, err)
	}
	tool := mcp.NewToolWithRawSchema(a.Name, a.Description, schema)
	s.mcpServer.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := s.env.ExecuteAction(ctx, a, action.Args(req.GetArguments()))
		return envelopeResult(res)
	})
	return nil
}

// envelopeResult maps a failure envelope to a tool error and a success to
// text content. Non-string results are sent as JSON.
func envelopeResult(res environment.Result) (*mcp.CallToolResult, error) {
	if !res.ToolExecuted {
		return mcp.NewToolResultError(res.Error), nil
	}
	if text, ok := res.Result.(string); ok {
		return mcp.NewToolResultText(text), nil
	}
	data, err := json.Marshal(res.Result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ServeStdio serves the tools on standard input and output until the
// stream closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
