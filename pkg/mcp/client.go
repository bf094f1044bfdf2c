// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcp bridges the action registry and the Model Context Protocol:
// tools of remote MCP servers become actions, and a registry can be served
// as an MCP server.
package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	agenterr "github.com/jllopis/agentloop/pkg/errors"
	"github.com/jllopis/agentloop/pkg/resilience"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultCacheTTL = 30 * time.Second
	initTimeout     = 10 * time.Second
)

// ClientName identifies this module to MCP servers during initialization.
const ClientName = "agentloop"

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetry sets the number of attempts per request and the initial backoff.
func WithRetry(attempts int, delay time.Duration) ClientOption {
	return func(c *Client) {
		if attempts > 0 {
			c.retry = c.retry.WithMaxAttempts(attempts)
		}
		if delay > 0 {
			c.retry = c.retry.WithInitialDelay(delay)
		}
	}
}

// WithToolCacheTTL sets the tool discovery cache TTL. Use 0 to disable caching.
func WithToolCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		if ttl >= 0 {
			c.cacheTTL = ttl
		}
	}
}

// Client wraps an mcp-go client with timeouts, retries and a tool cache.
type Client struct {
	mcpClient client.MCPClient
	timeout   time.Duration
	retry     resilience.RetryConfig
	cacheTTL  time.Duration

	mu          sync.Mutex
	toolsCache  []mcp.Tool
	cacheExpiry time.Time
}

// NewClient wraps an initialized MCP client.
func NewClient(c client.MCPClient, opts ...ClientOption) *Client {
	out := &Client{
		mcpClient: c,
		timeout:   defaultTimeout,
		retry: resilience.DefaultRetryConfig().
			WithMaxAttempts(3).
			WithInitialDelay(200 * time.Millisecond),
		cacheTTL: defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(out)
	}
	return out
}

// NewStdioClient starts command as a subprocess and speaks MCP over its
// standard streams. env entries have the KEY=VALUE form.
func NewStdioClient(ctx context.Context, command string, env, args []string, opts ...ClientOption) (*Client, error) {
	c, err := client.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return nil, agenterr.New(agenterr.CodeInternal, "start mcp server", err).
			WithContext("command", command)
	}
	if err := connect(ctx, c); err != nil {
		_ = c.Close()
		return nil, err
	}
	return NewClient(c, opts...), nil
}

// NewInProcessClient connects to s without a transport.
func NewInProcessClient(ctx context.Context, s *Server, opts ...ClientOption) (*Client, error) {
	c, err := client.NewInProcessClient(s.mcpServer)
	if err != nil {
		return nil, agenterr.New(agenterr.CodeInternal, "create in-process mcp client", err)
	}
	if err := connect(ctx, c); err != nil {
		_ = c.Close()
		return nil, err
	}
	return NewClient(c, opts...), nil
}

func connect(ctx context.Context, c *client.Client) error {
	if err := c.Start(ctx); err != nil {
		return agenterr.New(agenterr.CodeInternal, "start mcp transport", err)
	}

	ictx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{
		Name:    ClientName,
		Version: Version,
	}
	if _, err := c.Initialize(ictx, req); err != nil {
		return agenterr.New(agenterr.CodeInternal, "initialize mcp session", err)
	}
	return nil
}

// ListTools returns the tools offered by the server.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	if cached := c.cachedTools(); cached != nil {
		return cached, nil
	}
	resp, err := resilience.DoValue(ctx, c.retry, func() (*mcp.ListToolsResult, error) {
		return resilience.WithTimeout(ctx, c.timeout, func(ctx context.Context) (*mcp.ListToolsResult, error) {
			return c.mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("mcp list tools: %w", err)
	}
	c.storeTools(resp.Tools)
	return resp.Tools, nil
}

// CallTool invokes a tool on the server.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := resilience.DoValue(ctx, c.retry, func() (*mcp.CallToolResult, error) {
		return resilience.WithTimeout(ctx, c.timeout, func(ctx context.Context) (*mcp.CallToolResult, error) {
			return c.mcpClient.CallTool(ctx, req)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("mcp call %q: %w", name, err)
	}
	return res, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.mcpClient.Close()
}

func (c *Client) cachedTools() []mcp.Tool {
	if c.cacheTTL == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.toolsCache) == 0 || time.Now().After(c.cacheExpiry) {
		return nil
	}
	out := make([]mcp.Tool, len(c.toolsCache))
	copy(out, c.toolsCache)
	return out
}

func (c *Client) storeTools(tools []mcp.Tool) {
	if c.cacheTTL == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toolsCache = make([]mcp.Tool, len(tools))
	copy(c.toolsCache, tools)
	c.cacheExpiry = time.Now().Add(c.cacheTTL)
}
