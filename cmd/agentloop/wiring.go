// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jllopis/agentloop/pkg/action"
	"github.com/jllopis/agentloop/pkg/agent"
	"github.com/jllopis/agentloop/pkg/config"
	"github.com/jllopis/agentloop/pkg/environment"
	"github.com/jllopis/agentloop/pkg/language"
	"github.com/jllopis/agentloop/pkg/llm"
	"github.com/jllopis/agentloop/pkg/llm/openai"
	"github.com/jllopis/agentloop/pkg/mcp"
	"github.com/jllopis/agentloop/pkg/memory"
	"github.com/jllopis/agentloop/pkg/resilience"
	"github.com/jllopis/agentloop/pkg/telemetry"
	"github.com/jllopis/agentloop/pkg/toolkit"
)

// closers releases resources in reverse order of acquisition.
type closers []func() error

func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		errs = append(errs, c[i]())
	}
	return errors.Join(errs...)
}

func newProvider(cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case config.ProviderGroq:
		var opts []openai.Option
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.NewGroq(cfg.APIKey, cfg.Model, opts...), nil
	case config.ProviderOpenAI:
		opts := []openai.Option{openai.WithAPIKey(cfg.APIKey), openai.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...), nil
	case config.ProviderOllama:
		return llm.NewOllama(cfg.BaseURL), nil
	}
	return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
}

func newResponder(cfg config.LLMConfig, provider llm.Provider, logger *slog.Logger) *llm.Responder {
	retry := resilience.DefaultRetryConfig().
		WithMaxAttempts(cfg.RetryAttempts).
		WithInitialDelay(cfg.RetryDelay)
	return llm.NewResponder(provider,
		llm.WithModel(cfg.Model),
		llm.WithMaxTokens(cfg.MaxTokens),
		llm.WithTemperature(cfg.Temperature),
		llm.WithTimeout(cfg.Timeout),
		llm.WithRetry(retry),
		llm.WithLogger(logger),
	)
}

// newRegistry registers the workspace actions, terminate and, when remote
// is set, the tools of every configured MCP server under the server name.
func newRegistry(ctx context.Context, cfg *config.Config, remote bool, logger *slog.Logger) (*action.Registry, closers, error) {
	var cleanup closers
	ws, err := toolkit.NewWorkspace(cfg.Workspace.Root, cfg.Workspace.Extensions...)
	if err != nil {
		return nil, nil, err
	}
	r := action.NewRegistry()
	if err := toolkit.Register(r, ws); err != nil {
		return nil, nil, err
	}
	if !remote {
		return r, cleanup, nil
	}

	for _, sc := range cfg.MCP.Servers {
		actions, closeFn, err := mcpActions(ctx, sc)
		if err != nil {
			_ = cleanup.Close()
			return nil, nil, err
		}
		cleanup = append(cleanup, closeFn)
		for _, a := range actions {
			if err := r.Register(a); err != nil {
				_ = cleanup.Close()
				return nil, nil, err
			}
		}
		logger.InfoContext(ctx, "mcp server connected", "server", sc.Name, "actions", len(actions))
	}
	return r, cleanup, nil
}

func mcpActions(ctx context.Context, sc config.MCPServerConfig) ([]action.Action, func() error, error) {
	c, err := mcp.NewStdioClient(ctx, sc.Command, sc.Env, sc.Args)
	if err != nil {
		return nil, nil, fmt.Errorf("mcp server %s: %w", sc.Name, err)
	}
	actions, err := mcp.Actions(ctx, c, sc.Name)
	if err != nil {
		_ = c.Close()
		return nil, nil, fmt.Errorf("mcp server %s: %w", sc.Name, err)
	}
	return actions, c.Close, nil
}

// newTranscript opens the configured sink. The sink is nil for the none
// driver.
func newTranscript(cfg config.TranscriptConfig) (memory.Sink, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Driver {
	case config.TranscriptFile:
		s, err := memory.NewFileSink(cfg.Path)
		return s, noop, err
	case config.TranscriptSQLite:
		s, err := memory.OpenSQLiteSink(cfg.Path)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	}
	return nil, noop, nil
}

func newEnvironment(logger *slog.Logger, metrics *telemetry.AgentMetrics) *environment.Environment {
	return environment.New(
		environment.WithLogger(logger),
		environment.WithMetrics(metrics),
	)
}

// build assembles an agent from cfg. The returned closers must be closed
// once the run is over.
func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*agent.Agent, closers, error) {
	goals, err := cfg.GoalList()
	if err != nil {
		return nil, nil, err
	}
	provider, err := newProvider(cfg.LLM)
	if err != nil {
		return nil, nil, err
	}
	metrics, err := telemetry.NewAgentMetrics(nil)
	if err != nil {
		return nil, nil, err
	}

	registry, cleanup, err := newRegistry(ctx, cfg, true, logger)
	if err != nil {
		return nil, nil, err
	}
	sink, closeSink, err := newTranscript(cfg.Transcript)
	if err != nil {
		_ = cleanup.Close()
		return nil, nil, err
	}
	cleanup = append(cleanup, closeSink)

	opts := []agent.Option{
		agent.WithMaxIterations(cfg.Agent.MaxIterations),
		agent.WithLogger(logger),
		agent.WithMetrics(metrics),
	}
	if sink != nil {
		opts = append(opts, agent.WithTranscript(sink))
	}

	a, err := agent.New(cfg.Agent.ID, goals,
		language.NewFunctionCalling(language.WithMemoryWindow(cfg.Agent.MemoryWindow)),
		registry,
		newResponder(cfg.LLM, provider, logger).Respond,
		newEnvironment(logger, metrics),
		opts...,
	)
	if err != nil {
		_ = cleanup.Close()
		return nil, nil, err
	}
	return a, cleanup, nil
}
