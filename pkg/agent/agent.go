// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent implements the goal-directed decision loop: ask the model for
// one action, execute it, remember the outcome, repeat until a terminal
// action runs or the iteration budget is spent.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/agentloop/pkg/action"
	"github.com/jllopis/agentloop/pkg/environment"
	agenterr "github.com/jllopis/agentloop/pkg/errors"
	"github.com/jllopis/agentloop/pkg/goal"
	"github.com/jllopis/agentloop/pkg/language"
	"github.com/jllopis/agentloop/pkg/memory"
	"github.com/jllopis/agentloop/pkg/prompt"
	"github.com/jllopis/agentloop/pkg/telemetry"
)

// DefaultMaxIterations bounds a run when WithMaxIterations is not given.
const DefaultMaxIterations = 50

// TracerName is the instrumentation scope of agent spans.
const TracerName = "github.com/jllopis/agentloop/agent"

// ModelFunc asks the model for the next decision. It returns plain text or
// a JSON object {"tool": name, "args": {...}}.
type ModelFunc func(ctx context.Context, p prompt.Prompt) (string, error)

// Executor runs a resolved action and reports the outcome as an envelope.
type Executor interface {
	ExecuteAction(ctx context.Context, a action.Action, args action.Args) environment.Result
}

// Agent is a configured decision loop. An Agent holds no per-run state and
// may serve sequential or concurrent runs; each run owns its Memory.
type Agent struct {
	id            string
	goals         []goal.Goal
	language      language.Language
	registry      *action.Registry
	model         ModelFunc
	env           Executor
	maxIterations int
	logger        *slog.Logger
	transcript    memory.Sink
	metrics       *telemetry.AgentMetrics
	tracer        trace.Tracer
}

// Option configures an Agent.
type Option func(*Agent) error

// New creates an agent.
func New(id string, goals []goal.Goal, lang language.Language, registry *action.Registry, model ModelFunc, env Executor, opts ...Option) (*Agent, error) {
	switch {
	case id == "":
		return nil, NewInvalidInputError("agent id is required")
	case lang == nil:
		return nil, NewInvalidInputError("agent language is required")
	case registry == nil:
		return nil, NewInvalidInputError("action registry is required")
	case model == nil:
		return nil, NewInvalidInputError("model function is required")
	case env == nil:
		return nil, NewInvalidInputError("environment is required")
	}

	a := &Agent{
		id:            id,
		goals:         append([]goal.Goal(nil), goals...),
		language:      lang,
		registry:      registry,
		model:         model,
		env:           env,
		maxIterations: DefaultMaxIterations,
		logger:        slog.Default(),
		tracer:        otel.Tracer(TracerName),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// WithMaxIterations sets the iteration budget of each run.
func WithMaxIterations(n int) Option {
	return func(a *Agent) error {
		if n < 1 {
			return NewInvalidInputError(fmt.Sprintf("max iterations must be at least 1, got %d", n))
		}
		a.maxIterations = n
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) error {
		if logger != nil {
			a.logger = logger
		}
		return nil
	}
}

// WithTranscript mirrors every memory entry to sink. Sink failures are
// logged and never end a run.
func WithTranscript(sink memory.Sink) Option {
	return func(a *Agent) error {
		a.transcript = sink
		return nil
	}
}

// WithMetrics records run metrics.
func WithMetrics(m *telemetry.AgentMetrics) Option {
	return func(a *Agent) error {
		a.metrics = m
		return nil
	}
}

// WithTracer sets the tracer used for run spans.
func WithTracer(t trace.Tracer) Option {
	return func(a *Agent) error {
		if t != nil {
			a.tracer = t
		}
		return nil
	}
}

// ID returns the agent identifier.
func (a *Agent) ID() string { return a.id }

// Goals returns a copy of the agent goals.
func (a *Agent) Goals() []goal.Goal { return append([]goal.Goal(nil), a.goals...) }

// MaxIterations returns the per-run iteration budget.
func (a *Agent) MaxIterations() int { return a.maxIterations }

// NewInvalidInputError creates an invalid input error.
func NewInvalidInputError(msg string) *agenterr.Error {
	return agenterr.New(agenterr.CodeInvalidInput, msg, nil)
}
