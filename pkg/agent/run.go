// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/agentloop/pkg/environment"
	agenterr "github.com/jllopis/agentloop/pkg/errors"
	"github.com/jllopis/agentloop/pkg/memory"
	"github.com/jllopis/agentloop/pkg/telemetry"
)

// run carries the state of one execution.
type run struct {
	*Agent
	runID  string
	mem    *memory.Memory
	logger *slog.Logger
}

// Run executes the loop for input and returns the memory of the run. The
// memory is returned even when err is non-nil.
func (a *Agent) Run(ctx context.Context, input string) (*memory.Memory, error) {
	out, err := a.Execute(ctx, input)
	return out.Memory, err
}

// Execute executes the loop for input. The returned Outcome is never nil.
// A run ends TERMINATED with a nil error, MAX_ITERATIONS_REACHED with an
// error wrapping ErrMaxIterations, or FAILED with the fatal error.
func (a *Agent) Execute(ctx context.Context, input string) (*Outcome, error) {
	r := &run{
		Agent: a,
		runID: uuid.NewString(),
		mem:   memory.New(),
	}
	r.logger = a.logger.With("agent_id", a.id, "run_id", r.runID)
	out := &Outcome{RunID: r.runID, State: StateRunning, Memory: r.mem}

	actions := a.registry.All()
	ctx, span := a.tracer.Start(ctx, "agent.run",
		trace.WithAttributes(telemetry.RunAttributes(a.id, r.runID, a.maxIterations, len(a.goals), len(actions))...))
	defer span.End()

	if strings.TrimSpace(input) == "" {
		return r.finish(ctx, span, out, StateFailed, NewInvalidInputError("input is required"))
	}

	r.logger.InfoContext(ctx, "run started", "max_iterations", a.maxIterations, "actions", len(actions))
	if err := r.remember(ctx, memory.EntryUser, input); err != nil {
		return r.finish(ctx, span, out, StateFailed, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return r.finish(ctx, span, out, StateFailed, WrapCanceled(err, out.Iterations))
		}
		out.Iterations++
		terminal, err := r.iterate(ctx, out.Iterations)
		if err != nil {
			return r.finish(ctx, span, out, StateFailed, err)
		}
		if terminal {
			return r.finish(ctx, span, out, StateTerminated, nil)
		}
		if out.Iterations >= a.maxIterations {
			return r.finish(ctx, span, out, StateMaxIterationsReached, WrapMaxIterations(a.maxIterations))
		}
	}
}

// iterate runs one decision and reports whether a terminal action ran.
func (r *run) iterate(ctx context.Context, iteration int) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "agent.iteration",
		trace.WithAttributes(telemetry.IterationAttributes(iteration, r.mem.Len())...))
	defer span.End()
	r.metrics.RecordIteration(ctx, r.id)

	p, err := r.language.BuildPrompt(r.goals, r.mem.Entries(), r.registry.All())
	if err != nil {
		return false, agenterr.New(agenterr.CodeInternal, "build prompt", err).WithContext("iteration", iteration)
	}

	mctx, mspan := r.tracer.Start(ctx, "agent.model")
	start := time.Now()
	raw, err := r.model(mctx, p)
	r.metrics.RecordModelCall(mctx, time.Since(start), err)
	if err != nil {
		endSpan(mspan, err)
		if cerr := ctx.Err(); cerr != nil {
			return false, WrapCanceled(cerr, iteration)
		}
		return false, WrapLLMError(err, iteration)
	}

	decision, parseErr := r.language.ParseResponse(raw)
	kind := "text"
	if decision.IsAction() {
		kind = "action"
	}
	mspan.SetAttributes(telemetry.ModelAttributes(len(p.Messages), len(p.Tools), kind)...)
	endSpan(mspan, parseErr)

	if err := r.remember(ctx, memory.EntryAssistant, raw); err != nil {
		return false, err
	}
	if parseErr != nil {
		return false, r.halt(ctx, parseErr, WrapParseError(parseErr, iteration))
	}
	if !decision.IsAction() {
		r.logger.DebugContext(ctx, "model replied without an action", "iteration", iteration)
		return false, nil
	}

	act, err := r.registry.Get(decision.Action)
	if err != nil {
		return false, r.halt(ctx, err, WrapUnknownAction(err, decision.Action, iteration))
	}

	actx, aspan := r.tracer.Start(ctx, "agent.action")
	res := r.env.ExecuteAction(actx, act, decision.Args)
	aspan.SetAttributes(telemetry.ActionAttributes(act.Name, act.Terminal, res.ToolExecuted)...)
	if !res.ToolExecuted {
		aspan.SetStatus(codes.Error, res.Error)
	}
	aspan.End()

	r.logger.InfoContext(ctx, "action executed",
		"iteration", iteration,
		"action", act.Name,
		"tool_executed", res.ToolExecuted,
		"terminal", act.Terminal,
	)
	if err := r.remember(ctx, memory.EntryEnvironment, res); err != nil {
		return false, err
	}
	return act.Terminal, nil
}

// halt records cause as a failure envelope so the returned memory carries
// the reason the run stopped, then returns fatal.
func (r *run) halt(ctx context.Context, cause error, fatal *agenterr.Error) error {
	if err := r.remember(ctx, memory.EntryEnvironment, environment.Failure(cause)); err != nil {
		return err
	}
	return fatal
}

// remember appends to memory and mirrors the entry to the transcript.
func (r *run) remember(ctx context.Context, t memory.EntryType, content any) error {
	entry, err := r.mem.Add(t, content)
	if err != nil {
		return WrapMemoryError(err, string(t))
	}
	if r.transcript != nil {
		if err := r.transcript.Record(ctx, r.runID, entry); err != nil {
			r.logger.WarnContext(ctx, "transcript record failed", "entry_id", entry.ID, "error", err)
		}
	}
	return nil
}

func (r *run) finish(ctx context.Context, span trace.Span, out *Outcome, state State, err error) (*Outcome, error) {
	out.State = state
	span.SetAttributes(telemetry.OutcomeAttributes(string(state), out.Iterations, r.mem.Len())...)
	r.metrics.RecordRun(ctx, r.id, string(state))

	switch state {
	case StateTerminated:
		r.logger.InfoContext(ctx, "run terminated", "iterations", out.Iterations)
	case StateMaxIterationsReached:
		r.logger.WarnContext(ctx, "run reached max iterations", "iterations", out.Iterations)
	default:
		r.logger.ErrorContext(ctx, "run failed",
			"iterations", out.Iterations,
			"error_code", string(agenterr.CodeOf(err)),
			"error", err,
		)
	}
	if err != nil {
		r.metrics.RecordError(ctx, err, "agent")
		markError(span, err)
	}
	return out, err
}

func markError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func endSpan(span trace.Span, err error) {
	markError(span, err)
	span.End()
}
