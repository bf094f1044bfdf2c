// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

// Package environment executes resolved actions and normalizes every outcome
// into a Result envelope.
package environment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/jllopis/agentloop/pkg/action"
)

// TimestampLayout is the layout of Result.Timestamp.
const TimestampLayout = "2006-01-02T15:04:05-0700"

// Result is the uniform envelope stored in memory for every execution.
// ToolExecuted is always set; Result and Timestamp are filled on success,
// Error and Trace on failure.
type Result struct {
	ToolExecuted bool   `json:"tool_executed"`
	Result       any    `json:"result,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
	Error        string `json:"error,omitempty"`
	Trace        string `json:"trace,omitempty"`
}

// Recorder receives one measurement per execution.
type Recorder interface {
	RecordAction(ctx context.Context, name string, ok bool, elapsed time.Duration)
}

// Environment runs actions.
type Environment struct {
	clock    func() time.Time
	logger   *slog.Logger
	recorder Recorder
}

// Option configures an Environment.
type Option func(*Environment)

// WithClock sets the clock used for success timestamps.
func WithClock(clock func() time.Time) Option {
	return func(e *Environment) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Environment) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the recorder for action measurements.
func WithMetrics(r Recorder) Option {
	return func(e *Environment) {
		e.recorder = r
	}
}

// New creates an Environment.
func New(opts ...Option) *Environment {
	e := &Environment{
		clock:  time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecuteAction checks args against the action schema and invokes the
// action. It never returns an error or panics: failures, including argument
// mismatches and panics inside the action, become a failure envelope.
func (e *Environment) ExecuteAction(ctx context.Context, a action.Action, args action.Args) (res Result) {
	start := time.Now()
	if args == nil {
		args = action.Args{}
	}

	defer func() {
		if r := recover(); r != nil {
			res = Result{
				ToolExecuted: false,
				Error:        fmt.Sprintf("action %q panicked: %v", a.Name, r),
				Trace:        string(debug.Stack()),
			}
		}
		e.logger.DebugContext(ctx, "action executed",
			"action", a.Name,
			"duration_ms", time.Since(start).Milliseconds(),
			"tool_executed", res.ToolExecuted,
		)
		if e.recorder != nil {
			e.recorder.RecordAction(ctx, a.Name, res.ToolExecuted, time.Since(start))
		}
	}()

	if a.Function == nil {
		return Failure(fmt.Errorf("action %q has no function", a.Name))
	}
	if err := a.Parameters.Check(args); err != nil {
		return Failure(fmt.Errorf("action %q: %w", a.Name, err))
	}

	out, err := a.Function(ctx, args)
	if err != nil {
		return Failure(err)
	}
	return e.formatResult(a.Name, out)
}

// formatResult wraps out in a success envelope. Results that cannot be
// encoded as JSON would break every later prompt, so they fail here.
func (e *Environment) formatResult(name string, out any) Result {
	if _, err := json.Marshal(out); err != nil {
		return Failure(fmt.Errorf("action %q returned an unencodable result: %w", name, err))
	}
	return Result{
		ToolExecuted: true,
		Result:       out,
		Timestamp:    e.clock().Format(TimestampLayout),
	}
}

// Failure builds the failure envelope for err.
func Failure(err error) Result {
	return Result{
		ToolExecuted: false,
		Error:        err.Error(),
		Trace:        errorTrace(err),
	}
}

// errorTrace renders the error tree, one cause per line, outermost first.
// Joined causes are indented under the error that joins them.
func errorTrace(err error) string {
	var b strings.Builder
	writeTrace(&b, err, 0)
	return b.String()
}

func writeTrace(b *strings.Builder, err error, depth int) {
	for ; err != nil; depth++ {
		fmt.Fprintf(b, "%s%T: %s\n", strings.Repeat("  ", depth), err, err.Error())
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			for _, cause := range u.Unwrap() {
				writeTrace(b, cause, depth+1)
			}
			return
		case interface{ Unwrap() error }:
			err = u.Unwrap()
		default:
			return
		}
	}
}
