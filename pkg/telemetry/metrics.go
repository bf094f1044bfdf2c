// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	agenterr "github.com/jllopis/agentloop/pkg/errors"
)

// MeterName is the instrumentation scope of AgentMetrics.
const MeterName = "github.com/jllopis/agentloop"

// AgentMetrics records loop activity. A nil *AgentMetrics is valid and
// records nothing.
type AgentMetrics struct {
	iterations     metric.Int64Counter
	actions        metric.Int64Counter
	actionDuration metric.Float64Histogram
	runs           metric.Int64Counter
	modelDuration  metric.Float64Histogram
	errors         metric.Int64Counter
}

// NewAgentMetrics creates the instruments on meter, or on the global meter
// provider when meter is nil.
func NewAgentMetrics(meter metric.Meter) (*AgentMetrics, error) {
	if meter == nil {
		meter = otel.Meter(MeterName)
	}
	m := &AgentMetrics{}
	var err error

	if m.iterations, err = meter.Int64Counter("agentloop.iterations",
		metric.WithDescription("Loop iterations started")); err != nil {
		return nil, err
	}
	if m.actions, err = meter.Int64Counter("agentloop.actions",
		metric.WithDescription("Action executions by name and outcome")); err != nil {
		return nil, err
	}
	if m.actionDuration, err = meter.Float64Histogram("agentloop.action.duration",
		metric.WithDescription("Action execution time"), metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.runs, err = meter.Int64Counter("agentloop.runs",
		metric.WithDescription("Finished runs by final state")); err != nil {
		return nil, err
	}
	if m.modelDuration, err = meter.Float64Histogram("agentloop.model.duration",
		metric.WithDescription("Model call latency"), metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.errors, err = meter.Int64Counter("agentloop.errors",
		metric.WithDescription("Run errors by code and component")); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordIteration counts one loop iteration.
func (m *AgentMetrics) RecordIteration(ctx context.Context, agentID string) {
	if m == nil {
		return
	}
	m.iterations.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrAgentID, agentID)))
}

// RecordAction counts one action execution and its duration.
func (m *AgentMetrics) RecordAction(ctx context.Context, name string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrActionName, name),
		attribute.Bool(AttrActionSuccess, ok),
	)
	m.actions.Add(ctx, 1, attrs)
	m.actionDuration.Record(ctx, milliseconds(elapsed), attrs)
}

// RecordRun counts a finished run by state.
func (m *AgentMetrics) RecordRun(ctx context.Context, agentID, state string) {
	if m == nil {
		return
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrAgentID, agentID),
		attribute.String(AttrAgentState, state),
	))
}

// RecordModelCall records model latency.
func (m *AgentMetrics) RecordModelCall(ctx context.Context, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.modelDuration.Record(ctx, milliseconds(elapsed), metric.WithAttributes(
		attribute.Bool("success", err == nil),
	))
}

// RecordError counts err under its code.
func (m *AgentMetrics) RecordError(ctx context.Context, err error, component string) {
	if m == nil || err == nil {
		return
	}
	m.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrErrorCode, string(agenterr.CodeOf(err))),
		attribute.String(AttrComponent, component),
	))
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
