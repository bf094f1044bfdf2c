// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry wires the agent loop into log/slog and OpenTelemetry:
// trace-aware logging, exporter setup, span attributes and run metrics.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys used on agent spans and metrics.
const (
	AttrAgentID        = "agentloop.agent.id"
	AttrAgentRunID     = "agentloop.agent.run_id"
	AttrAgentIteration = "agentloop.agent.iteration"
	AttrAgentMaxIter   = "agentloop.agent.max_iterations"
	AttrAgentState     = "agentloop.agent.state"
	AttrGoalsCount     = "agentloop.goals.count"

	AttrActionName     = "agentloop.action.name"
	AttrActionTerminal = "agentloop.action.terminal"
	AttrActionSuccess  = "agentloop.action.success"
	AttrActionsCount   = "agentloop.actions.count"

	AttrMemoryEntries = "agentloop.memory.entries"

	AttrErrorCode = "error.code"
	AttrComponent = "component"

	// gen_ai conventions
	AttrLLMMessages = "gen_ai.request.messages"
	AttrLLMTools    = "gen_ai.request.tools"
	AttrLLMDecision = "gen_ai.response.decision"
)

// RunAttributes describes an agent run.
func RunAttributes(agentID, runID string, maxIter, goals, actions int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrAgentID, agentID),
		attribute.String(AttrAgentRunID, runID),
		attribute.Int(AttrAgentMaxIter, maxIter),
		attribute.Int(AttrGoalsCount, goals),
		attribute.Int(AttrActionsCount, actions),
	}
}

// IterationAttributes describes one loop iteration.
func IterationAttributes(iteration, memoryEntries int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrAgentIteration, iteration),
		attribute.Int(AttrMemoryEntries, memoryEntries),
	}
}

// ModelAttributes describes a model call. decision is "action" or "text";
// empty when the call failed.
func ModelAttributes(messages, tools int, decision string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrLLMMessages, messages),
		attribute.Int(AttrLLMTools, tools),
	}
	if decision != "" {
		attrs = append(attrs, attribute.String(AttrLLMDecision, decision))
	}
	return attrs
}

// ActionAttributes describes an action execution.
func ActionAttributes(name string, terminal, success bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrActionName, name),
		attribute.Bool(AttrActionTerminal, terminal),
		attribute.Bool(AttrActionSuccess, success),
	}
}

// OutcomeAttributes describes how a run ended.
func OutcomeAttributes(state string, iterations, memoryEntries int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrAgentState, state),
		attribute.Int(AttrAgentIteration, iterations),
		attribute.Int(AttrMemoryEntries, memoryEntries),
	}
}
