// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

// Package language translates between the agent's state and the model: it
// renders goals, memory and actions into a prompt, and parses the model's
// raw reply into a decision.
package language

import (
	"errors"

	"github.com/jllopis/agentloop/pkg/action"
	"github.com/jllopis/agentloop/pkg/goal"
	"github.com/jllopis/agentloop/pkg/memory"
	"github.com/jllopis/agentloop/pkg/prompt"
)

// ErrResponseParse is returned when a structured reply names a tool but is
// otherwise malformed.
var ErrResponseParse = errors.New("malformed model response")

// Decision is the parsed model reply. Either Action is set, or the reply was
// plain text held in Text.
type Decision struct {
	Text   string
	Action string
	Args   action.Args
}

// IsAction reports whether the model selected an action.
func (d Decision) IsAction() bool {
	return d.Action != ""
}

// Language is the prompt/response protocol between agent and model.
type Language interface {
	// BuildPrompt must be pure: the same inputs always yield an equal prompt.
	BuildPrompt(goals []goal.Goal, entries []memory.Entry, actions []action.Action) (prompt.Prompt, error)
	ParseResponse(raw string) (Decision, error)
}
