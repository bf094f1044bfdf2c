// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

// Package goal defines the directives that shape every agent prompt.
package goal

import (
	"errors"
	"sort"
	"strings"
)

// ErrInvalidGoal is returned when a goal is missing its name or description.
var ErrInvalidGoal = errors.New("goal: name and description are required")

// Goal is an immutable, priority-ordered directive. Lower priorities are
// rendered first.
type Goal struct {
	priority    int
	name        string
	description string
}

// New creates a Goal.
func New(priority int, name, description string) (Goal, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(description) == "" {
		return Goal{}, ErrInvalidGoal
	}
	return Goal{priority: priority, name: name, description: description}, nil
}

// MustNew is like New but panics on invalid input.
func MustNew(priority int, name, description string) Goal {
	g, err := New(priority, name, description)
	if err != nil {
		panic(err)
	}
	return g
}

// Priority returns the goal priority.
func (g Goal) Priority() int { return g.priority }

// Name returns the goal name.
func (g Goal) Name() string { return g.name }

// Description returns the goal description.
func (g Goal) Description() string { return g.description }

// Sorted returns a copy of goals ordered by ascending priority. Goals with
// equal priority keep their input order.
func Sorted(goals []Goal) []Goal {
	out := append([]Goal(nil), goals...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].priority < out[j].priority
	})
	return out
}
