// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

package action

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	agenterr "github.com/jllopis/agentloop/pkg/errors"
)

var (
	// ErrUnknownAction indicates a lookup for a name that is not registered.
	ErrUnknownAction = errors.New("unknown action")
	// ErrDuplicateAction indicates a second registration under an existing name.
	ErrDuplicateAction = errors.New("duplicate action")
	// ErrInvalidAction indicates an action failed registration-time validation.
	ErrInvalidAction = errors.New("invalid action")
)

// Registry maps action names to actions. A name can be registered only once;
// later registrations under the same name are rejected and leave the
// registry unchanged. Actions are listed in registration order.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]Action)}
}

// Register validates and adds an action.
func (r *Registry) Register(a Action) error {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return agenterr.New(agenterr.CodeInvalidInput, "action name is required", ErrInvalidAction)
	}
	if a.Function == nil {
		return agenterr.New(agenterr.CodeInvalidInput, "action function is required", ErrInvalidAction).
			WithContext("action", a.Name)
	}
	a.Parameters = a.Parameters.normalized()
	if err := a.Parameters.validate(); err != nil {
		return agenterr.New(agenterr.CodeInvalidInput, err.Error(), ErrInvalidAction).
			WithContext("action", a.Name)
	}
	resolved, err := a.Parameters.compile()
	if err != nil {
		return agenterr.New(agenterr.CodeInvalidInput, err.Error(), ErrInvalidAction).
			WithContext("action", a.Name)
	}
	a.Parameters.resolved = resolved

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.actions[a.Name]; exists {
		return agenterr.New(agenterr.CodeDuplicateAction, fmt.Sprintf("action %q already registered", a.Name), ErrDuplicateAction).
			WithContext("action", a.Name)
	}
	r.actions[a.Name] = a
	r.order = append(r.order, a.Name)
	return nil
}

// MustRegister registers actions and panics on the first error.
func (r *Registry) MustRegister(actions ...Action) {
	for _, a := range actions {
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
}

// Get resolves an action by name.
func (r *Registry) Get(name string) (Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[name]
	if !ok {
		return Action{}, agenterr.New(agenterr.CodeUnknownAction, fmt.Sprintf("action %q is not registered", name), ErrUnknownAction).
			WithContext("action", name)
	}
	return a, nil
}

// All returns every action in registration order.
func (r *Registry) All() []Action {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Action, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.actions[name])
	}
	return out
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered actions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// IsTerminal reports whether name is registered as a terminal action.
func (r *Registry) IsTerminal(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.actions[name].Terminal
}
