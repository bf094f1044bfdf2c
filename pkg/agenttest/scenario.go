// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

// Package agenttest provides utilities for testing agent runs.
//
// This package includes:
//   - Scenario definitions for declarative run testing
//   - Scripted model functions
//   - Matchers for outputs and errors
//
// Example usage:
//
//	script := agenttest.NewScript(
//	    agenttest.ToolCall("list_project_files", nil),
//	    agenttest.ToolCall("terminate", map[string]any{"message": "done"}),
//	)
//	scenario := agenttest.NewScenario("explore").
//	    WithInput("List the files").
//	    ExpectState(agent.StateTerminated).
//	    ExpectActions("list_project_files", "terminate")
//
//	result := scenario.Run(t, a)
//	result.Assert(t, scenario)
package agenttest

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/agentloop/pkg/agent"
	"github.com/jllopis/agentloop/pkg/environment"
	agenterr "github.com/jllopis/agentloop/pkg/errors"
	"github.com/jllopis/agentloop/pkg/language"
	"github.com/jllopis/agentloop/pkg/memory"
)

// Scenario defines a run to execute and the expectations on its outcome.
type Scenario struct {
	name         string
	input        string
	context      context.Context
	timeout      time.Duration
	expectations []Expectation
}

// Expectation defines a condition to verify after running a scenario.
type Expectation interface {
	// Check verifies the expectation against the result.
	Check(result *ScenarioResult) error
	// Description returns a human-readable description of the expectation.
	Description() string
}

// ScenarioResult contains the outcome of running a scenario.
type ScenarioResult struct {
	Outcome  *agent.Outcome
	Output   string
	Error    error
	Actions  []ActionRecord
	Duration time.Duration
}

// ActionRecord is one selected action and the envelope recorded for it,
// rebuilt from the run memory. Selections the registry could not resolve
// appear with their failure envelope.
type ActionRecord struct {
	Name   string
	Args   map[string]any
	Result environment.Result
}

// Runner executes agent runs.
type Runner interface {
	Execute(ctx context.Context, input string) (*agent.Outcome, error)
}

// NewScenario creates a new test scenario with the given name.
func NewScenario(name string) *Scenario {
	return &Scenario{
		name:    name,
		timeout: 30 * time.Second,
		context: context.Background(),
	}
}

// WithInput sets the run input.
func (s *Scenario) WithInput(input string) *Scenario {
	s.input = input
	return s
}

// WithContext sets the parent context of the run.
func (s *Scenario) WithContext(ctx context.Context) *Scenario {
	s.context = ctx
	return s
}

// WithTimeout bounds the run.
func (s *Scenario) WithTimeout(d time.Duration) *Scenario {
	s.timeout = d
	return s
}

// Expect adds a custom expectation.
func (s *Scenario) Expect(exp Expectation) *Scenario {
	s.expectations = append(s.expectations, exp)
	return s
}

// ExpectState expects the run to end in state.
func (s *Scenario) ExpectState(state agent.State) *Scenario {
	return s.Expect(&stateExpectation{state: state})
}

// ExpectOutput expects the final result, formatted with fmt.Sprint, to match.
func (s *Scenario) ExpectOutput(matcher StringMatcher) *Scenario {
	return s.Expect(&outputExpectation{matcher: matcher})
}

// ExpectNoError expects the run to return a nil error.
func (s *Scenario) ExpectNoError() *Scenario {
	return s.Expect(&noErrorExpectation{})
}

// ExpectErrorCode expects the run error to carry code.
func (s *Scenario) ExpectErrorCode(code agenterr.ErrorCode) *Scenario {
	return s.Expect(&errorCodeExpectation{code: code})
}

// ExpectActions expects exactly these actions, in order.
func (s *Scenario) ExpectActions(names ...string) *Scenario {
	return s.Expect(&actionsExpectation{names: names})
}

// ExpectIterations expects the run to take n iterations.
func (s *Scenario) ExpectIterations(n int) *Scenario {
	return s.Expect(&iterationsExpectation{n: n})
}

// Run executes the scenario.
func (s *Scenario) Run(t *testing.T, runner Runner) *ScenarioResult {
	t.Helper()

	ctx, cancel := context.WithTimeout(s.context, s.timeout)
	defer cancel()

	start := time.Now()
	out, err := runner.Execute(ctx, s.input)
	result := &ScenarioResult{
		Outcome:  out,
		Error:    err,
		Duration: time.Since(start),
	}
	if out == nil {
		t.Fatalf("scenario %q: runner returned no outcome", s.name)
	}
	if final, ok := out.FinalResult(); ok {
		result.Output = fmt.Sprint(final)
	}
	result.Actions = Actions(out.Memory)
	return result
}

// Assert checks all expectations and reports failures to the test.
func (r *ScenarioResult) Assert(t *testing.T, scenario *Scenario) {
	t.Helper()

	for _, exp := range scenario.expectations {
		if err := exp.Check(r); err != nil {
			t.Errorf("scenario %q: expectation %q failed: %v", scenario.name, exp.Description(), err)
		}
	}
}

// ActionNames returns the names of the executed actions in order.
func (r *ScenarioResult) ActionNames() []string {
	names := make([]string, 0, len(r.Actions))
	for _, a := range r.Actions {
		names = append(names, a.Name)
	}
	return names
}

// Actions pairs every environment entry with the assistant decision that
// produced it.
func Actions(mem *memory.Memory) []ActionRecord {
	if mem == nil {
		return nil
	}
	parser := language.NewFunctionCalling()
	entries := mem.Entries()
	var out []ActionRecord
	for i := 1; i < len(entries); i++ {
		if entries[i].Type != memory.EntryEnvironment || entries[i-1].Type != memory.EntryAssistant {
			continue
		}
		raw, _ := entries[i-1].Content.(string)
		d, err := parser.ParseResponse(raw)
		if err != nil || !d.IsAction() {
			continue
		}
		res, _ := entries[i].Content.(environment.Result)
		out = append(out, ActionRecord{Name: d.Action, Args: d.Args, Result: res})
	}
	return out
}

// StringMatcher defines how to match strings in expectations.
type StringMatcher interface {
	Match(s string) bool
	Description() string
}

// Contains returns a matcher that checks if the string contains the substring.
func Contains(substr string) StringMatcher {
	return &containsMatcher{substr: substr}
}

// Equals returns a matcher that checks exact string equality.
func Equals(expected string) StringMatcher {
	return &equalsMatcher{expected: expected}
}

// Regex returns a matcher that checks against a regular expression.
func Regex(pattern string) StringMatcher {
	return &regexMatcher{re: regexp.MustCompile(pattern)}
}

// HasPrefix returns a matcher that checks if the string has the given prefix.
func HasPrefix(prefix string) StringMatcher {
	return &prefixMatcher{prefix: prefix}
}

type containsMatcher struct{ substr string }

func (m *containsMatcher) Match(s string) bool  { return strings.Contains(s, m.substr) }
func (m *containsMatcher) Description() string { return fmt.Sprintf("contains %q", m.substr) }

type equalsMatcher struct{ expected string }

func (m *equalsMatcher) Match(s string) bool  { return s == m.expected }
func (m *equalsMatcher) Description() string { return fmt.Sprintf("equals %q", m.expected) }

type regexMatcher struct{ re *regexp.Regexp }

func (m *regexMatcher) Match(s string) bool  { return m.re.MatchString(s) }
func (m *regexMatcher) Description() string { return fmt.Sprintf("matches /%s/", m.re) }

type prefixMatcher struct{ prefix string }

func (m *prefixMatcher) Match(s string) bool  { return strings.HasPrefix(s, m.prefix) }
func (m *prefixMatcher) Description() string { return fmt.Sprintf("has prefix %q", m.prefix) }

type stateExpectation struct{ state agent.State }

func (e *stateExpectation) Check(r *ScenarioResult) error {
	if r.Outcome.State != e.state {
		return fmt.Errorf("state is %s", r.Outcome.State)
	}
	return nil
}

func (e *stateExpectation) Description() string { return "state " + string(e.state) }

type outputExpectation struct{ matcher StringMatcher }

func (e *outputExpectation) Check(r *ScenarioResult) error {
	if !e.matcher.Match(r.Output) {
		return fmt.Errorf("output %q does not match", r.Output)
	}
	return nil
}

func (e *outputExpectation) Description() string { return "output " + e.matcher.Description() }

type noErrorExpectation struct{}

func (e *noErrorExpectation) Check(r *ScenarioResult) error {
	if r.Error != nil {
		return fmt.Errorf("unexpected error: %w", r.Error)
	}
	return nil
}

func (e *noErrorExpectation) Description() string { return "no error" }

type errorCodeExpectation struct{ code agenterr.ErrorCode }

func (e *errorCodeExpectation) Check(r *ScenarioResult) error {
	if r.Error == nil {
		return fmt.Errorf("expected an error")
	}
	if got := agenterr.CodeOf(r.Error); got != e.code {
		return fmt.Errorf("error code is %s: %w", got, r.Error)
	}
	return nil
}

func (e *errorCodeExpectation) Description() string { return "error code " + string(e.code) }

type actionsExpectation struct{ names []string }

func (e *actionsExpectation) Check(r *ScenarioResult) error {
	if got := r.ActionNames(); !slices.Equal(got, e.names) {
		return fmt.Errorf("actions are %v", got)
	}
	return nil
}

func (e *actionsExpectation) Description() string {
	return fmt.Sprintf("actions %v", e.names)
}

type iterationsExpectation struct{ n int }

func (e *iterationsExpectation) Check(r *ScenarioResult) error {
	if r.Outcome.Iterations != e.n {
		return fmt.Errorf("ran %d iterations", r.Outcome.Iterations)
	}
	return nil
}

func (e *iterationsExpectation) Description() string { return fmt.Sprintf("%d iterations", e.n) }
