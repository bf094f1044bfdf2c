// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jllopis/agentloop/pkg/action"
	"github.com/jllopis/agentloop/pkg/environment"
	agenterr "github.com/jllopis/agentloop/pkg/errors"
	"github.com/jllopis/agentloop/pkg/goal"
	"github.com/jllopis/agentloop/pkg/language"
	"github.com/jllopis/agentloop/pkg/memory"
	"github.com/jllopis/agentloop/pkg/prompt"
	"github.com/jllopis/agentloop/pkg/telemetry"
)

const (
	listCall      = `{"tool": "list_project_files", "args": {}}`
	terminateDone = `{"tool": "terminate", "args": {"message": "done"}}`
)

// scriptedModel replays responses and records every prompt it receives.
type scriptedModel struct {
	mu        sync.Mutex
	responses []string
	prompts   []prompt.Prompt
}

func (m *scriptedModel) respond(_ context.Context, p prompt.Prompt) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, p)
	if len(m.responses) == 0 {
		return "", errors.New("script exhausted")
	}
	next := m.responses[0]
	m.responses = m.responses[1:]
	return next, nil
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func testRegistry(t *testing.T, extra ...action.Action) *action.Registry {
	t.Helper()
	r := action.NewRegistry()
	r.MustRegister(
		action.Action{
			Name:        "list_project_files",
			Description: "Lists the project files.",
			Function: func(context.Context, action.Args) (any, error) {
				return []string{"agent.py", "main.py"}, nil
			},
		},
		action.Action{
			Name:        "terminate",
			Description: "Terminates the session.",
			Parameters: action.Schema{
				Properties: map[string]any{"message": action.StringParam("")},
			},
			Terminal: true,
			Function: func(_ context.Context, args action.Args) (any, error) {
				return args.OptionalString("message", "") + "\nTerminating...", nil
			},
		},
	)
	r.MustRegister(extra...)
	return r
}

func testGoals() []goal.Goal {
	return []goal.Goal{
		goal.MustNew(1, "Gather Information", "Get files list using tools and then Read each file in the project"),
		goal.MustNew(1, "Terminate", "Call the terminate call when you have read all the files"),
	}
}

func newTestAgent(t *testing.T, model ModelFunc, r *action.Registry, opts ...Option) *Agent {
	t.Helper()
	env := environment.New(
		environment.WithClock(func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }),
		environment.WithLogger(telemetry.NewLogger(io.Discard, "error", "text")),
	)
	opts = append([]Option{WithLogger(telemetry.NewLogger(io.Discard, "error", "text"))}, opts...)
	a, err := New("file-explorer", testGoals(), language.NewFunctionCalling(), r, model, env, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func entryTypes(mem *memory.Memory) []memory.EntryType {
	var types []memory.EntryType
	for _, e := range mem.Entries() {
		types = append(types, e.Type)
	}
	return types
}

func envResult(t *testing.T, e memory.Entry) environment.Result {
	t.Helper()
	res, ok := e.Content.(environment.Result)
	if !ok {
		t.Fatalf("expected environment.Result content, got %T", e.Content)
	}
	return res
}

func TestListThenTerminate(t *testing.T) {
	model := &scriptedModel{responses: []string{listCall, terminateDone}}
	a := newTestAgent(t, model.respond, testRegistry(t))

	out, err := a.Execute(context.Background(), "List the files in the project and read each file's content.")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.State != StateTerminated || out.Iterations != 2 {
		t.Fatalf("expected TERMINATED after 2 iterations, got %s after %d", out.State, out.Iterations)
	}
	if out.RunID == "" {
		t.Fatal("expected a run id")
	}

	want := []memory.EntryType{
		memory.EntryUser,
		memory.EntryAssistant, memory.EntryEnvironment,
		memory.EntryAssistant, memory.EntryEnvironment,
	}
	if diff := cmp.Diff(want, entryTypes(out.Memory)); diff != "" {
		t.Fatalf("entry types mismatch (-want +got):\n%s", diff)
	}

	envs := out.Memory.ByType(memory.EntryEnvironment)
	listed := envResult(t, envs[0])
	if !listed.ToolExecuted {
		t.Fatalf("list_project_files failed: %+v", listed)
	}
	if diff := cmp.Diff([]string{"agent.py", "main.py"}, listed.Result); diff != "" {
		t.Fatalf("list result mismatch (-want +got):\n%s", diff)
	}
	if listed.Timestamp != "2026-01-02T03:04:05+0000" {
		t.Fatalf("unexpected timestamp %s", listed.Timestamp)
	}

	final, ok := out.FinalResult()
	if !ok || final != "done\nTerminating..." {
		t.Fatalf("unexpected final result %v (%v)", final, ok)
	}
}

func TestRunReturnsMemory(t *testing.T) {
	model := &scriptedModel{responses: []string{terminateDone}}
	a := newTestAgent(t, model.respond, testRegistry(t))

	mem, err := a.Run(context.Background(), "finish")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if mem.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", mem.Len())
	}
	first, _ := mem.Entries()[0].Content.(string)
	if first != "finish" {
		t.Fatalf("expected the input as first entry, got %q", first)
	}
}

func TestUnknownActionHaltsRun(t *testing.T) {
	executed := false
	spy := action.Action{
		Name: "spy",
		Function: func(context.Context, action.Args) (any, error) {
			executed = true
			return nil, nil
		},
	}
	model := &scriptedModel{responses: []string{`{"tool": "delete_everything", "args": {}}`, terminateDone}}
	a := newTestAgent(t, model.respond, testRegistry(t, spy))

	out, err := a.Execute(context.Background(), "clean up")
	if !errors.Is(err, action.ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
	if agenterr.CodeOf(err) != agenterr.CodeUnknownAction {
		t.Fatalf("expected UNKNOWN_ACTION code, got %s", agenterr.CodeOf(err))
	}
	if out.State != StateFailed {
		t.Fatalf("expected FAILED, got %s", out.State)
	}
	if model.calls() != 1 {
		t.Fatalf("expected no retry after an unknown action, got %d model calls", model.calls())
	}
	if executed {
		t.Fatal("no action may run after an unknown selection")
	}
	want := []memory.EntryType{memory.EntryUser, memory.EntryAssistant, memory.EntryEnvironment}
	if diff := cmp.Diff(want, entryTypes(out.Memory)); diff != "" {
		t.Fatalf("entry types mismatch (-want +got):\n%s", diff)
	}
	last, _ := out.Memory.Last()
	res := envResult(t, last)
	if res.ToolExecuted || !strings.Contains(res.Error, `action "delete_everything" is not registered`) || res.Trace == "" {
		t.Fatalf("expected the lookup failure recorded in memory, got %+v", res)
	}
}

func TestActionFailureContinues(t *testing.T) {
	failing := action.Action{
		Name: "read_project_file",
		Parameters: action.Schema{
			Properties: map[string]any{"name": action.StringParam("")},
			Required:   []string{"name"},
		},
		Function: func(_ context.Context, args action.Args) (any, error) {
			name, _ := args.String("name")
			return nil, errors.New("open " + name + ": no such file or directory")
		},
	}
	exploding := action.Action{
		Name: "explode",
		Function: func(context.Context, action.Args) (any, error) {
			panic("boom")
		},
	}
	model := &scriptedModel{responses: []string{
		`{"tool": "read_project_file", "args": {"name": "missing.py"}}`,
		`{"tool": "explode"}`,
		`{"tool": "read_project_file", "args": {}}`,
		terminateDone,
	}}
	a := newTestAgent(t, model.respond, testRegistry(t, failing, exploding))

	out, err := a.Execute(context.Background(), "read missing.py")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.State != StateTerminated || out.Iterations != 4 {
		t.Fatalf("expected TERMINATED after 4 iterations, got %s after %d", out.State, out.Iterations)
	}

	envs := out.Memory.ByType(memory.EntryEnvironment)
	wantErrors := []string{
		"open missing.py: no such file or directory",
		`action "explode" panicked: boom`,
		`missing properties: ["name"]`,
	}
	for i, want := range wantErrors {
		res := envResult(t, envs[i])
		if res.ToolExecuted {
			t.Fatalf("entry %d: expected failure envelope, got %+v", i, res)
		}
		if !strings.Contains(res.Error, want) || res.Trace == "" {
			t.Fatalf("entry %d: expected error %q with trace, got %+v", i, want, res)
		}
	}

	// the failure is visible to the model on the next iteration
	second := model.prompts[1].Messages
	if last := second[len(second)-1].Content; !strings.Contains(last, `"tool_executed":false`) {
		t.Fatalf("expected failure envelope in next prompt, got %s", last)
	}
}

func TestPlainTextIsNoOp(t *testing.T) {
	model := &scriptedModel{responses: []string{"I should list the files first.", terminateDone}}
	a := newTestAgent(t, model.respond, testRegistry(t))

	out, err := a.Execute(context.Background(), "go")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := []memory.EntryType{memory.EntryUser, memory.EntryAssistant, memory.EntryAssistant, memory.EntryEnvironment}
	if diff := cmp.Diff(want, entryTypes(out.Memory)); diff != "" {
		t.Fatalf("entry types mismatch (-want +got):\n%s", diff)
	}
	if out.Memory.Entries()[1].Content != "I should list the files first." {
		t.Fatalf("plain text must be recorded verbatim")
	}
}

func TestMaxIterations(t *testing.T) {
	model := &scriptedModel{responses: []string{listCall, "thinking", listCall, terminateDone}}
	a := newTestAgent(t, model.respond, testRegistry(t), WithMaxIterations(3))

	out, err := a.Execute(context.Background(), "loop")
	if !errors.Is(err, ErrMaxIterations) {
		t.Fatalf("expected ErrMaxIterations, got %v", err)
	}
	if out.State != StateMaxIterationsReached || out.Iterations != 3 {
		t.Fatalf("expected MAX_ITERATIONS_REACHED after 3, got %s after %d", out.State, out.Iterations)
	}
	if model.calls() != 3 {
		t.Fatalf("expected 3 model calls, got %d", model.calls())
	}
	if out.Memory.Len() != 6 {
		t.Fatalf("expected 6 entries, got %d", out.Memory.Len())
	}
	if _, ok := out.FinalResult(); ok {
		t.Fatal("no final result without termination")
	}
}

func TestOnlyTerminalActionsStop(t *testing.T) {
	responses := make([]string, 10)
	for i := range responses {
		responses[i] = listCall
	}
	model := &scriptedModel{responses: responses}
	a := newTestAgent(t, model.respond, testRegistry(t), WithMaxIterations(10))

	out, _ := a.Execute(context.Background(), "loop")
	if out.State != StateMaxIterationsReached || out.Iterations != 10 {
		t.Fatalf("non-terminal actions must never end the run, got %s after %d", out.State, out.Iterations)
	}
}

func TestTerminalStopsOnFailedEnvelope(t *testing.T) {
	model := &scriptedModel{responses: []string{`{"tool": "terminate", "args": {"message": 42}}`}}
	a := newTestAgent(t, model.respond, testRegistry(t))

	out, err := a.Execute(context.Background(), "stop")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.State != StateTerminated {
		t.Fatalf("expected TERMINATED, got %s", out.State)
	}
	res := envResult(t, out.Memory.ByType(memory.EntryEnvironment)[0])
	if res.ToolExecuted {
		t.Fatalf("expected type mismatch to fail the envelope: %+v", res)
	}
	if _, ok := out.FinalResult(); ok {
		t.Fatal("failed terminal execution has no final result")
	}
}

func TestFatalErrors(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name      string
		ctx       context.Context
		input     string
		model     ModelFunc
		wantCode  agenterr.ErrorCode
		wantIs    error
		wantTypes []memory.EntryType
	}{
		{
			name:      "parse error",
			ctx:       context.Background(),
			input:     "go",
			model:     (&scriptedModel{responses: []string{`{"tool": "terminate", "args": [1]}`}}).respond,
			wantCode:  agenterr.CodeResponseParse,
			wantIs:    language.ErrResponseParse,
			wantTypes: []memory.EntryType{memory.EntryUser, memory.EntryAssistant, memory.EntryEnvironment},
		},
		{
			name:  "model error",
			ctx:   context.Background(),
			input: "go",
			model: func(context.Context, prompt.Prompt) (string, error) {
				return "", errors.New("connection refused")
			},
			wantCode:  agenterr.CodeLLMError,
			wantTypes: []memory.EntryType{memory.EntryUser},
		},
		{
			name:      "canceled",
			ctx:       canceled,
			input:     "go",
			model:     (&scriptedModel{responses: []string{terminateDone}}).respond,
			wantCode:  agenterr.CodeCanceled,
			wantIs:    context.Canceled,
			wantTypes: []memory.EntryType{memory.EntryUser},
		},
		{
			name:     "blank input",
			ctx:      context.Background(),
			input:    "  ",
			model:    (&scriptedModel{}).respond,
			wantCode: agenterr.CodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAgent(t, tt.model, testRegistry(t))
			out, err := a.Execute(tt.ctx, tt.input)
			if err == nil {
				t.Fatal("expected error")
			}
			if code := agenterr.CodeOf(err); code != tt.wantCode {
				t.Fatalf("expected code %s, got %s (%v)", tt.wantCode, code, err)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Fatalf("expected %v in chain, got %v", tt.wantIs, err)
			}
			if out.State != StateFailed {
				t.Fatalf("expected FAILED, got %s", out.State)
			}
			if diff := cmp.Diff(tt.wantTypes, entryTypes(out.Memory)); diff != "" {
				t.Fatalf("entry types mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseFailureIsRecorded(t *testing.T) {
	model := &scriptedModel{responses: []string{`{"tool": "terminate", "args": "not an object"}`}}
	a := newTestAgent(t, model.respond, testRegistry(t))

	out, err := a.Execute(context.Background(), "go")
	if !errors.Is(err, language.ErrResponseParse) {
		t.Fatalf("expected ErrResponseParse, got %v", err)
	}
	last, _ := out.Memory.Last()
	res := envResult(t, last)
	if res.ToolExecuted || !strings.Contains(res.Error, `"args" must be an object`) {
		t.Fatalf("expected the parse failure recorded in memory, got %+v", res)
	}
}

func TestCancelDuringModelCall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	model := func(ctx context.Context, _ prompt.Prompt) (string, error) {
		cancel()
		<-ctx.Done()
		return "", ctx.Err()
	}
	a := newTestAgent(t, model, testRegistry(t))

	out, err := a.Execute(ctx, "go")
	if code := agenterr.CodeOf(err); code != agenterr.CodeCanceled {
		t.Fatalf("expected CANCELED, got %s (%v)", code, err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
	if out.State != StateFailed || out.Iterations != 1 {
		t.Fatalf("expected FAILED after 1 iteration, got %s after %d", out.State, out.Iterations)
	}
}

func TestUnencodableResultIsNotFatal(t *testing.T) {
	measure := action.Action{
		Name: "measure",
		Function: func(context.Context, action.Args) (any, error) {
			return math.NaN(), nil
		},
	}
	model := &scriptedModel{responses: []string{`{"tool": "measure"}`, terminateDone}}
	a := newTestAgent(t, model.respond, testRegistry(t, measure))

	out, err := a.Execute(context.Background(), "measure it")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.State != StateTerminated || out.Iterations != 2 {
		t.Fatalf("expected TERMINATED after 2 iterations, got %s after %d", out.State, out.Iterations)
	}
	res := envResult(t, out.Memory.ByType(memory.EntryEnvironment)[0])
	if res.ToolExecuted || !strings.Contains(res.Error, "unencodable result") {
		t.Fatalf("expected failure envelope for NaN result, got %+v", res)
	}
	if final, ok := out.FinalResult(); !ok || final != "done\nTerminating..." {
		t.Fatalf("unexpected final result %v", final)
	}
}

func TestMemoryIsAppendOnly(t *testing.T) {
	model := &scriptedModel{responses: []string{listCall, "hmm", listCall, terminateDone}}
	sink := &recordingSink{}
	a := newTestAgent(t, model.respond, testRegistry(t), WithTranscript(sink))

	out, err := a.Execute(context.Background(), "go")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// the transcript saw every entry at append time, in order
	if diff := cmp.Diff(out.Memory.Entries(), sink.entries); diff != "" {
		t.Fatalf("transcript mismatch (-memory +transcript):\n%s", diff)
	}
	if sink.runID != out.RunID {
		t.Fatalf("transcript recorded under %q, want %q", sink.runID, out.RunID)
	}

	// each prompt renders the previous history plus the newer entries
	for i := 1; i < len(model.prompts); i++ {
		prev, next := model.prompts[i-1].Messages, model.prompts[i].Messages
		if len(next) <= len(prev) {
			t.Fatalf("prompt %d did not grow", i)
		}
		if diff := cmp.Diff(prev, next[:len(prev)]); diff != "" {
			t.Fatalf("prompt %d rewrote earlier history:\n%s", i, diff)
		}
	}
}

func TestTranscriptFailureIsNotFatal(t *testing.T) {
	model := &scriptedModel{responses: []string{terminateDone}}
	a := newTestAgent(t, model.respond, testRegistry(t), WithTranscript(&recordingSink{err: errors.New("disk full")}))

	out, err := a.Execute(context.Background(), "go")
	if err != nil || out.State != StateTerminated {
		t.Fatalf("transcript errors must not fail the run: %v %s", err, out.State)
	}
}

func TestPromptCarriesGoalsAndTools(t *testing.T) {
	model := &scriptedModel{responses: []string{terminateDone}}
	a := newTestAgent(t, model.respond, testRegistry(t))
	if _, err := a.Execute(context.Background(), "go"); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	p := model.prompts[0]
	if p.Messages[0].Role != prompt.RoleSystem || !strings.Contains(p.Messages[0].Content, "Gather Information:") {
		t.Fatalf("expected goals in system message, got %+v", p.Messages[0])
	}
	if diff := cmp.Diff([]string{"list_project_files", "terminate"}, p.ToolNames()); diff != "" {
		t.Fatalf("tools mismatch (-want +got):\n%s", diff)
	}
}

func TestRunSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	model := &scriptedModel{responses: []string{listCall, terminateDone}}
	a := newTestAgent(t, model.respond, testRegistry(t), WithTracer(tp.Tracer("test")))
	if _, err := a.Execute(context.Background(), "go"); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	counts := map[string]int{}
	for _, s := range sr.Ended() {
		counts[s.Name()]++
	}
	want := map[string]int{"agent.run": 1, "agent.iteration": 2, "agent.model": 2, "agent.action": 2}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Fatalf("span counts mismatch (-want +got):\n%s", diff)
	}
}

func TestNewValidation(t *testing.T) {
	env := environment.New()
	lang := language.NewFunctionCalling()
	reg := action.NewRegistry()
	model := (&scriptedModel{}).respond

	tests := []struct {
		name string
		fn   func() (*Agent, error)
	}{
		{"missing id", func() (*Agent, error) { return New("", nil, lang, reg, model, env) }},
		{"missing language", func() (*Agent, error) { return New("a", nil, nil, reg, model, env) }},
		{"missing registry", func() (*Agent, error) { return New("a", nil, lang, nil, model, env) }},
		{"missing model", func() (*Agent, error) { return New("a", nil, lang, reg, nil, env) }},
		{"missing environment", func() (*Agent, error) { return New("a", nil, lang, reg, model, nil) }},
		{"bad max iterations", func() (*Agent, error) { return New("a", nil, lang, reg, model, env, WithMaxIterations(0)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.fn(); agenterr.CodeOf(err) != agenterr.CodeInvalidInput {
				t.Fatalf("expected INVALID_INPUT, got %v", err)
			}
		})
	}

	a, err := New("a", testGoals(), lang, reg, model, env)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.MaxIterations() != DefaultMaxIterations || a.ID() != "a" || len(a.Goals()) != 2 {
		t.Fatalf("unexpected defaults: %d %s %d", a.MaxIterations(), a.ID(), len(a.Goals()))
	}
}

type recordingSink struct {
	mu      sync.Mutex
	runID   string
	entries []memory.Entry
	err     error
}

func (s *recordingSink) Record(_ context.Context, runID string, e memory.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.runID = runID
	s.entries = append(s.entries, e)
	return nil
}

func (s *recordingSink) Entries(context.Context, string) ([]memory.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]memory.Entry(nil), s.entries...), nil
}

func (s *recordingSink) Runs(context.Context) ([]string, error) {
	return []string{s.runID}, nil
}
