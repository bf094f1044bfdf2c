// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"errors"
	"testing"

	agenterr "github.com/jllopis/agentloop/pkg/errors"
)

func TestWrapLLMError(t *testing.T) {
	if WrapLLMError(nil, 1) != nil {
		t.Fatal("expected nil for nil error")
	}

	cause := errors.New("503 service unavailable")
	wrapped := WrapLLMError(cause, 2)
	if wrapped.Code != agenterr.CodeLLMError || !errors.Is(wrapped, cause) {
		t.Fatalf("unexpected wrap: %v", wrapped)
	}
	if wrapped.Context["iteration"] != 2 {
		t.Fatalf("expected iteration context, got %v", wrapped.Context)
	}

	// already classified model errors are not wrapped twice
	again := WrapLLMError(wrapped, 3)
	if again != wrapped || again.Context["iteration"] != 3 {
		t.Fatalf("expected the same error with updated context, got %v", again)
	}
}

func TestWrapMaxIterations(t *testing.T) {
	err := WrapMaxIterations(5)
	if !errors.Is(err, ErrMaxIterations) {
		t.Fatal("expected ErrMaxIterations in chain")
	}
	if agenterr.CodeOf(err) != agenterr.CodeMaxIterations {
		t.Fatalf("unexpected code %s", agenterr.CodeOf(err))
	}
}

func TestStateDone(t *testing.T) {
	tests := map[State]bool{
		StateRunning:              false,
		StateTerminated:           true,
		StateMaxIterationsReached: true,
		StateFailed:               true,
	}
	for state, want := range tests {
		if got := state.Done(); got != want {
			t.Errorf("%s.Done() = %v, want %v", state, got, want)
		}
	}

	var out *Outcome
	if _, ok := out.FinalResult(); ok {
		t.Fatal("nil outcome has no final result")
	}
}
