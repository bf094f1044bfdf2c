// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"errors"
	"fmt"

	agenterr "github.com/jllopis/agentloop/pkg/errors"
)

// ErrMaxIterations is returned when a run spends its iteration budget
// without executing a terminal action.
var ErrMaxIterations = errors.New("max iterations reached")

// WrapLLMError wraps a model collaborator failure.
func WrapLLMError(err error, iteration int) *agenterr.Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*agenterr.Error); ok && e.Code == agenterr.CodeLLMError {
		return e.WithContext("iteration", iteration)
	}
	return agenterr.New(agenterr.CodeLLMError, "model call failed", err).
		WithContext("iteration", iteration)
}

// WrapUnknownAction wraps a failed registry lookup.
func WrapUnknownAction(err error, name string, iteration int) *agenterr.Error {
	if err == nil {
		return nil
	}
	return agenterr.New(agenterr.CodeUnknownAction, fmt.Sprintf("model selected unknown action %q", name), err).
		WithContext("action", name).
		WithContext("iteration", iteration)
}

// WrapParseError wraps a malformed structured response.
func WrapParseError(err error, iteration int) *agenterr.Error {
	if err == nil {
		return nil
	}
	return agenterr.New(agenterr.CodeResponseParse, "model response could not be parsed", err).
		WithContext("iteration", iteration)
}

// WrapMaxIterations reports an exhausted iteration budget.
func WrapMaxIterations(maxIterations int) *agenterr.Error {
	return agenterr.New(agenterr.CodeMaxIterations, fmt.Sprintf("no terminal action after %d iterations", maxIterations), ErrMaxIterations).
		WithContext("max_iterations", maxIterations)
}

// WrapCanceled wraps a context error observed between iterations.
func WrapCanceled(err error, iteration int) *agenterr.Error {
	if err == nil {
		return nil
	}
	return agenterr.New(agenterr.CodeCanceled, "run canceled", err).
		WithContext("iteration", iteration)
}

// WrapMemoryError wraps a failure to append to memory.
func WrapMemoryError(err error, entryType string) *agenterr.Error {
	if err == nil {
		return nil
	}
	return agenterr.New(agenterr.CodeInternal, "memory append failed", err).
		WithContext("entry_type", entryType)
}
