// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

// Package errors provides coded errors with structured context for the agent
// loop. Errors keep their cause, so errors.Is and errors.As from the standard
// library walk through them.
package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode classifies agent errors for logging, metrics and exit codes.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeUnknownAction indicates the model selected an unregistered action.
	CodeUnknownAction ErrorCode = "UNKNOWN_ACTION"

	// CodeDuplicateAction indicates an action name was registered twice.
	CodeDuplicateAction ErrorCode = "DUPLICATE_ACTION"

	// CodeResponseParse indicates a structured model response was malformed.
	CodeResponseParse ErrorCode = "RESPONSE_PARSE"

	// CodeActionFailure indicates an action function failed.
	CodeActionFailure ErrorCode = "ACTION_FAILURE"

	// CodeMaxIterations indicates the run exhausted its step budget.
	CodeMaxIterations ErrorCode = "MAX_ITERATIONS"

	// CodeLLMError indicates the model collaborator failed.
	CodeLLMError ErrorCode = "LLM_ERROR"

	// CodeCanceled indicates the run context was canceled.
	CodeCanceled ErrorCode = "CANCELED"

	// CodeTimeout indicates an external call exceeded its time bound.
	CodeTimeout ErrorCode = "TIMEOUT"
)

// Error is a coded error with context for observability.
type Error struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]any
	Recoverable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// MarshalJSON renders the error for structured logs and transcripts.
func (e *Error) MarshalJSON() ([]byte, error) {
	out := struct {
		Code        string         `json:"code"`
		Message     string         `json:"message"`
		Cause       string         `json:"cause,omitempty"`
		Context     map[string]any `json:"context,omitempty"`
		Recoverable bool           `json:"recoverable"`
	}{
		Code:        string(e.Code),
		Message:     e.Message,
		Context:     e.Context,
		Recoverable: e.Recoverable,
	}
	if e.Err != nil {
		out.Cause = e.Err.Error()
	}
	return json.Marshal(out)
}

// New creates an Error with the given code, message and cause.
func New(code ErrorCode, msg string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: msg,
		Err:     cause,
		Context: make(map[string]any),
	}
}

// WithContext adds a key-value pair to the error context.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether the caller may continue after the error.
func (e *Error) WithRecoverable(recoverable bool) *Error {
	e.Recoverable = recoverable
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or
// CodeInternal when there is none.
func CodeOf(err error) ErrorCode {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return CodeInternal
}

// As converts err to an *Error, wrapping foreign errors as internal.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return New(CodeInternal, "wrapped error", err)
}
