// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"

	agenterr "github.com/jllopis/agentloop/pkg/errors"
)

// Exit codes.
const (
	exitOK            = 0
	exitFailure       = 1
	exitMaxIterations = 2
	exitUsage         = 64
)

// CLIError wraps a coded error with a hint for the user.
type CLIError struct {
	Err  *agenterr.Error
	Hint string
}

// NewCLIError creates a new CLI error.
func NewCLIError(e *agenterr.Error, hint string) *CLIError {
	return &CLIError{Err: e, Hint: hint}
}

// Error returns the message followed by the hint.
func (e *CLIError) Error() string {
	if e.Err == nil {
		return "unknown error"
	}
	msg := e.Err.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

// Unwrap exposes the coded error.
func (e *CLIError) Unwrap() error {
	if e.Err == nil {
		return nil
	}
	return e.Err
}

// NewConfigError reports an unreadable or invalid configuration.
func NewConfigError(err error, configPath string) *CLIError {
	e := agenterr.New(agenterr.CodeInvalidInput, "configuration error", err).
		WithContext("config_path", configPath)

	hint := "check the AGENTLOOP_* environment variables"
	if configPath != "" {
		hint = fmt.Sprintf("check %s and the AGENTLOOP_* environment variables", configPath)
	}
	return NewCLIError(e, hint)
}

// NewInvalidArgumentError reports a bad flag or argument.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	e := agenterr.New(agenterr.CodeInvalidInput, "invalid argument: "+reason, nil).
		WithContext("argument", arg)
	return NewCLIError(e, "run 'agentloop help' for usage information")
}

// FormatErrorCode returns a readable name for an error code.
func FormatErrorCode(code agenterr.ErrorCode) string {
	switch code {
	case agenterr.CodeInvalidInput:
		return "Invalid Input"
	case agenterr.CodeUnknownAction:
		return "Unknown Action"
	case agenterr.CodeResponseParse:
		return "Unparseable Response"
	case agenterr.CodeMaxIterations:
		return "Max Iterations"
	case agenterr.CodeLLMError:
		return "LLM Error"
	case agenterr.CodeTimeout:
		return "Timeout"
	case agenterr.CodeCanceled:
		return "Canceled"
	case agenterr.CodeInternal:
		return "Internal Error"
	default:
		return string(code)
	}
}

// printError writes err to w, with its code when it carries one.
func printError(w io.Writer, err error) {
	var cliErr *CLIError
	if errors.As(err, &cliErr) && cliErr.Err != nil {
		fmt.Fprintf(w, "Error [%s]: %s\n", FormatErrorCode(cliErr.Err.Code), cliErr.Err.Error())
		if cliErr.Hint != "" {
			fmt.Fprintf(w, "  Hint: %s\n", cliErr.Hint)
		}
		return
	}
	var coded *agenterr.Error
	if errors.As(err, &coded) {
		fmt.Fprintf(w, "Error [%s]: %s\n", FormatErrorCode(coded.Code), err)
		return
	}
	fmt.Fprintf(w, "Error: %s\n", err)
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return exitUsage
	}
	if agenterr.CodeOf(err) == agenterr.CodeMaxIterations {
		return exitMaxIterations
	}
	return exitFailure
}
