// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"errors"
)

// ErrRunNotFound indicates a sink holds no entries for the requested run.
var ErrRunNotFound = errors.New("memory: run not found")

// Sink persists memory entries as they are appended, keyed by run id.
// Stored Content is decoded back as generic JSON values.
type Sink interface {
	Record(ctx context.Context, runID string, e Entry) error
	Entries(ctx context.Context, runID string) ([]Entry, error)
	Runs(ctx context.Context) ([]string, error)
}
