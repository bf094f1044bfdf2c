// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"errors"
	"time"

	agenterr "github.com/jllopis/agentloop/pkg/errors"
)

// WithTimeout runs fn with a derived context bounded by d. A zero d runs fn
// with ctx unchanged. When the bound is hit the error is recoverable, so a
// surrounding retry may try again.
func WithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	v, err := fn(tctx)
	if err != nil && errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		var zero T
		return zero, agenterr.New(agenterr.CodeTimeout, "operation exceeded timeout", err).
			WithContext("timeout", d.String()).
			WithRecoverable(true)
	}
	return v, err
}
