// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"github.com/jllopis/agentloop/pkg/environment"
	"github.com/jllopis/agentloop/pkg/memory"
)

// State is the lifecycle state of a run.
type State string

const (
	StateRunning              State = "RUNNING"
	StateTerminated           State = "TERMINATED"
	StateMaxIterationsReached State = "MAX_ITERATIONS_REACHED"
	StateFailed               State = "FAILED"
)

// Done reports whether the state is final.
func (s State) Done() bool {
	return s != StateRunning
}

// Outcome is the result of one run.
type Outcome struct {
	RunID      string
	State      State
	Iterations int
	Memory     *memory.Memory
}

// FinalResult returns the result of the last environment entry when the run
// terminated and that execution succeeded.
func (o *Outcome) FinalResult() (any, bool) {
	if o == nil || o.Memory == nil || o.State != StateTerminated {
		return nil, false
	}
	envs := o.Memory.ByType(memory.EntryEnvironment)
	if len(envs) == 0 {
		return nil, false
	}
	res, ok := envs[len(envs)-1].Content.(environment.Result)
	if !ok || !res.ToolExecuted {
		return nil, false
	}
	return res.Result, true
}
