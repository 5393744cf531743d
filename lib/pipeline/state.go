// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

// State is a build run's position in the pipeline.
type State int

const (
	// StateCreated: workspace exists, nothing has run.
	StateCreated State = iota
	// StateCloned: the repository is in the workspace.
	StateCloned
	// StateCheckedOut: the working tree is at the requested commit.
	StateCheckedOut
	// StateCompiled: the clean build succeeded.
	StateCompiled
	// StateTested: the test target succeeded.
	StateTested
	// StateDone is the terminal success state.
	StateDone
	// StateFailed is the terminal failure state, reachable from any
	// non-terminal state.
	StateFailed
)

var stateNames = [...]string{
	StateCreated:    "created",
	StateCloned:     "cloned",
	StateCheckedOut: "checked-out",
	StateCompiled:   "compiled",
	StateTested:     "tested",
	StateDone:       "done",
	StateFailed:     "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// successor is the single forward edge out of each non-terminal state.
var successor = map[State]State{
	StateCreated:    StateCloned,
	StateCloned:     StateCheckedOut,
	StateCheckedOut: StateCompiled,
	StateCompiled:   StateTested,
	StateTested:     StateDone,
}

// CanTransition reports whether the pipeline may move from one state
// to another: one step forward, or to StateFailed from any
// non-terminal state.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	next, ok := successor[from]
	return ok && next == to
}
