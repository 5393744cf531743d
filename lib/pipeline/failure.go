// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import "fmt"

// Phase names one pipeline step. Each phase is exactly one external
// process invocation.
type Phase string

const (
	PhaseClone    Phase = "clone"
	PhaseCheckout Phase = "checkout"
	PhaseCompile  Phase = "compile"
	PhaseTest     Phase = "test"
)

// Failure is the single error a failed run returns. Its message is the
// build record's detail: the phase, the exit code, and the complete
// process output, unmodified.
type Failure struct {
	Phase Phase

	// ExitCode is the failing process's exit status, or -1 when the
	// process never produced one (see Err).
	ExitCode int

	// Output is the process's full merged output.
	Output string

	// Commit is the commit the run was asked to build.
	Commit string

	// Err is set when the executor could not run the phase to
	// completion (start failure or interruption) rather than the
	// process exiting non-zero.
	Err error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s [phase %s]: %v", f.summary(), f.Phase, f.Err)
	}
	return fmt.Sprintf("%s [phase %s, exit code %d]:\n%s", f.summary(), f.Phase, f.ExitCode, f.Output)
}

func (f *Failure) Unwrap() error { return f.Err }

func (f *Failure) summary() string {
	switch f.Phase {
	case PhaseClone:
		return "Clone failed"
	case PhaseCheckout:
		return fmt.Sprintf("Checkout of commit %s failed", f.Commit)
	case PhaseCompile:
		return "Compilation failed"
	case PhaseTest:
		return "Test phase failed"
	default:
		return fmt.Sprintf("Phase %s failed", f.Phase)
	}
}
