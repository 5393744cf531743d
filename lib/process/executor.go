// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// ErrInterrupted is returned (wrapped) when the caller's context ends
// while the process is still running. The process group is killed
// before the error is returned.
var ErrInterrupted = errors.New("process interrupted")

// Invocation describes one external command.
type Invocation struct {
	// Args is the argv list. Args[0] is resolved through PATH.
	Args []string

	// Dir is the working directory. Empty means the caller's
	// working directory.
	Dir string

	// Env holds extra "NAME=value" entries appended to the parent
	// environment. Later entries win over inherited ones.
	Env []string
}

// String returns the argv joined with spaces, for logs and error
// messages.
func (i Invocation) String() string {
	return strings.Join(i.Args, " ")
}

// Outcome is the result of a process that ran to completion.
type Outcome struct {
	// ExitCode is the process exit status. A process terminated by a
	// signal reports 128 plus the signal number, matching shell
	// convention.
	ExitCode int

	// Output is the merged stdout and stderr. Every line, including
	// the last, is terminated by "\n"; carriage returns before the
	// newline are dropped.
	Output string
}

// Succeeded reports whether the process exited with status zero.
func (o Outcome) Succeeded() bool {
	return o.ExitCode == 0
}

// Executor runs external processes to completion.
type Executor interface {
	// Execute blocks until the process exits and returns its exit
	// code and complete output. A non-zero exit code is returned as
	// an Outcome with a nil error. The error is non-nil only when the
	// process could not be started (*StartError) or when ctx ended
	// before the process exited (ErrInterrupted).
	Execute(ctx context.Context, invocation Invocation) (Outcome, error)
}

// StartError reports that a process could not be started: empty argv,
// binary not found, permission denied, missing working directory.
type StartError struct {
	Args []string
	Err  error
}

func (e *StartError) Error() string {
	if len(e.Args) == 0 {
		return fmt.Sprintf("starting process: %v", e.Err)
	}
	return fmt.Sprintf("starting %s: %v", e.Args[0], e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// OSExecutor runs processes on the host. Each process is placed in its
// own process group so that an interrupted build tool does not leave
// orphaned children (compilers, forked test JVMs) behind.
type OSExecutor struct {
	logger *slog.Logger
}

// NewOSExecutor returns an executor that logs each invocation at debug
// level. Panics if logger is nil.
func NewOSExecutor(logger *slog.Logger) *OSExecutor {
	if logger == nil {
		panic("process.OSExecutor: logger is required")
	}
	return &OSExecutor{logger: logger}
}

// Execute implements Executor.
func (e *OSExecutor) Execute(ctx context.Context, invocation Invocation) (Outcome, error) {
	if len(invocation.Args) == 0 {
		return Outcome{}, &StartError{Err: errors.New("empty argument list")}
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, fmt.Errorf("%w before start: %s: %w", ErrInterrupted, invocation, err)
	}

	command := exec.CommandContext(ctx, invocation.Args[0], invocation.Args[1:]...)
	command.Dir = invocation.Dir
	if len(invocation.Env) > 0 {
		command.Env = append(os.Environ(), invocation.Env...)
	}

	// One buffer for both streams. exec serializes writes when Stdout
	// and Stderr are the same comparable writer, so interleaving
	// follows the order the child wrote.
	var output bytes.Buffer
	command.Stdout = &output
	command.Stderr = &output

	command.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	command.Cancel = func() error {
		return unix.Kill(-command.Process.Pid, unix.SIGKILL)
	}

	e.logger.Debug("executing process",
		"command", invocation.String(),
		"dir", invocation.Dir,
	)

	if err := command.Start(); err != nil {
		return Outcome{}, &StartError{Args: invocation.Args, Err: err}
	}
	err := command.Wait()

	outcome := Outcome{Output: joinLines(output.Bytes())}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return outcome, fmt.Errorf("%w: %s: %w", ErrInterrupted, invocation, ctxErr)
	}
	if err == nil {
		return outcome, nil
	}

	var exitError *exec.ExitError
	if !errors.As(err, &exitError) {
		// Wait failed for a reason other than a non-zero exit (for
		// example an I/O copy error). The process did run, but its
		// result is unknowable.
		return outcome, fmt.Errorf("waiting for %s: %w", invocation, err)
	}

	outcome.ExitCode = exitError.ExitCode()
	if status, ok := exitError.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		outcome.ExitCode = 128 + int(status.Signal())
	}
	return outcome, nil
}

// joinLines normalizes raw process output into newline-terminated
// lines in their original order.
func joinLines(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	lines := strings.Split(string(raw), "\n")
	// A trailing newline produces one empty final element; a missing
	// trailing newline leaves a partial last line that still counts.
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	var builder strings.Builder
	builder.Grow(len(raw) + 1)
	for _, line := range lines {
		builder.WriteString(strings.TrimSuffix(line, "\r"))
		builder.WriteByte('\n')
	}
	return builder.String()
}
