// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process runs external commands for the build pipeline and
// holds the binary entrypoint error handler.
//
// [Executor] is the single seam through which the pipeline starts
// operating system processes. [OSExecutor] is the production
// implementation: it runs one command to completion, merges stderr into
// stdout, and reports the exit code as data. A non-zero exit is not an
// error at this layer. Only two conditions produce errors:
//
//   - the process could not be started at all ([StartError]), and
//   - the wait was interrupted by context cancellation or deadline
//     ([ErrInterrupted]).
//
// Tests substitute a scripted Executor so that no real git or build
// tool is ever invoked.
//
// [Fatal] reports an unrecoverable error from main() to stderr before
// the structured logger may exist, then exits with code 1.
package process
