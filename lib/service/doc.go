// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the process scaffolding shared by the CI
// service binary: the HTTP listener with graceful shutdown, webhook
// signature verification, and the structured logger.
//
// The binary composes these in its own main() rather than handing
// control to a framework. [HTTPServer.Serve] blocks until its context
// is cancelled and in-flight requests have drained; [NewLogger] builds
// the JSON slog handler from the log section of the service config.
package service
