// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// bureau-ci-service is a minimal continuous integration server for
// GitHub repositories.
//
// Each push webhook delivered to POST / is built synchronously: the
// commit is cloned into a fresh workspace, compiled, and tested with
// the configured build tool. The outcome is appended to a JSON ledger
// on disk and posted back to the commit as a GitHub commit status. The
// response to the webhook is sent once the build has finished.
//
// Build history is browsable at /builds, /details?id=<id>, and
// /notifications, and machine-readable at /api/builds (JSON, or CBOR
// with Accept: application/cbor). /ws streams pipeline transitions and
// finished builds over a websocket.
//
// Configuration comes from the file named by --config or
// BUREAU_CI_CONFIG, falling back to built-in defaults. The GitHub
// token and webhook secret are read from the environment, optionally
// seeded from a .env file.
package main
