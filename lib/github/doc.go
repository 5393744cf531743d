// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package github talks to GitHub on behalf of the CI service: it
// parses inbound push webhooks and posts commit statuses.
//
// [ParsePushEvent] extracts the repository, owner, commit, and branch
// from a push payload. It never fails; anything missing becomes
// [Unknown].
//
// [Client] is a minimal REST client for the commit status endpoint.
// All requests are made over HTTPS and the client refuses non-HTTPS
// base URLs. The token is read from a [TokenSource] on every request,
// so a token rotated in the environment takes effect without restart,
// and a missing token fails before any network traffic.
//
// [StatusReporter] wraps the client with the CI service's reporting
// policy: a fixed description per state, and rejected deliveries
// (non-2xx) logged rather than returned.
package github
