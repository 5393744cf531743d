// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireSend], and [RequireClosed] wrap the select
// with a wall-clock fallback so individual tests never call time.After
// themselves. Everything else in the test suite uses lib/clock fakes.
//
// [UniqueID] generates distinct identifiers, such as webhook delivery
// ids, without reaching for the time or a random source.
//
// All helpers call t.Fatalf on failure.
package testutil
