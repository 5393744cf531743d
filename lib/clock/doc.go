// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Code that stamps records or measures windows takes a [Clock] instead
// of calling time.Now directly. Production wiring passes [Real]; tests
// pass [Fake] and move time explicitly with Advance or Set, so
// timestamps and expiry windows are deterministic.
package clock
