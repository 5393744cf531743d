// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the CBOR encoding used for the binary form of the
// build API.
//
// All encoding goes through a Core Deterministic mode (RFC 8949 §4.2),
// so the same build history always encodes to the same bytes and
// content hashes over responses are stable. Types carry json struct
// tags only; the CBOR encoder falls back to them, which keeps the JSON
// and CBOR forms of a record field-for-field identical.
package codec
