// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides bounded HTTP body reads and connection
// error classification.
//
// Every body read in the service goes through [ReadLimited] or
// [ReadResponse] so that a misbehaving peer cannot make the process
// allocate without bound. [IsExpectedCloseError] separates ordinary
// client disconnects from real failures when writing to long-lived
// connections.
package netutil

import (
	"errors"
	"fmt"
	"io"
)

// MaxResponseSize bounds reads of outbound API responses: 16 MB.
// Commit status responses are a few kilobytes.
const MaxResponseSize int64 = 16 << 20

// ErrTooLarge is returned by ReadLimited when the body exceeds the
// limit.
var ErrTooLarge = errors.New("body exceeds size limit")

// ReadResponse reads an API response body up to MaxResponseSize bytes,
// silently truncating anything beyond.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// ReadLimited reads body completely. If body holds more than limit
// bytes it returns ErrTooLarge instead of a truncated prefix.
func ReadLimited(body io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, limit)
	}
	return data, nil
}
