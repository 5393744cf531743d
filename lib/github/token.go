// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"fmt"
	"os"
	"strings"
)

// TokenSource returns the API token to use for one request.
// Implementations return an error wrapping ErrCredentialMissing when
// no token is available.
type TokenSource func() (string, error)

// EnvToken reads the token from the named environment variable at call
// time. Surrounding whitespace is trimmed (tokens pasted into .env
// files often carry a trailing newline).
func EnvToken(name string) TokenSource {
	return func() (string, error) {
		token := strings.TrimSpace(os.Getenv(name))
		if token == "" {
			return "", fmt.Errorf("%w: %s is not set", ErrCredentialMissing, name)
		}
		return token, nil
	}
}

// StaticToken returns a TokenSource for a fixed token. An empty token
// reports ErrCredentialMissing.
func StaticToken(token string) TokenSource {
	return func() (string, error) {
		if token == "" {
			return "", ErrCredentialMissing
		}
		return token, nil
	}
}

// Optional adapts source for consumers where a token is nice to have,
// such as cloning public repositories: a missing token becomes "".
func (source TokenSource) Optional() func() string {
	return func() string {
		token, err := source()
		if err != nil {
			return ""
		}
		return token
	}
}
