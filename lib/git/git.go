// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package git builds and runs the git commands that materialize a
// commit into a build workspace. Commands run through a
// [process.Executor], so tests script git's behavior without a real
// repository and the pipeline sees git exactly like any other phase:
// an exit code plus merged output.
//
// Authentication is supplied out-of-band: when a token is available it
// is passed as an HTTP extra header through GIT_CONFIG_COUNT /
// GIT_CONFIG_KEY_0 / GIT_CONFIG_VALUE_0 in the child environment. It is
// never on the argv or in the clone URL, so it cannot reach process
// errors, logs, build records or remote config.
package git

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"

	"github.com/bureau-foundation/bureau-ci/lib/process"
)

// Client runs git through an Executor.
type Client struct {
	executor process.Executor
	token    func() string
	logger   *slog.Logger
}

// NewClient returns a Client. token is called once per clone and may
// return "" for anonymous access; a nil token function means always
// anonymous. Panics if executor or logger is nil.
func NewClient(executor process.Executor, token func() string, logger *slog.Logger) *Client {
	if executor == nil {
		panic("git.Client: executor is required")
	}
	if logger == nil {
		panic("git.Client: logger is required")
	}
	if token == nil {
		token = func() string { return "" }
	}
	return &Client{executor: executor, token: token, logger: logger}
}

// CloneURL returns the clone URL for owner/repository under base (for
// example "https://github.com"). A trailing slash on base is ignored.
func CloneURL(base, owner, repository string) string {
	return strings.TrimSuffix(base, "/") + "/" + owner + "/" + repository + ".git"
}

// Clone clones sourceURL into dir, which must exist and be empty.
func (c *Client) Clone(ctx context.Context, sourceURL, dir string) (process.Outcome, error) {
	var environment []string
	if token := c.token(); token != "" {
		credential := base64.StdEncoding.EncodeToString([]byte("x-access-token:" + token))
		environment = append(environment,
			"GIT_CONFIG_COUNT=1",
			"GIT_CONFIG_KEY_0=http.extraHeader",
			"GIT_CONFIG_VALUE_0=Authorization: Basic "+credential,
		)
	}

	c.logger.Info("cloning repository", "url", sourceURL, "dir", dir)
	return c.run(ctx, dir, environment, "clone", "--", sourceURL, ".")
}

// Checkout moves the working tree in dir to commit.
func (c *Client) Checkout(ctx context.Context, dir, commit string) (process.Outcome, error) {
	c.logger.Info("checking out commit", "commit", commit, "dir", dir)
	return c.run(ctx, dir, nil, "checkout", "--quiet", commit)
}

func (c *Client) run(ctx context.Context, dir string, environment []string, args ...string) (process.Outcome, error) {
	return c.executor.Execute(ctx, process.Invocation{
		Args: append([]string{"git"}, args...),
		Dir:  dir,
		// Never block a build on an interactive credential prompt.
		Env: append([]string{"GIT_TERMINAL_PROMPT=0"}, environment...),
	})
}
