// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// DefaultStatusContext labels the statuses this service posts.
const DefaultStatusContext = "continuous-integration/bureau-ci"

// Description returns the fixed human-readable text for a state. The
// lookup ignores case, so "SUCCESS" describes like "success"; unknown
// states keep their original spelling.
func Description(state StatusState) string {
	switch StatusState(strings.ToLower(string(state))) {
	case StatusSuccess:
		return "Build succeeded"
	case StatusFailure:
		return "Build failed"
	case StatusError:
		return "Build encountered an error"
	case StatusPending:
		return "Build is pending"
	default:
		return "Build status: " + string(state)
	}
}

// StatusReporter posts build states as commit statuses.
type StatusReporter struct {
	client        *Client
	statusContext string
	logger        *slog.Logger
}

// NewStatusReporter returns a reporter posting under statusContext
// (DefaultStatusContext when empty). Panics if client or logger is nil.
func NewStatusReporter(client *Client, statusContext string, logger *slog.Logger) *StatusReporter {
	if client == nil {
		panic("github.StatusReporter: client is required")
	}
	if logger == nil {
		panic("github.StatusReporter: logger is required")
	}
	if statusContext == "" {
		statusContext = DefaultStatusContext
	}
	return &StatusReporter{client: client, statusContext: statusContext, logger: logger}
}

// Report posts state for owner/repo@sha. targetURL may be empty.
//
// A missing credential is returned (wrapping ErrCredentialMissing)
// without contacting GitHub. A response GitHub rejects with a non-2xx
// status is logged and nil is returned: delivery is best-effort.
// Transport failures are returned.
func (r *StatusReporter) Report(ctx context.Context, owner, repo, sha string, state StatusState, targetURL string) error {
	request := CreateStatusRequest{
		State:       state,
		TargetURL:   targetURL,
		Description: Description(state),
		Context:     r.statusContext,
	}
	_, err := r.client.CreateCommitStatus(ctx, owner, repo, sha, request)

	var apiError *APIError
	switch {
	case err == nil:
		r.logger.Info("commit status posted",
			"owner", owner,
			"repository", repo,
			"commit", sha,
			"state", string(state),
		)
		return nil
	case errors.As(err, &apiError):
		r.logger.Warn("commit status rejected",
			"owner", owner,
			"repository", repo,
			"commit", sha,
			"state", string(state),
			"status_code", apiError.StatusCode,
			"hint", rejectionHint(err),
			"error", err,
		)
		return nil
	default:
		return err
	}
}

// rejectionHint names the likely cause of a rejected status post.
func rejectionHint(err error) string {
	switch {
	case IsNotFound(err):
		return "repository not found or token lacks access to it"
	case IsValidationFailed(err):
		return "commit unknown to GitHub or state invalid"
	default:
		return "check token permissions for commit statuses"
	}
}
