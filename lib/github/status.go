// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// StatusState is a commit status state.
type StatusState string

const (
	StatusPending StatusState = "pending"
	StatusSuccess StatusState = "success"
	StatusFailure StatusState = "failure"
	StatusError   StatusState = "error"
)

// CreateStatusRequest is the body of a create-commit-status call.
type CreateStatusRequest struct {
	State StatusState `json:"state"`

	// TargetURL is shown as the "Details" link in the GitHub UI.
	TargetURL string `json:"target_url,omitempty"`

	// Description is a short human-readable summary. GitHub truncates
	// at 140 characters.
	Description string `json:"description,omitempty"`

	// Context distinguishes this status from other checks on the same
	// commit.
	Context string `json:"context,omitempty"`
}

// CommitStatus is GitHub's representation of a created status.
type CommitStatus struct {
	ID          int64       `json:"id"`
	State       StatusState `json:"state"`
	Description string      `json:"description"`
	TargetURL   string      `json:"target_url"`
	Context     string      `json:"context"`
	CreatedAt   time.Time   `json:"created_at"`
}

// CreateCommitStatus creates a status on the commit sha of owner/repo.
func (client *Client) CreateCommitStatus(ctx context.Context, owner, repo, sha string, request CreateStatusRequest) (*CommitStatus, error) {
	var status CommitStatus
	path := fmt.Sprintf("/repos/%s/%s/statuses/%s",
		url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(sha))
	if err := client.post(ctx, path, request, &status); err != nil {
		return nil, fmt.Errorf("creating status on %s/%s@%s: %w", owner, repo, shortSHA(sha), err)
	}
	return &status, nil
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
