// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/bureau-ci/lib/clock"
)

// Outcome is a build's terminal result.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Record is one finished build. Records are values; once appended to a
// Ledger they are never modified.
type Record struct {
	ID        string    `json:"id"`
	RepoName  string    `json:"repoName"`
	CommitSHA string    `json:"commitSHA"`
	Branch    string    `json:"branch"`
	Outcome   Outcome   `json:"outcome"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"createdAt"`
}

// Succeeded reports whether the build passed.
func (r Record) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}

// NewRecord returns a record with a fresh random UUID and a UTC
// creation time from c.
func NewRecord(c clock.Clock, repoName, commitSHA, branch string, outcome Outcome, detail string) Record {
	return Record{
		ID:        uuid.NewString(),
		RepoName:  repoName,
		CommitSHA: commitSHA,
		Branch:    branch,
		Outcome:   outcome,
		Detail:    detail,
		CreatedAt: c.Now().UTC(),
	}
}
