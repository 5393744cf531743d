// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

import "encoding/json"

// Unknown replaces any push event field that is missing, empty, or not
// a string.
const Unknown = "unknown"

// PushEvent is the subset of a GitHub push webhook the CI service
// consumes.
type PushEvent struct {
	// Owner is repository.owner.login.
	Owner string
	// Repository is repository.name.
	Repository string
	// Commit is "after", the head commit after the push.
	Commit string
	// Branch is "ref", for example "refs/heads/main".
	Branch string
}

// ParsePushEvent extracts a PushEvent from a webhook body. It never
// fails: an unparsable body yields Unknown in every field, and each
// field that is absent or of the wrong type yields Unknown on its own.
func ParsePushEvent(body []byte) PushEvent {
	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil {
		root = nil
	}
	repository, _ := root["repository"].(map[string]any)
	owner, _ := repository["owner"].(map[string]any)

	return PushEvent{
		Owner:      stringField(owner, "login"),
		Repository: stringField(repository, "name"),
		Commit:     stringField(root, "after"),
		Branch:     stringField(root, "ref"),
	}
}

// stringField reads a non-empty string from object. Lookups on a nil
// map are valid and miss.
func stringField(object map[string]any, key string) string {
	value, ok := object[key].(string)
	if !ok || value == "" {
		return Unknown
	}
	return value
}

// IsKnown reports whether every field was present.
func (e PushEvent) IsKnown() bool {
	return e.Owner != Unknown && e.Repository != Unknown && e.Commit != Unknown && e.Branch != Unknown
}
