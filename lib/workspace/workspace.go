// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package workspace manages the ephemeral directories that host one
// build attempt each.
//
// A [Manager] creates directories under a root. Names combine a
// per-process sequence number with a random suffix chosen by
// os.MkdirTemp, which creates the directory exclusively, so two
// concurrent Create calls can never receive the same path.
//
// [Workspace.Destroy] removes the directory tree and is safe to call
// any number of times. Removal failures are logged and swallowed: a
// build's outcome never depends on disk being reclaimed.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

// Manager creates workspaces under a root directory.
type Manager struct {
	root     string
	logger   *slog.Logger
	sequence atomic.Uint64
}

// NewManager returns a Manager rooted at root. The root is created on
// the first Create call. Panics if root is empty or logger is nil.
func NewManager(root string, logger *slog.Logger) *Manager {
	if root == "" {
		panic("workspace.Manager: root is required")
	}
	if logger == nil {
		panic("workspace.Manager: logger is required")
	}
	return &Manager{root: root, logger: logger}
}

// Root returns the directory under which workspaces are created.
func (m *Manager) Root() string {
	return m.root
}

// Create makes a fresh, empty workspace directory.
func (m *Manager) Create() (*Workspace, error) {
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace root %s: %w", m.root, err)
	}
	pattern := fmt.Sprintf("build-%d-", m.sequence.Add(1))
	path, err := os.MkdirTemp(m.root, pattern)
	if err != nil {
		return nil, fmt.Errorf("creating workspace under %s: %w", m.root, err)
	}
	m.logger.Debug("workspace created", "path", path)
	return &Workspace{path: path, logger: m.logger}, nil
}

// Workspace is one build's exclusively owned directory.
type Workspace struct {
	path   string
	logger *slog.Logger
	once   sync.Once
}

// Path returns the absolute or root-relative directory path.
func (w *Workspace) Path() string {
	return w.path
}

// Destroy recursively removes the workspace. Only the first call does
// any work. A nil Workspace is a no-op so callers can defer Destroy
// before checking Create's error.
func (w *Workspace) Destroy() {
	if w == nil {
		return
	}
	w.once.Do(func() {
		if err := os.RemoveAll(w.path); err != nil {
			w.logger.Warn("workspace cleanup failed",
				"path", w.path,
				"error", err,
			)
			return
		}
		w.logger.Debug("workspace destroyed", "path", w.path)
	})
}
