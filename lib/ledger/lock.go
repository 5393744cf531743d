// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func lockPath(ledgerPath string) string {
	return ledgerPath + ".lock"
}

// fileLock is an advisory flock(2) on a dedicated lock file. The lock
// file is separate from the ledger because the ledger is replaced by
// rename on every write, which would orphan a lock held on the old
// inode.
type fileLock struct {
	file *os.File
}

// acquireFileLock blocks until the lock is held, exclusively for
// writers and shared for readers.
func acquireFileLock(path string, exclusive bool) (*fileLock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening ledger lock %s: %w", path, err)
	}
	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}
	for {
		err = unix.Flock(int(file.Fd()), how)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("locking ledger %s: %w", path, err)
	}
	return &fileLock{file: file}, nil
}

func (l *fileLock) release() {
	unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	l.file.Close()
}
