// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ledger keeps the durable, append-only history of build
// outcomes.
//
// The whole history lives in memory and in one JSON file: a
// pretty-printed array of [Record] values. Every [Ledger.Append]
// rewrites the entire file through a temporary file and an atomic
// rename, so a reader of the file sees the state before or after an
// append and never a partial record. One mutex covers both the
// in-memory append and the file rewrite. Across processes, an
// exclusive flock on a sibling lock file is held while Append re-reads
// the file, merges records other writers added since this Ledger last
// looked, and writes the result, so no writer's records are lost.
// Records from other processes become visible through List and Get
// after the next Append.
//
// [Open] rehydrates from the file. A file that does not parse is
// logged and the ledger starts empty rather than refusing to start.
package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Ledger is the build history. Safe for concurrent use.
type Ledger struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	records []Record

	// openedWith is the record count after rehydration. Records at or
	// beyond this index were appended during this process's lifetime.
	openedWith int
}

// Open loads the ledger at path, creating its parent directory if
// needed. A missing or empty file yields an empty ledger. Unparsable
// content is logged and discarded. Other read failures are returned.
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	if path == "" {
		panic("ledger: path is required")
	}
	if logger == nil {
		panic("ledger: logger is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	ledger := &Ledger{path: path, logger: logger}

	lock, err := acquireFileLock(lockPath(path), false)
	if err != nil {
		return nil, err
	}
	records, err := readRecords(path)
	lock.release()

	switch {
	case err == nil:
		ledger.records = records
	case errors.Is(err, errMalformed):
		logger.Error("ledger file unreadable, starting with empty history",
			"path", path,
			"error", err,
		)
	default:
		return nil, err
	}

	ledger.openedWith = len(ledger.records)
	logger.Info("ledger opened", "path", path, "records", ledger.openedWith)
	return ledger, nil
}

var errMalformed = errors.New("malformed ledger")

func readRecords(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ledger %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	// Any decode failure, including a field whose own unmarshaler
	// rejects the value (a bad createdAt), is malformed content.
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", errMalformed, path, err)
	}
	for index, record := range records {
		if record.ID == "" {
			return nil, fmt.Errorf("%w: record %d has no id", errMalformed, index)
		}
	}
	return records, nil
}

// Path returns the backing file path.
func (l *Ledger) Path() string {
	return l.path
}

// Append adds record to the end of the history and persists the whole
// history. If persisting fails the record is not kept in memory either
// and the error is returned.
func (l *Ledger) Append(record Record) error {
	if record.ID == "" {
		return errors.New("ledger: record has no id")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	lock, err := acquireFileLock(lockPath(l.path), true)
	if err != nil {
		return err
	}
	defer lock.release()

	merged, err := l.mergeFromDisk()
	if err != nil {
		return err
	}
	for _, existing := range merged {
		if existing.ID == record.ID {
			return fmt.Errorf("ledger: duplicate record id %s", record.ID)
		}
	}

	merged = append(merged, record)
	if err := writeRecords(l.path, merged); err != nil {
		return err
	}
	l.records = merged
	return nil
}

// mergeFromDisk returns the file's records followed by any in-memory
// records the file lacks. The caller holds l.mu and the exclusive file
// lock. l.records is not modified. Malformed file content is logged and
// replaced by the in-memory history, as in Open.
func (l *Ledger) mergeFromDisk() ([]Record, error) {
	onDisk, err := readRecords(l.path)
	if errors.Is(err, errMalformed) {
		l.logger.Error("ledger file unreadable, rewriting from memory",
			"path", l.path,
			"error", err,
		)
		onDisk = nil
	} else if err != nil {
		return nil, err
	}

	merged := make([]Record, 0, len(onDisk)+len(l.records)+1)
	present := make(map[string]bool, len(onDisk))
	for _, record := range onDisk {
		if present[record.ID] {
			continue
		}
		present[record.ID] = true
		merged = append(merged, record)
	}
	for _, record := range l.records {
		if !present[record.ID] {
			present[record.ID] = true
			merged = append(merged, record)
		}
	}
	return merged, nil
}

// List returns every record in insertion order. The returned slice is
// a copy owned by the caller.
func (l *Ledger) List() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Record(nil), l.records...)
}

// Get returns the record with the given id. The boolean is false when
// no such record exists.
func (l *Ledger) Get(id string) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, record := range l.records {
		if record.ID == id {
			return record, true
		}
	}
	return Record{}, false
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// LatestSinceOpen returns the newest record appended after Open. The
// boolean is false when nothing has been appended yet in this process.
func (l *Ledger) LatestSinceOpen() (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.records) <= l.openedWith {
		return Record{}, false
	}
	return l.records[len(l.records)-1], true
}

// writeRecords replaces the file at path with the JSON encoding of
// records: temporary file, write, sync, close, rename, then sync the
// directory so the rename itself is durable.
func writeRecords(path string, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding ledger: %w", err)
	}
	data = append(data, '\n')

	directory := filepath.Dir(path)
	file, err := os.CreateTemp(directory, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary ledger file: %w", err)
	}
	temporaryPath := file.Name()

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary ledger file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary ledger file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary ledger file: %w", err)
	}
	if err := os.Chmod(temporaryPath, 0o644); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("setting ledger file mode: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming ledger file into place: %w", err)
	}

	parent, err := os.Open(directory)
	if err == nil {
		parent.Sync()
		parent.Close()
	}
	return nil
}
