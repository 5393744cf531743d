// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/bureau-ci/lib/clock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testClock = clock.Fake(time.Date(2026, 3, 14, 15, 9, 26, 535897000, time.UTC))

func openTest(t *testing.T, path string) *Ledger {
	t.Helper()
	ledger, err := Open(path, discardLogger())
	if err != nil {
		t.Fatalf("Open(%s): %v", path, err)
	}
	return ledger
}

func sameRecord(a, b Record) bool {
	return a.ID == b.ID &&
		a.RepoName == b.RepoName &&
		a.CommitSHA == b.CommitSHA &&
		a.Branch == b.Branch &&
		a.Outcome == b.Outcome &&
		a.Detail == b.Detail &&
		a.CreatedAt.Equal(b.CreatedAt)
}

func requireSameRecords(t *testing.T, got, want []Record) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if !sameRecord(got[i], want[i]) {
			t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestGetOnEmptyLedger(t *testing.T) {
	t.Parallel()

	ledger := openTest(t, filepath.Join(t.TempDir(), "builds.json"))
	for _, id := range []string{"", "missing", "00000000-0000-0000-0000-000000000000"} {
		if record, found := ledger.Get(id); found {
			t.Errorf("Get(%q) = %+v, want not found", id, record)
		}
	}
	if got := ledger.List(); len(got) != 0 {
		t.Errorf("List() returned %d records on an empty ledger", len(got))
	}
}

func TestAppendPersistsAndRehydrates(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state", "builds.json")
	ledger := openTest(t, path)

	first := NewRecord(testClock, "TestRepo", "commit123", "refs/heads/main", OutcomeSuccess, "Build succeeded")
	second := NewRecord(testClock, "TestRepo", "commit456", "refs/heads/feature", OutcomeFailure,
		"Compilation failed [phase compile, exit code 1]:\n[ERROR] missing ;\n")
	for _, record := range []Record{first, second} {
		if err := ledger.Append(record); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	requireSameRecords(t, ledger.List(), []Record{first, second})
	got, found := ledger.Get(second.ID)
	if !found || !sameRecord(got, second) {
		t.Errorf("Get(%s) = %+v, %v", second.ID, got, found)
	}

	reopened := openTest(t, path)
	requireSameRecords(t, reopened.List(), []Record{first, second})
}

func TestBackingFileIsPrettyJSONArray(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "builds.json")
	ledger := openTest(t, path)
	record := NewRecord(testClock, "repo", "sha", "refs/heads/main", OutcomeSuccess, "ok")
	if err := ledger.Append(record); err != nil {
		t.Fatalf("Append: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "[\n  {\n    \"id\": \""+record.ID+"\"") {
		t.Errorf("ledger file does not start with an indented array:\n%s", content)
	}
	for _, field := range []string{`"repoName": "repo"`, `"commitSHA": "sha"`, `"outcome": "success"`, `"createdAt": "2026-03-14T15:09:26.535897Z"`} {
		if !strings.Contains(content, field) {
			t.Errorf("ledger file missing %s:\n%s", field, content)
		}
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Errorf("temporary file %s left behind", entry.Name())
		}
	}
}

func TestConcurrentAppends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "builds.json")
	ledger := openTest(t, path)

	const writers = 16
	const perWriter = 5

	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for writer := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sequence := range perWriter {
				record := NewRecord(testClock,
					fmt.Sprintf("repo-%d", writer),
					fmt.Sprintf("%d", sequence),
					"refs/heads/main", OutcomeSuccess, "ok")
				if err := ledger.Append(record); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Append: %v", err)
	}

	check := func(name string, records []Record) {
		t.Helper()
		if len(records) != writers*perWriter {
			t.Fatalf("%s: got %d records, want %d", name, len(records), writers*perWriter)
		}
		ids := make(map[string]bool)
		nextSequence := make(map[string]int)
		for _, record := range records {
			if ids[record.ID] {
				t.Errorf("%s: duplicate id %s", name, record.ID)
			}
			ids[record.ID] = true
			// Each writer's own records keep their relative order.
			want := fmt.Sprintf("%d", nextSequence[record.RepoName])
			if record.CommitSHA != want {
				t.Errorf("%s: %s record %s out of order, want %s", name, record.RepoName, record.CommitSHA, want)
			}
			nextSequence[record.RepoName]++
		}
	}
	check("memory", ledger.List())
	reopened := openTest(t, path)
	check("reloaded", reopened.List())
	requireSameRecords(t, reopened.List(), ledger.List())
}

func TestOpenTreatsUnparsableFileAsEmpty(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"garbage":        "{not json",
		"object":         `{"id": "x"}`,
		"truncated":      "[\n  {\n    \"id\": \"abc\",",
		"record sans id": `[{"repoName": "r"}]`,
		"bad timestamp":  `[{"id": "a", "repoName": "r", "createdAt": "yesterday"}]`,
		"bad outcome":    `[{"id": "a", "outcome": 7}]`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "builds.json")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			ledger := openTest(t, path)
			if ledger.Len() != 0 {
				t.Fatalf("Len() = %d, want 0", ledger.Len())
			}

			// The ledger remains usable and replaces the bad file.
			record := NewRecord(testClock, "repo", "sha", "main", OutcomeSuccess, "ok")
			if err := ledger.Append(record); err != nil {
				t.Fatalf("Append: %v", err)
			}
			requireSameRecords(t, openTest(t, path).List(), []Record{record})
		})
	}
}

func TestOpenEmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "builds.json")
	if err := os.WriteFile(path, []byte("  \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := openTest(t, path).Len(); got != 0 {
		t.Errorf("Len() = %d, want 0", got)
	}
}

func TestOpenUnreadablePathFails(t *testing.T) {
	t.Parallel()

	// A directory where the ledger file should be is an operator
	// error, not corrupt history.
	path := filepath.Join(t.TempDir(), "builds.json")
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path, discardLogger()); err == nil {
		t.Error("Open succeeded on a directory")
	}
}

func TestLatestSinceOpen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "builds.json")
	earlier := openTest(t, path)
	old := NewRecord(testClock, "repo", "old", "main", OutcomeSuccess, "ok")
	if err := earlier.Append(old); err != nil {
		t.Fatal(err)
	}
	if latest, found := earlier.LatestSinceOpen(); !found || latest.ID != old.ID {
		t.Errorf("LatestSinceOpen() = %+v, %v, want %s", latest, found, old.ID)
	}

	session := openTest(t, path)
	if _, found := session.LatestSinceOpen(); found {
		t.Error("LatestSinceOpen() reported a record from a previous session")
	}

	first := NewRecord(testClock, "repo", "first", "main", OutcomeFailure, "failed")
	second := NewRecord(testClock, "repo", "second", "main", OutcomeSuccess, "ok")
	for _, record := range []Record{first, second} {
		if err := session.Append(record); err != nil {
			t.Fatal(err)
		}
	}
	latest, found := session.LatestSinceOpen()
	if !found || latest.ID != second.ID {
		t.Errorf("LatestSinceOpen() = %+v, %v, want %s", latest, found, second.ID)
	}
}

func TestAppendRejectsInvalidRecords(t *testing.T) {
	t.Parallel()

	ledger := openTest(t, filepath.Join(t.TempDir(), "builds.json"))
	if err := ledger.Append(Record{RepoName: "no id"}); err == nil {
		t.Error("Append accepted a record without an id")
	}

	record := NewRecord(testClock, "repo", "sha", "main", OutcomeSuccess, "ok")
	if err := ledger.Append(record); err != nil {
		t.Fatal(err)
	}
	if err := ledger.Append(record); err == nil {
		t.Error("Append accepted a duplicate id")
	}
	if ledger.Len() != 1 {
		t.Errorf("Len() = %d, want 1", ledger.Len())
	}
}

func TestAppendFailureLeavesMemoryUnchanged(t *testing.T) {
	t.Parallel()

	directory := filepath.Join(t.TempDir(), "state")
	ledger := openTest(t, filepath.Join(directory, "builds.json"))
	if err := os.RemoveAll(directory); err != nil {
		t.Fatal(err)
	}

	record := NewRecord(testClock, "repo", "sha", "main", OutcomeSuccess, "ok")
	if err := ledger.Append(record); err == nil {
		t.Fatal("Append succeeded with the ledger directory removed")
	}
	if ledger.Len() != 0 {
		t.Errorf("Len() = %d after failed Append, want 0", ledger.Len())
	}
	if _, found := ledger.Get(record.ID); found {
		t.Error("failed Append left the record visible")
	}
}

func TestListReturnsCopy(t *testing.T) {
	t.Parallel()

	ledger := openTest(t, filepath.Join(t.TempDir(), "builds.json"))
	record := NewRecord(testClock, "repo", "sha", "main", OutcomeSuccess, "ok")
	if err := ledger.Append(record); err != nil {
		t.Fatal(err)
	}
	listed := ledger.List()
	listed[0].Detail = "tampered"
	if got, _ := ledger.Get(record.ID); got.Detail != "ok" {
		t.Errorf("Detail = %q after mutating List result, want ok", got.Detail)
	}
}

func TestNewRecordAssignsUniqueIDs(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for range 100 {
		record := NewRecord(testClock, "repo", "sha", "main", OutcomeSuccess, "ok")
		if seen[record.ID] {
			t.Fatalf("duplicate id %s", record.ID)
		}
		seen[record.ID] = true
		if !record.CreatedAt.Equal(testClock.Now()) {
			t.Errorf("CreatedAt = %v, want %v", record.CreatedAt, testClock.Now())
		}
		if !record.Succeeded() {
			t.Error("Succeeded() = false for a success record")
		}
	}
}

func TestAppendMergesRecordsFromOtherWriters(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "builds.json")
	first := openTest(t, path)
	second := openTest(t, path)

	fromFirst := NewRecord(testClock, "repo", "first", "main", OutcomeSuccess, "ok")
	fromSecond := NewRecord(testClock, "repo", "second", "main", OutcomeFailure, "failed")
	if err := first.Append(fromFirst); err != nil {
		t.Fatalf("first Append: %v", err)
	}
	if err := second.Append(fromSecond); err != nil {
		t.Fatalf("second Append: %v", err)
	}

	requireSameRecords(t, openTest(t, path).List(), []Record{fromFirst, fromSecond})
	requireSameRecords(t, second.List(), []Record{fromFirst, fromSecond})
	if latest, found := second.LatestSinceOpen(); !found || latest.ID != fromSecond.ID {
		t.Errorf("LatestSinceOpen() = %+v, %v, want %s", latest, found, fromSecond.ID)
	}

	// The first writer catches up on its next append.
	again := NewRecord(testClock, "repo", "third", "main", OutcomeSuccess, "ok")
	if err := first.Append(again); err != nil {
		t.Fatalf("first Append: %v", err)
	}
	requireSameRecords(t, first.List(), []Record{fromFirst, fromSecond, again})

	// An id another writer already recorded is rejected.
	if err := first.Append(fromSecond); err == nil {
		t.Error("Append accepted an id recorded by another writer")
	}
}
