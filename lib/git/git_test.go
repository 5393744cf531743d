// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package git

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/bureau-foundation/bureau-ci/lib/process"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCloneURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		base, owner, repository, want string
	}{
		{"https://github.com", "octo", "hello", "https://github.com/octo/hello.git"},
		{"https://github.com/", "octo", "hello", "https://github.com/octo/hello.git"},
		{"/srv/git", "team", "project", "/srv/git/team/project.git"},
	}
	for _, test := range tests {
		if got := CloneURL(test.base, test.owner, test.repository); got != test.want {
			t.Errorf("CloneURL(%q, %q, %q) = %q, want %q",
				test.base, test.owner, test.repository, got, test.want)
		}
	}
}

func TestCloneAnonymous(t *testing.T) {
	t.Parallel()

	executor := process.FakeExitCodes(0)
	client := NewClient(executor, nil, discardLogger())

	if _, err := client.Clone(context.Background(), "https://github.com/octo/hello.git", "/work/build-1"); err != nil {
		t.Fatalf("Clone: %v", err)
	}

	invocations := executor.Invocations()
	if len(invocations) != 1 {
		t.Fatalf("got %d invocations, want 1", len(invocations))
	}
	invocation := invocations[0]
	want := []string{"git", "clone", "--", "https://github.com/octo/hello.git", "."}
	if !slices.Equal(invocation.Args, want) {
		t.Errorf("Args = %q, want %q", invocation.Args, want)
	}
	if invocation.Dir != "/work/build-1" {
		t.Errorf("Dir = %q, want /work/build-1", invocation.Dir)
	}
	if !slices.Equal(invocation.Env, []string{"GIT_TERMINAL_PROMPT=0"}) {
		t.Errorf("Env = %q, want only GIT_TERMINAL_PROMPT=0", invocation.Env)
	}
}

func TestCloneWithTokenKeepsCredentialOffArgv(t *testing.T) {
	t.Parallel()

	executor := process.FakeExitCodes(0)
	client := NewClient(executor, func() string { return "secret-token" }, discardLogger())

	sourceURL := "https://github.com/octo/hello.git"
	if _, err := client.Clone(context.Background(), sourceURL, "/work/build-2"); err != nil {
		t.Fatalf("Clone: %v", err)
	}

	invocation := executor.Invocations()[0]
	want := []string{"git", "clone", "--", sourceURL, "."}
	if !slices.Equal(invocation.Args, want) {
		t.Errorf("Args = %q, want %q", invocation.Args, want)
	}
	credential := base64.StdEncoding.EncodeToString([]byte("x-access-token:secret-token"))
	for _, entry := range []string{
		"GIT_CONFIG_COUNT=1",
		"GIT_CONFIG_KEY_0=http.extraHeader",
		"GIT_CONFIG_VALUE_0=Authorization: Basic " + credential,
	} {
		if !slices.Contains(invocation.Env, entry) {
			t.Errorf("Env = %q, missing %q", invocation.Env, entry)
		}
	}
	if rendered := invocation.String(); strings.Contains(rendered, credential) || strings.Contains(rendered, "secret-token") {
		t.Errorf("rendered invocation %q carries the credential", rendered)
	}
}

func TestCheckout(t *testing.T) {
	t.Parallel()

	executor := process.FakeExitCodes(0)
	client := NewClient(executor, nil, discardLogger())

	if _, err := client.Checkout(context.Background(), "/work/build-3", "abc123"); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	invocation := executor.Invocations()[0]
	want := []string{"git", "checkout", "--quiet", "abc123"}
	if !slices.Equal(invocation.Args, want) {
		t.Errorf("Args = %q, want %q", invocation.Args, want)
	}
	if invocation.Dir != "/work/build-3" {
		t.Errorf("Dir = %q, want /work/build-3", invocation.Dir)
	}
}

// initSourceRepo creates a repository with two commits and returns its
// path and the hash of the first commit.
func initSourceRepo(t *testing.T) (string, string) {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "source")
	environment := append(os.Environ(),
		"GIT_AUTHOR_NAME=Test", "GIT_AUTHOR_EMAIL=test@test.local",
		"GIT_COMMITTER_NAME=Test", "GIT_COMMITTER_EMAIL=test@test.local",
	)
	gitIn := func(args ...string) string {
		command := exec.Command("git", append([]string{"-C", dir}, args...)...)
		command.Env = environment
		output, err := command.CombinedOutput()
		if err != nil {
			t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, output)
		}
		return strings.TrimSpace(string(output))
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	gitIn("init", "--quiet")
	if err := os.WriteFile(filepath.Join(dir, "VERSION"), []byte("1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	gitIn("add", "VERSION")
	gitIn("commit", "--quiet", "-m", "first")
	first := gitIn("rev-parse", "HEAD")

	if err := os.WriteFile(filepath.Join(dir, "VERSION"), []byte("2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	gitIn("commit", "--quiet", "-am", "second")
	return dir, first
}

func TestCloneAndCheckoutWithRealGit(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	source, firstCommit := initSourceRepo(t)
	destination := t.TempDir()
	client := NewClient(process.NewOSExecutor(discardLogger()), nil, discardLogger())
	ctx := context.Background()

	outcome, err := client.Clone(ctx, source, destination)
	if err != nil || outcome.ExitCode != 0 {
		t.Fatalf("Clone: exit %d, err %v\n%s", outcome.ExitCode, err, outcome.Output)
	}
	outcome, err = client.Checkout(ctx, destination, firstCommit)
	if err != nil || outcome.ExitCode != 0 {
		t.Fatalf("Checkout: exit %d, err %v\n%s", outcome.ExitCode, err, outcome.Output)
	}

	content, err := os.ReadFile(filepath.Join(destination, "VERSION"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "1\n" {
		t.Errorf("VERSION = %q after checkout of first commit, want %q", content, "1\n")
	}

	outcome, err = client.Checkout(ctx, destination, "0000000000000000000000000000000000000000")
	if err != nil {
		t.Fatalf("Checkout of missing commit returned error: %v", err)
	}
	if outcome.ExitCode == 0 {
		t.Error("Checkout of missing commit exited 0")
	}
}
