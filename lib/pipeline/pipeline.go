// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pipeline runs the fixed build sequence for one commit:
// clone, checkout, compile, test.
//
// A run is a fail-fast state machine (see [State]). Each phase runs
// only if the previous one succeeded, and the first failing phase ends
// the run with a single [*Failure] carrying the phase, exit code, and
// complete output. The run's workspace is destroyed exactly once on
// every exit path.
//
// The pipeline never starts processes itself. Source control goes
// through a [SourceControl] (normally a *git.Client) and the build
// tool through a [process.Executor], so tests substitute both.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/bureau-ci/lib/clock"
	"github.com/bureau-foundation/bureau-ci/lib/git"
	"github.com/bureau-foundation/bureau-ci/lib/process"
	"github.com/bureau-foundation/bureau-ci/lib/workspace"
)

// Request identifies the commit to build.
type Request struct {
	Owner      string
	Repository string
	Commit     string
	Branch     string
}

// SourceControl fetches a repository and moves it to a commit.
type SourceControl interface {
	Clone(ctx context.Context, sourceURL, dir string) (process.Outcome, error)
	Checkout(ctx context.Context, dir, commit string) (process.Outcome, error)
}

// Toolchain is the build tool's argv for each build phase. Both run
// inside the workspace.
type Toolchain struct {
	Compile []string
	Test    []string
}

// MavenToolchain returns the default toolchain: a clean compile and
// the test lifecycle phase, both in batch mode.
func MavenToolchain() Toolchain {
	return Toolchain{
		Compile: []string{"mvn", "-B", "clean", "compile"},
		Test:    []string{"mvn", "-B", "test"},
	}
}

// Config configures a Pipeline.
type Config struct {
	// Executor runs the build tool. Required.
	Executor process.Executor

	// SourceControl clones and checks out. Required.
	SourceControl SourceControl

	// Workspaces creates the per-run directory. Required.
	Workspaces *workspace.Manager

	// CloneBaseURL is the prefix for clone URLs, such as
	// "https://github.com". Required.
	CloneBaseURL string

	// Toolchain defaults to MavenToolchain when both argv lists are
	// empty.
	Toolchain Toolchain

	// PhaseTimeout bounds each phase when positive. Zero means a
	// phase may run indefinitely.
	PhaseTimeout time.Duration

	// Clock measures phase durations. Defaults to clock.Real().
	Clock clock.Clock

	// Logger is required.
	Logger *slog.Logger

	// OnTransition, when set, is called synchronously each time a run
	// enters a state, including StateCreated and the terminal state.
	OnTransition func(Request, State)
}

// Pipeline runs builds. It holds no per-run state and is safe for
// concurrent use; each Run owns its own workspace.
type Pipeline struct {
	executor      process.Executor
	sourceControl SourceControl
	workspaces    *workspace.Manager
	cloneBaseURL  string
	toolchain     Toolchain
	phaseTimeout  time.Duration
	clock         clock.Clock
	logger        *slog.Logger
	onTransition  func(Request, State)
}

// New returns a Pipeline. Panics if a required field is missing.
func New(config Config) *Pipeline {
	if config.Executor == nil {
		panic("pipeline: Executor is required")
	}
	if config.SourceControl == nil {
		panic("pipeline: SourceControl is required")
	}
	if config.Workspaces == nil {
		panic("pipeline: Workspaces is required")
	}
	if config.CloneBaseURL == "" {
		panic("pipeline: CloneBaseURL is required")
	}
	if config.Logger == nil {
		panic("pipeline: Logger is required")
	}
	toolchain := config.Toolchain
	if len(toolchain.Compile) == 0 && len(toolchain.Test) == 0 {
		toolchain = MavenToolchain()
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	return &Pipeline{
		executor:      config.Executor,
		sourceControl: config.SourceControl,
		workspaces:    config.Workspaces,
		cloneBaseURL:  config.CloneBaseURL,
		toolchain:     toolchain,
		phaseTimeout:  config.PhaseTimeout,
		clock:         config.Clock,
		logger:        config.Logger,
		onTransition:  config.OnTransition,
	}
}

// step is one edge of the state machine: the phase that, when it
// succeeds, moves the run into next.
type step struct {
	phase  Phase
	next   State
	invoke func(ctx context.Context, dir string) (process.Outcome, error)
}

func (p *Pipeline) steps(request Request) []step {
	return []step{
		{PhaseClone, StateCloned, func(ctx context.Context, dir string) (process.Outcome, error) {
			return p.sourceControl.Clone(ctx, git.CloneURL(p.cloneBaseURL, request.Owner, request.Repository), dir)
		}},
		{PhaseCheckout, StateCheckedOut, func(ctx context.Context, dir string) (process.Outcome, error) {
			return p.sourceControl.Checkout(ctx, dir, request.Commit)
		}},
		{PhaseCompile, StateCompiled, p.buildTool(p.toolchain.Compile)},
		{PhaseTest, StateTested, p.buildTool(p.toolchain.Test)},
	}
}

func (p *Pipeline) buildTool(args []string) func(context.Context, string) (process.Outcome, error) {
	return func(ctx context.Context, dir string) (process.Outcome, error) {
		return p.executor.Execute(ctx, process.Invocation{Args: args, Dir: dir})
	}
}

// Run builds request.Commit. It returns nil when every phase
// succeeded, a *Failure when a phase failed, or a plain error when the
// workspace could not be created (no phase ran).
func (p *Pipeline) Run(ctx context.Context, request Request) error {
	logger := p.logger.With(
		"owner", request.Owner,
		"repository", request.Repository,
		"commit", request.Commit,
	)

	ws, err := p.workspaces.Create()
	if err != nil {
		return fmt.Errorf("preparing build of %s/%s at %s: %w",
			request.Owner, request.Repository, request.Commit, err)
	}
	defer ws.Destroy()

	machine := &run{request: request, state: StateCreated, notify: p.onTransition}
	machine.enter(StateCreated)
	started := p.clock.Now()

	for _, current := range p.steps(request) {
		if err := p.execute(ctx, current, request, ws.Path(), logger); err != nil {
			machine.enter(StateFailed)
			logger.Warn("build failed",
				"phase", string(current.phase),
				"duration", clock.Since(p.clock, started).String(),
			)
			return err
		}
		machine.enter(current.next)
	}

	machine.enter(StateDone)
	logger.Info("build succeeded", "duration", clock.Since(p.clock, started).String())
	return nil
}

func (p *Pipeline) execute(ctx context.Context, current step, request Request, dir string, logger *slog.Logger) error {
	phaseContext := ctx
	if p.phaseTimeout > 0 {
		var cancel context.CancelFunc
		phaseContext, cancel = context.WithTimeout(ctx, p.phaseTimeout)
		defer cancel()
	}

	started := p.clock.Now()
	outcome, err := current.invoke(phaseContext, dir)
	logger.Info("phase finished",
		"phase", string(current.phase),
		"exit_code", outcome.ExitCode,
		"duration", clock.Since(p.clock, started).String(),
		"error", err,
	)

	switch {
	case err != nil:
		return &Failure{
			Phase:    current.phase,
			ExitCode: -1,
			Output:   outcome.Output,
			Commit:   request.Commit,
			Err:      err,
		}
	case outcome.ExitCode != 0:
		return &Failure{
			Phase:    current.phase,
			ExitCode: outcome.ExitCode,
			Output:   outcome.Output,
			Commit:   request.Commit,
		}
	}
	return nil
}

// run tracks one build's state and enforces the transition table.
type run struct {
	request Request
	state   State
	entered bool
	notify  func(Request, State)
}

func (r *run) enter(to State) {
	if r.entered && !CanTransition(r.state, to) {
		panic(fmt.Sprintf("pipeline: illegal transition %s -> %s", r.state, to))
	}
	r.state = to
	r.entered = true
	if r.notify != nil {
		r.notify(r.request, to)
	}
}
