// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"context"
	"fmt"
	"sync"
)

// Response is one scripted result for a FakeExecutor.
type Response struct {
	Outcome Outcome
	Err     error
}

// FakeExecutor is a scripted Executor for tests. Each Execute call
// records its invocation and returns the next scripted Response in
// order. Calls beyond the script fail the invocation with exit code 1
// and an explanatory output, which makes an unexpected extra phase
// visible in the resulting failure detail.
//
// FakeExecutor is safe for concurrent use.
type FakeExecutor struct {
	mu          sync.Mutex
	responses   []Response
	invocations []Invocation

	// OnExecute, when set, is called with each invocation before the
	// scripted response is returned. Tests use it to inspect the
	// filesystem state a real process would see.
	OnExecute func(Invocation)
}

// Fake returns a FakeExecutor that answers with responses in order.
func Fake(responses ...Response) *FakeExecutor {
	return &FakeExecutor{responses: responses}
}

// FakeExitCodes returns a FakeExecutor whose responses are successful
// process runs with the given exit codes. Output is "exit <code>\n".
func FakeExitCodes(codes ...int) *FakeExecutor {
	responses := make([]Response, len(codes))
	for i, code := range codes {
		responses[i] = Response{Outcome: Outcome{
			ExitCode: code,
			Output:   fmt.Sprintf("exit %d\n", code),
		}}
	}
	return Fake(responses...)
}

// Execute implements Executor.
func (f *FakeExecutor) Execute(_ context.Context, invocation Invocation) (Outcome, error) {
	f.mu.Lock()
	index := len(f.invocations)
	f.invocations = append(f.invocations, invocation)
	var response Response
	scripted := index < len(f.responses)
	if scripted {
		response = f.responses[index]
	}
	onExecute := f.OnExecute
	f.mu.Unlock()

	if onExecute != nil {
		onExecute(invocation)
	}
	if !scripted {
		return Outcome{
			ExitCode: 1,
			Output:   fmt.Sprintf("unscripted invocation %d: %s\n", index+1, invocation),
		}, nil
	}
	return response.Outcome, response.Err
}

// Invocations returns a copy of every invocation received so far.
func (f *FakeExecutor) Invocations() []Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Invocation(nil), f.invocations...)
}
