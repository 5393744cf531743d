// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bureau-foundation/bureau-ci/lib/clock"
	"github.com/bureau-foundation/bureau-ci/lib/github"
	"github.com/bureau-foundation/bureau-ci/lib/ledger"
	"github.com/bureau-foundation/bureau-ci/lib/netutil"
	"github.com/bureau-foundation/bureau-ci/lib/notify"
	"github.com/bureau-foundation/bureau-ci/lib/pipeline"
	"github.com/bureau-foundation/bureau-ci/lib/service"
)

// maxWebhookBodySize bounds webhook payloads. GitHub caps push
// payloads at 25 MB.
const maxWebhookBodySize = 32 << 20

// deduplicationWindow is how long a delivery id is remembered. GitHub
// redeliveries happen within minutes.
const deduplicationWindow = time.Hour

// successDetail is the ledger detail of a passing build.
const successDetail = "Build succeeded"

// handleWebhook builds the commit a push webhook names and answers
// once the outcome is recorded.
func (s *Server) handleWebhook(writer http.ResponseWriter, request *http.Request) {
	body, err := netutil.ReadLimited(request.Body, maxWebhookBodySize)
	if errors.Is(err, netutil.ErrTooLarge) {
		writeText(writer, http.StatusRequestEntityTooLarge, "Payload too large.")
		return
	}
	if err != nil {
		s.logger.Warn("webhook: failed to read body", "error", err)
		writeText(writer, http.StatusBadRequest, "Unreadable request body.")
		return
	}
	if len(body) == 0 {
		writeText(writer, http.StatusBadRequest, "Empty request body.")
		return
	}

	if len(s.webhookSecret) > 0 {
		signature := request.Header.Get("X-Hub-Signature-256")
		if err := service.VerifyWebhookHMAC(s.webhookSecret, body, signature); err != nil {
			s.logger.Warn("webhook: signature verification failed",
				"error", err,
				"remote_addr", request.RemoteAddr,
			)
			writeText(writer, http.StatusUnauthorized, "Invalid signature.")
			return
		}
	}

	eventType := request.Header.Get("X-GitHub-Event")
	deliveryID := request.Header.Get("X-GitHub-Delivery")
	switch eventType {
	case "ping":
		writeText(writer, http.StatusOK, "pong")
		return
	case "", "push":
	default:
		s.logger.Debug("webhook: ignoring event", "event_type", eventType, "delivery_id", deliveryID)
		writeText(writer, http.StatusOK, fmt.Sprintf("Ignored %s event.", eventType))
		return
	}

	if deliveryID != "" && s.deliveries.seen(deliveryID) {
		s.logger.Info("webhook: duplicate delivery, ignoring", "delivery_id", deliveryID)
		writeText(writer, http.StatusOK, "Duplicate delivery.")
		return
	}

	push := github.ParsePushEvent(body)
	s.logger.Info("webhook received",
		"delivery_id", deliveryID,
		"owner", push.Owner,
		"repository", push.Repository,
		"commit", push.Commit,
		"branch", push.Branch,
	)

	record, err := s.build(push)
	if err != nil {
		s.logger.Error("webhook: handling failed", "delivery_id", deliveryID, "error", err)
		writeText(writer, http.StatusInternalServerError, "Error handling webhook: "+err.Error())
		return
	}
	if record.Succeeded() {
		writeText(writer, http.StatusOK, "Build succeeded.")
		return
	}
	writeText(writer, http.StatusInternalServerError, "Build failed.")
}

// build runs the pipeline for push, records the outcome, and reports
// it. The only error returned is a ledger append failure: reporting is
// best-effort and never changes the response.
func (s *Server) build(push github.PushEvent) (ledger.Record, error) {
	// The webhook sender hanging up must not abort the build, so the
	// build runs under the server's context rather than the request's.
	ctx := s.ctx

	s.report(ctx, push, github.StatusPending, s.notificationsURL())

	runErr := s.builder.Run(ctx, pipeline.Request{
		Owner:      push.Owner,
		Repository: push.Repository,
		Commit:     push.Commit,
		Branch:     push.Branch,
	})
	outcome, state, detail := classify(runErr)

	record := ledger.NewRecord(s.clock, push.Repository, push.Commit, push.Branch, outcome, detail)
	if err := s.ledger.Append(record); err != nil {
		// The commit still gets its result, without a link to a
		// record that does not exist.
		s.report(ctx, push, state, "")
		return record, fmt.Errorf("recording build: %w", err)
	}

	s.report(ctx, push, state, s.detailURL(record.ID))
	s.hub.Broadcast(notify.Event{
		Kind:       notify.KindBuild,
		Owner:      push.Owner,
		Repository: push.Repository,
		Commit:     push.Commit,
		State:      string(state),
		Build:      &record,
	})
	return record, nil
}

// classify maps a pipeline result to the ledger outcome, the commit
// status, and the record detail. A phase whose process exited non-zero
// is a build failure; anything that kept the build from running to a
// verdict is an error.
func classify(runErr error) (ledger.Outcome, github.StatusState, string) {
	if runErr == nil {
		return ledger.OutcomeSuccess, github.StatusSuccess, successDetail
	}
	var failure *pipeline.Failure
	if errors.As(runErr, &failure) && failure.Err == nil {
		return ledger.OutcomeFailure, github.StatusFailure, failure.Error()
	}
	return ledger.OutcomeFailure, github.StatusError, runErr.Error()
}

// report posts a commit status and logs, rather than returns, any
// failure. Pushes missing the owner, repository, or commit have
// nothing to attach a status to.
func (s *Server) report(ctx context.Context, push github.PushEvent, state github.StatusState, targetURL string) {
	if push.Owner == github.Unknown || push.Repository == github.Unknown || push.Commit == github.Unknown {
		s.logger.Debug("not reporting status for incomplete push", "state", string(state))
		return
	}
	if err := s.reporter.Report(ctx, push.Owner, push.Repository, push.Commit, state, targetURL); err != nil {
		s.logger.Error("reporting commit status failed",
			"owner", push.Owner,
			"repository", push.Repository,
			"commit", push.Commit,
			"state", string(state),
			"error", err,
		)
	}
}

// deliveryLog remembers webhook delivery ids for a window.
type deliveryLog struct {
	clock  clock.Clock
	window time.Duration

	mu       sync.Mutex
	received map[string]time.Time
}

func newDeliveryLog(c clock.Clock, window time.Duration) *deliveryLog {
	return &deliveryLog{clock: c, window: window, received: make(map[string]time.Time)}
}

// seen records id and reports whether it was already recorded within
// the window. Expired ids are pruned on every call.
func (d *deliveryLog) seen(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	for existing, receivedAt := range d.received {
		if now.Sub(receivedAt) > d.window {
			delete(d.received, existing)
		}
	}
	if _, exists := d.received[id]; exists {
		return true
	}
	d.received[id] = now
	return false
}
