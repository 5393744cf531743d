// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"

	"github.com/bureau-foundation/bureau-ci/lib/clock"
	"github.com/bureau-foundation/bureau-ci/lib/github"
	"github.com/bureau-foundation/bureau-ci/lib/ledger"
	"github.com/bureau-foundation/bureau-ci/lib/notify"
	"github.com/bureau-foundation/bureau-ci/lib/pipeline"
)

// builder runs one build. *pipeline.Pipeline implements it.
type builder interface {
	Run(ctx context.Context, request pipeline.Request) error
}

// statusReporter posts commit statuses. *github.StatusReporter
// implements it.
type statusReporter interface {
	Report(ctx context.Context, owner, repo, sha string, state github.StatusState, targetURL string) error
}

// ServerConfig configures a Server.
type ServerConfig struct {
	// Context bounds every build and status report. Builds outlive
	// the webhook request that started them but not this context;
	// the service cancels it on shutdown. Required.
	Context context.Context

	Builder  builder
	Reporter statusReporter
	Ledger   *ledger.Ledger
	Hub      *notify.Hub

	// WebhookSecret, when non-empty, is the HMAC key every webhook
	// must be signed with.
	WebhookSecret []byte

	// PublicURL is the externally reachable base URL. When set,
	// commit statuses link back to the build's detail page.
	PublicURL string

	Clock  clock.Clock
	Logger *slog.Logger
}

// Server holds the HTTP handlers of the CI service.
type Server struct {
	ctx           context.Context
	builder       builder
	reporter      statusReporter
	ledger        *ledger.Ledger
	hub           *notify.Hub
	webhookSecret []byte
	publicURL     string
	clock         clock.Clock
	logger        *slog.Logger
	deliveries    *deliveryLog
}

// NewServer returns a Server. Panics if a required dependency is
// missing.
func NewServer(config ServerConfig) *Server {
	if config.Context == nil {
		panic("Server: Context is required")
	}
	if config.Builder == nil {
		panic("Server: Builder is required")
	}
	if config.Reporter == nil {
		panic("Server: Reporter is required")
	}
	if config.Ledger == nil {
		panic("Server: Ledger is required")
	}
	if config.Hub == nil {
		panic("Server: Hub is required")
	}
	if config.Logger == nil {
		panic("Server: Logger is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	return &Server{
		ctx:           config.Context,
		builder:       config.Builder,
		reporter:      config.Reporter,
		ledger:        config.Ledger,
		hub:           config.Hub,
		webhookSecret: config.WebhookSecret,
		publicURL:     strings.TrimRight(config.PublicURL, "/"),
		clock:         config.Clock,
		logger:        config.Logger,
		deliveries:    newDeliveryLog(config.Clock, deduplicationWindow),
	}
}

// Handler returns the service's routes.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/", s.handleWebhook).Methods(http.MethodPost)
	router.HandleFunc("/", s.handleAlive).Methods(http.MethodGet, http.MethodHead)

	router.HandleFunc("/builds", s.handleBuildList).Methods(http.MethodGet)
	router.HandleFunc("/details", s.handleBuildDetail).Methods(http.MethodGet)
	router.HandleFunc("/notifications", s.handleNotifications).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(func(next http.Handler) http.Handler {
		return gzhttp.GzipHandler(next)
	})
	api.HandleFunc("/builds", s.handleAPIList).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/builds/{id}", s.handleAPIBuild).Methods(http.MethodGet, http.MethodHead)

	router.Handle("/ws", s.hub).Methods(http.MethodGet)

	return router
}

func (s *Server) handleAlive(writer http.ResponseWriter, _ *http.Request) {
	writeText(writer, http.StatusOK, "This server is up and running.")
}

// detailURL links to the HTML detail page of a build, or "" without a
// public URL.
func (s *Server) detailURL(id string) string {
	if s.publicURL == "" {
		return ""
	}
	return s.publicURL + "/details?id=" + url.QueryEscape(id)
}

// notificationsURL is the pending-status link: the build has no id yet.
func (s *Server) notificationsURL() string {
	if s.publicURL == "" {
		return ""
	}
	return s.publicURL + "/notifications"
}

// transitionNotifier broadcasts every pipeline state change on hub.
func transitionNotifier(hub *notify.Hub) func(pipeline.Request, pipeline.State) {
	return func(request pipeline.Request, state pipeline.State) {
		hub.Broadcast(notify.Event{
			Kind:       notify.KindTransition,
			Owner:      request.Owner,
			Repository: request.Repository,
			Commit:     request.Commit,
			State:      state.String(),
		})
	}
}

// writeText writes a one-line plain text response.
func writeText(writer http.ResponseWriter, status int, text string) {
	writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
	writer.Header().Set("X-Content-Type-Options", "nosniff")
	writer.WriteHeader(status)
	writer.Write([]byte(text + "\n"))
}
