// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/bureau-ci/lib/testutil"
)

func TestVerifyWebhookHMAC(t *testing.T) {
	secret := []byte("webhook-secret-for-testing")
	body := []byte(`{"ref":"refs/heads/main","after":"abc123"}`)

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	validHex := hex.EncodeToString(mac.Sum(nil))

	tests := []struct {
		name      string
		secret    []byte
		body      []byte
		signature string
		wantError string
	}{
		{name: "valid_with_prefix", secret: secret, body: body, signature: "sha256=" + validHex},
		{name: "valid_without_prefix", secret: secret, body: body, signature: validHex},
		{name: "wrong_signature", secret: secret, body: body, signature: "sha256=" + strings.Repeat("ab", 32), wantError: "signature mismatch"},
		{name: "wrong_secret", secret: []byte("other"), body: body, signature: "sha256=" + validHex, wantError: "signature mismatch"},
		{name: "different_body", secret: secret, body: []byte("{}"), signature: "sha256=" + validHex, wantError: "signature mismatch"},
		{name: "truncated_signature", secret: secret, body: body, signature: "sha256=" + validHex[:32], wantError: "signature mismatch"},
		{name: "empty_secret", body: body, signature: validHex, wantError: "secret is empty"},
		{name: "empty_body", secret: secret, signature: validHex, wantError: "body is empty"},
		{name: "empty_signature", secret: secret, body: body, wantError: "signature is empty"},
		{name: "not_hex", secret: secret, body: body, signature: "sha256=zz", wantError: "invalid hex signature"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			err := VerifyWebhookHMAC(test.secret, test.body, test.signature)
			if test.wantError == "" {
				if err != nil {
					t.Errorf("VerifyWebhookHMAC() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("VerifyWebhookHMAC() = nil, want error containing %q", test.wantError)
			}
			if !strings.Contains(err.Error(), test.wantError) {
				t.Errorf("error = %q, want %q", err, test.wantError)
			}
		})
	}
}

func TestHTTPServerLifecycle(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		fmt.Fprintf(writer, "ok %s", request.URL.Path)
	})

	server := NewHTTPServer(HTTPServerConfig{
		Address:         "127.0.0.1:0",
		Handler:         handler,
		ShutdownTimeout: 2 * time.Second,
		Logger:          logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.Serve(ctx)
	}()

	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "waiting for the listener")

	response, err := http.Get("http://" + server.Addr().String() + "/builds")
	if err != nil {
		t.Fatalf("GET /builds: %v", err)
	}
	body, _ := io.ReadAll(response.Body)
	response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", response.StatusCode)
	}
	if string(body) != "ok /builds" {
		t.Errorf("body = %q, want %q", body, "ok /builds")
	}

	cancel()

	if err := testutil.RequireReceive(t, serveDone, 5*time.Second, "waiting for shutdown"); err != nil {
		t.Errorf("Serve() = %v, want nil", err)
	}
}

func TestHTTPServerListenError(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer occupied.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := NewHTTPServer(HTTPServerConfig{
		Address: occupied.Addr().String(),
		Handler: http.NotFoundHandler(),
		Logger:  logger,
	})
	if err := server.Serve(t.Context()); err == nil {
		t.Fatal("Serve() on an occupied address returned nil")
	}
}

func TestHTTPServerPanicsOnMissingConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	tests := []struct {
		name   string
		config HTTPServerConfig
	}{
		{name: "missing_address", config: HTTPServerConfig{Handler: handler, Logger: logger}},
		{name: "missing_handler", config: HTTPServerConfig{Address: ":0", Logger: logger}},
		{name: "missing_logger", config: HTTPServerConfig{Address: ":0", Handler: handler}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Error("NewHTTPServer did not panic")
				}
			}()
			NewHTTPServer(test.config)
		})
	}
}
