// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bureau-foundation/bureau-ci/lib/netutil"
	"github.com/bureau-foundation/bureau-ci/lib/version"
)

// githubAPIVersion is sent as X-GitHub-Api-Version on every request.
const githubAPIVersion = "2022-11-28"

const defaultBaseURL = "https://api.github.com"

// Config configures a Client.
type Config struct {
	// BaseURL is the API root. Defaults to https://api.github.com.
	// GitHub Enterprise uses https://<host>/api/v3. Must be HTTPS.
	BaseURL string

	// Token supplies the bearer token per request. Required.
	Token TokenSource

	// HTTPClient defaults to a client with a 30 second timeout.
	HTTPClient *http.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client is a GitHub REST API client.
type Client struct {
	baseURL    string
	token      TokenSource
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates config and returns a Client.
func NewClient(config Config) (*Client, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("github: API client requires HTTPS (got %q)", baseURL)
	}
	if config.Token == nil {
		return nil, fmt.Errorf("github: Token source is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    baseURL,
		token:      config.Token,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// post sends requestBody as JSON and decodes a 2xx response into
// result (when non-nil). Non-2xx responses become *APIError.
func (client *Client) post(ctx context.Context, path string, requestBody, result any) error {
	// The credential check comes first: a missing token must never
	// produce network traffic.
	token, err := client.token()
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(requestBody)
	if err != nil {
		return fmt.Errorf("github: encoding request body: %w", err)
	}

	url := client.baseURL + path
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("github: creating request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+token)
	request.Header.Set("Accept", "application/vnd.github+json")
	request.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("User-Agent", version.UserAgent())

	response, err := client.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("github: POST %s: %w", url, err)
	}
	defer response.Body.Close()

	body, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return fmt.Errorf("github: reading response body: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return parseAPIError(response.StatusCode, body)
	}
	if result == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("github: decoding response: %w", err)
	}
	return nil
}
