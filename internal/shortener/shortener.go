// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

// Package shortener calls the third-party URL-shortening endpoint used
// to turn long enrollment URLs into something a player can type. The
// endpoint is a fallible external collaborator: calls are retried with
// backoff and failures are surfaced to the engine for rollback.
package shortener

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// DefaultEndpoint is the tinyurl-style create API; the long URL is
// appended query-escaped.
const DefaultEndpoint = "https://tinyurl.com/api-create.php?url="

const (
	maxRetries     = 3
	initialBackoff = 250 * time.Millisecond
	maxBodyBytes   = 4 << 10
)

// Client shortens URLs over HTTP.
type Client struct {
	endpoint string
	http     *http.Client
}

// New creates a shortener client. An empty endpoint uses
// DefaultEndpoint; timeout bounds each individual HTTP attempt.
func New(endpoint string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

// Shorten returns the short form of longURL, retrying transient
// failures with exponential backoff.
func (c *Client) Shorten(ctx context.Context, longURL string) (string, error) {
	target := c.endpoint + url.QueryEscape(longURL)

	var short string
	backoff := retry.WithMaxRetries(maxRetries, retry.NewExponential(initialBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return oops.In("shortener").Code("SHORTENER_BAD_REQUEST").Wrap(err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode/100 != 2 {
			err := oops.In("shortener").Code("SHORTENER_BAD_STATUS").
				With("status", resp.StatusCode).
				Errorf("unexpected status %d", resp.StatusCode)
			if resp.StatusCode >= 500 {
				return retry.RetryableError(err)
			}
			return err
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return retry.RetryableError(err)
		}

		short = firstLine(string(body))
		if short == "" {
			return oops.In("shortener").Code("SHORTENER_EMPTY_REPLY").
				Errorf("empty reply from shortener")
		}
		return nil
	})
	if err != nil {
		return "", oops.In("shortener").Code("SHORTENER_FAILED").
			With("endpoint", c.endpoint).
			Wrap(err)
	}
	return short, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
