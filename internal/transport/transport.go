// Package transport sends serialized record batches to the collection
// endpoint and classifies the outcome: nil for a 2xx response, a
// *StatusError for any other response, and an ordinary error for
// transport-level failures (connection refused, timeouts, bad URLs).
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StatusError reports a response the collection endpoint answered with a
// non-success status. These are retryable; see the delivery protocol.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("collection endpoint rejected batch: %s", e.Status)
}

// Client posts JSON bodies over HTTP.
type Client struct {
	http *http.Client
}

// NewClient returns a Client with the given request timeout. Zero means no
// timeout, matching the baseline design where the call either resolves or
// fails.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		http: &http.Client{Timeout: timeout},
	}
}

// Send POSTs body to url as application/json. The response body is drained
// and discarded; only the status matters.
func (c *Client) Send(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post batch: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	return nil
}
