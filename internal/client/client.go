// Package client talks to the log backend's JSON endpoints.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"logdash/internal/models"
)

// APIError is returned when the backend answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}

// Client issues same-origin GET requests against the backend.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a Client pointing at the given base URL. Requests carry no
// deadline of their own; they end when the caller's context does.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Stats fetches the aggregate breakdowns for the last hours hours. Status
// codes are folded into classes.
func (c *Client) Stats(ctx context.Context, hours int) (models.StatsSnapshot, error) {
	q := url.Values{}
	q.Set("hours", strconv.Itoa(hours))

	var snap models.StatsSnapshot
	if err := c.getJSON(ctx, "/api/stats", q, &snap); err != nil {
		return models.StatsSnapshot{}, fmt.Errorf("fetch stats: %w", err)
	}
	return snap.Normalize(), nil
}

// Errors fetches the current error digest.
func (c *Client) Errors(ctx context.Context) (models.ErrorDigest, error) {
	digest := models.ErrorDigest{}
	if err := c.getJSON(ctx, "/api/errors", nil, &digest); err != nil {
		return nil, fmt.Errorf("fetch errors: %w", err)
	}
	return digest, nil
}

// Search runs a pattern search and returns the matching raw lines in
// backend order. A null body is treated as no matches.
func (c *Client) Search(ctx context.Context, query models.SearchQuery) ([]string, error) {
	q := url.Values{}
	q.Set("pattern", query.Pattern)
	q.Set("type", string(query.LogType))

	var lines []string
	if err := c.getJSON(ctx, "/api/search", q, &lines); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if lines == nil {
		lines = []string{}
	}
	return lines, nil
}

// RecentAccess fetches the most recent access events.
func (c *Client) RecentAccess(ctx context.Context, lines int) ([]models.LogEvent, error) {
	var events []models.LogEvent
	if err := c.getJSON(ctx, "/api/logs/recent", recentQuery(models.LogTypeAccess, lines), &events); err != nil {
		return nil, fmt.Errorf("fetch recent access logs: %w", err)
	}
	return events, nil
}

// RecentErrors fetches the most recent error log lines.
func (c *Client) RecentErrors(ctx context.Context, lines int) ([]string, error) {
	var out []string
	if err := c.getJSON(ctx, "/api/logs/recent", recentQuery(models.LogTypeError, lines), &out); err != nil {
		return nil, fmt.Errorf("fetch recent error logs: %w", err)
	}
	return out, nil
}

func recentQuery(logType models.LogType, lines int) url.Values {
	q := url.Values{}
	q.Set("type", string(logType))
	if lines > 0 {
		q.Set("lines", strconv.Itoa(lines))
	}
	return q
}

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 1 << 10

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
