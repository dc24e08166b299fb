// Package fetcher downloads and decodes events from the remote events API.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"events_bot/internal/model"
)

// Errors returned by FetchAll.
var (
	ErrSourceUnavailable = errors.New("event source unavailable")
	ErrMalformedResponse = errors.New("malformed event response")
)

const maxBodySize = 5 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher retrieves the full event list from a fixed URL.
type Fetcher struct {
	client  HTTPClient
	url     string
	timeout time.Duration
	log     *slog.Logger
}

// New creates a Fetcher that reads events from url.
func New(client HTTPClient, url string, log *slog.Logger) *Fetcher {
	return &Fetcher{
		client:  client,
		url:     url,
		timeout: 30 * time.Second,
		log:     log,
	}
}

// SetTimeout overrides the default 30-second request timeout.
func (f *Fetcher) SetTimeout(d time.Duration) {
	if d > 0 {
		f.timeout = d
	}
}

// FetchAll performs a single GET and decodes the JSON array of events.
// Array elements that do not decode as an event object are skipped.
func (f *Fetcher) FetchAll(ctx context.Context) ([]model.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "CampusEventsBot/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http get: %w", ErrSourceUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrSourceUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrSourceUnavailable, err)
	}

	return f.decode(body)
}

func (f *Fetcher) decode(body []byte) ([]model.Event, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '[' {
		return nil, fmt.Errorf("%w: body is not a JSON array", ErrMalformedResponse)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	events := make([]model.Event, 0, len(raw))
	for i, r := range raw {
		var ev model.Event
		if err := json.Unmarshal(r, &ev); err != nil {
			f.log.Warn("skip malformed event", "index", i, "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
