// Package executor issues WFS GetFeature requests and classifies their responses.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/wfs-clickmap/internal/core/observability"
	"github.com/mohammed-shakir/wfs-clickmap/internal/core/ogc"
)

type Fetcher struct {
	logger   *slog.Logger
	client   *http.Client
	startNow func() time.Time // for tests
}

func New(logger *slog.Logger, client *http.Client) *Fetcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{
		logger:   logger,
		client:   client,
		startNow: time.Now,
	}
}

// FetchFeatures GETs baseURL with the encoded query and returns the body once
// it is known to be valid JSON. The payload is not checked for a features member.
func (f *Fetcher) FetchFeatures(ctx context.Context, baseURL, query string) (json.RawMessage, error) {
	full := ogc.RequestURL(baseURL, query)
	f.logger.DebugContext(ctx, "wfs request",
		"url", full,
		"query_id", ogc.Fingerprint(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		observability.IncFetchOutcome("transport")
		return nil, &TransportError{URL: full, Err: fmt.Errorf("build request: %w", err)}
	}

	start := f.startNow()
	resp, err := f.client.Do(req)
	dur := time.Since(start)
	observability.ObserveUpstreamLatency("wfs", dur.Seconds())
	if err != nil {
		observability.IncFetchOutcome("transport")
		return nil, &TransportError{URL: full, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// body is best effort
		b, _ := io.ReadAll(resp.Body)
		observability.IncFetchOutcome("http_status")
		return nil, &HTTPStatusError{
			Status:     resp.StatusCode,
			StatusText: statusText(resp),
			Body:       string(b),
		}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.IncFetchOutcome("transport")
		return nil, &TransportError{URL: full, Err: fmt.Errorf("read body: %w", err)}
	}

	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		observability.IncFetchOutcome("parse")
		return nil, &ParseError{Snippet: snippet(string(b)), Err: err}
	}

	f.logger.DebugContext(ctx, "wfs response",
		"status", resp.StatusCode,
		"bytes", len(b),
		"duration", dur.String())
	observability.IncFetchOutcome("ok")
	return json.RawMessage(b), nil
}

// "500 Internal Server Error" -> "Internal Server Error"
func statusText(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	if s := strings.TrimSpace(strings.TrimPrefix(resp.Status, code)); s != "" {
		return s
	}
	return http.StatusText(resp.StatusCode)
}
