package player

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pscheid92/screensync/internal/domain"
)

const defaultRequestTimeout = 10 * time.Second

// HTTPSource talks to the server's polling endpoints. Transport failures,
// 5xx and 429 responses and truncated bodies surface as ErrNetworkTransient.
// A 404 on the stream endpoint is ErrNoContent.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

var _ Source = (*HTTPSource)(nil)

// NewHTTPSource creates a source for baseURL (e.g. "http://signage:8080").
// client may be nil.
func NewHTTPSource(baseURL string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (s *HTTPSource) Stream(ctx context.Context, screenID string, index int) (domain.StreamResponse, error) {
	var resp domain.StreamResponse
	target := fmt.Sprintf("%s/stream/%s?index=%d", s.baseURL, url.PathEscape(screenID), index)
	err := s.getJSON(ctx, target, &resp)
	return resp, err
}

func (s *HTTPSource) ContentStatus(ctx context.Context, screenID string) (domain.ContentStatus, error) {
	var status domain.ContentStatus
	err := s.getJSON(ctx, s.baseURL+"/content-status/"+url.PathEscape(screenID), &status)
	return status, err
}

func (s *HTTPSource) ChangeEvents(ctx context.Context, since int64) ([]domain.ChangeEvent, error) {
	var events []domain.ChangeEvent
	err := s.getJSON(ctx, s.baseURL+"/change-events?since="+strconv.FormatInt(since, 10), &events)
	return events, err
}

func (s *HTTPSource) getJSON(ctx context.Context, target string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w: %w", req.URL.Path, domain.ErrNetworkTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("GET %s: %w", req.URL.Path, domain.ErrNoContent)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("GET %s: status %d: %w", req.URL.Path, resp.StatusCode, domain.ErrNetworkTransient)
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("GET %s: unexpected status %d", req.URL.Path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w: %w", req.URL.Path, domain.ErrNetworkTransient, err)
	}
	return nil
}
