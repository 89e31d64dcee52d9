package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPHost publishes change requests against a generic HTTP endpoint.
// The endpoint accepts POST <baseURL>/change-requests with a JSON
// ChangeRequest body and responds with {"url": "..."}.
type HTTPHost struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPHost creates a host client for the given base URL. The token
// is sent as a bearer credential when non-empty.
func NewHTTPHost(baseURL, token string) *HTTPHost {
	return &HTTPHost{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateChangeRequest opens a change request and returns its URL.
func (h *HTTPHost) CreateChangeRequest(ctx context.Context, req ChangeRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encoding change request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/change-requests", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("posting change request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("create change request for %s: %w", req.Branch, ErrAuthFailed)
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("create change request for %s: %w", req.Branch, ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("create change request for %s: %w", req.Branch, ErrRateLimited)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", fmt.Errorf("create change request for %s: unexpected status %d", req.Branch, resp.StatusCode)
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding change request response: %w", err)
	}
	if result.URL == "" {
		return "", fmt.Errorf("change request response missing url")
	}
	return result.URL, nil
}
