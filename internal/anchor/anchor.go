// Package anchor submits content hashes to an external tamper-evidence service.
package anchor

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	ErrInvalidHash = errors.New("anchor: hash must be 64 hex characters")
	ErrRejected    = errors.New("anchor: request rejected")
	ErrDisabled    = errors.New("anchor: disabled")
)

// Anchorer records a SHA-256 hex digest and returns the service's reference for it.
type Anchorer interface {
	Anchor(ctx context.Context, hashHex string) (string, error)
}

// ValidateHash checks that h is a lowercase or uppercase 64-character hex string.
func ValidateHash(h string) error {
	if len(h) != 64 {
		return ErrInvalidHash
	}
	if _, err := hex.DecodeString(h); err != nil {
		return ErrInvalidHash
	}
	return nil
}

// Noop is used when no anchor endpoint is configured.
type Noop struct{}

func (Noop) Anchor(_ context.Context, hashHex string) (string, error) {
	if err := ValidateHash(hashHex); err != nil {
		return "", err
	}
	return "", ErrDisabled
}

// HTTPAnchorer posts {"hash": "..."} to an endpoint and expects {"ref": "..."}.
type HTTPAnchorer struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTP returns an HTTPAnchorer with the given per-request timeout.
// Outbound calls carry the caller's trace context.
func NewHTTP(endpoint, apiKey string, timeout time.Duration) *HTTPAnchorer {
	return &HTTPAnchorer{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(&http.Transport{MaxIdleConnsPerHost: 4}),
		},
	}
}

type anchorRequest struct {
	Hash string `json:"hash"`
}

type anchorResponse struct {
	Ref string `json:"ref"`
}

func (a *HTTPAnchorer) Anchor(ctx context.Context, hashHex string) (string, error) {
	if err := ValidateHash(hashHex); err != nil {
		return "", err
	}

	body, err := json.Marshal(anchorRequest{Hash: strings.ToLower(hashHex)})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("anchor: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("anchor: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	var out anchorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&out); err != nil {
		return "", fmt.Errorf("anchor: decode response: %w", err)
	}
	if out.Ref == "" {
		return "", fmt.Errorf("%w: empty reference", ErrRejected)
	}
	return out.Ref, nil
}
