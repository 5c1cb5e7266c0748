// Package abuseipdb queries the AbuseIPDB v2 check endpoint.
package abuseipdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ahrav/aura-radar/internal/application/reputation"
	"github.com/ahrav/aura-radar/internal/domain/threat"
)

// Defaults for the public API.
const (
	DefaultBaseURL = "https://api.abuseipdb.com/api/v2"
	DefaultTimeout = 6 * time.Second
	maxAgeInDays   = "90"
	maxBodyBytes   = 1 << 20
)

var _ reputation.Lookup = (*Client)(nil)

// Client performs reputation checks with an API key.
type Client struct {
	baseURL string
	key     string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another endpoint.
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

// WithHTTPClient replaces the traced default client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// NewClient creates a client. The default transport is instrumented with otelhttp.
func NewClient(key string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		key:     key,
		http: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type checkResponse struct {
	Data *struct {
		AbuseConfidenceScore *int `json:"abuseConfidenceScore"`
	} `json:"data"`
}

// Check returns the abuse confidence score, 0 to 100, for address.
func (c *Client) Check(ctx context.Context, address string) (int, error) {
	q := url.Values{}
	q.Set("ipAddress", address)
	q.Set("maxAgeInDays", maxAgeInDays)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/check?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Key", c.key)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("abuseipdb check: %w", errors.Join(threat.ErrTransientIO, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return 0, fmt.Errorf("abuseipdb check: %w: status %d", threat.ErrTransientIO, resp.StatusCode)
	}

	var body checkResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return 0, fmt.Errorf("abuseipdb decode: %w", errors.Join(threat.ErrMalformedInput, err))
	}
	if body.Data == nil || body.Data.AbuseConfidenceScore == nil {
		return 0, fmt.Errorf("abuseipdb decode: %w: missing abuseConfidenceScore", threat.ErrMalformedInput)
	}

	return min(100, max(0, *body.Data.AbuseConfidenceScore)), nil
}
