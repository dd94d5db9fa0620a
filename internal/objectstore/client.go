// Package objectstore is a thin client for the Supabase Storage bucket that
// holds rendered audio bytes. The object store itself is an external
// persistence substrate (spec Non-goals); this package only wraps its HTTP
// contract — upload, download, and signed-URL issuance — so the
// generator and mastering stages never construct storage requests inline.
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a Supabase Storage bucket over its REST API.
type Client struct {
	baseURL    string // e.g. https://xyzcompany.supabase.co
	bucket     string
	apiKey     string
	httpClient *http.Client
	signedTTL  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client (e.g. for test doubles).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// New builds a Client against the given Supabase project URL and bucket
// name. signedTTL is the default lifetime for URLs returned by SignedURL,
// sourced from MERIDIAN_SIGNED_URL_TTL_SECONDS (§6).
func New(baseURL, bucket, apiKey string, signedTTL time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		bucket:     bucket,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		signedTTL:  signedTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Put uploads data to path within the bucket, overwriting any existing
// object (the generator/mastering stages never reuse a path across distinct
// content — asset deduplication happens by content hash at the store layer,
// §4.4.5 — so upserting here is safe).
func (c *Client) Put(ctx context.Context, path string, data []byte, contentType string) error {
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, strings.TrimPrefix(path, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("objectstore: put: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("objectstore: put: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("objectstore: put: status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// signResponse is the payload returned by Supabase's object-sign endpoint.
type signResponse struct {
	SignedURL string `json:"signedURL"`
}

// SignedURL returns a time-limited URL for path, good for ttl (or the
// client's configured default if ttl == 0). Ready segments are handed to
// the broadcaster this way rather than as permanent paths, per §9's
// signed-URLs-over-direct-access rationale.
func (c *Client) SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = c.signedTTL
	}
	endpoint := fmt.Sprintf("%s/storage/v1/object/sign/%s/%s", c.baseURL, c.bucket, strings.TrimPrefix(path, "/"))
	body, err := json.Marshal(map[string]int{"expiresIn": int(ttl.Seconds())})
	if err != nil {
		return "", fmt.Errorf("objectstore: signed url: marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("objectstore: signed url: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("objectstore: signed url: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("objectstore: signed url: status %d: %s", resp.StatusCode, string(b))
	}

	var sr signResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("objectstore: signed url: decode: %w", err)
	}

	u, err := url.Parse(c.baseURL + "/storage/v1" + sr.SignedURL)
	if err != nil {
		return "", fmt.Errorf("objectstore: signed url: parse: %w", err)
	}
	return u.String(), nil
}

// Get downloads the raw bytes at path, used by the mastering worker to
// fetch a segment's raw audio asset for normalization.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, strings.TrimPrefix(path, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("objectstore: get: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("objectstore: get: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("objectstore: get: status %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}
