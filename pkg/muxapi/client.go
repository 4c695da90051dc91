// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

// Package muxapi is the HTTP client for the remote video-processing
// service. Every call carries an explicit per-request timeout, and
// transient failures (network errors, 429, 5xx) are retried with
// exponential backoff up to a bounded attempt count. Creation calls are
// safe to retry because they carry the caller's idempotency key.
package muxapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/logger"

	"github.com/cenkalti/backoff/v4"
)

const idempotencyHeader = "Idempotency-Key"

// ErrNotFound is returned when the remote service reports 404 for an
// asset or upload lookup.
var ErrNotFound = errors.New("muxapi: not found")

// APIError is a non-success response from the remote service.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("muxapi: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Config configures the client.
type Config struct {
	BaseURL string

	// Credentials returns the current token/secret pair on every call,
	// so a secrets save takes effect without rebuilding the client.
	Credentials func() (token, secret string)

	// RequestTimeout bounds each individual HTTP request.
	RequestTimeout time.Duration

	// MaxRetries bounds transient-failure retries per call.
	MaxRetries int

	// HTTPClient is shared across calls for connection reuse.
	HTTPClient *http.Client
}

// Client talks to the remote video service.
type Client struct {
	baseURL     string
	credentials func() (string, string)
	timeout     time.Duration
	maxRetries  int
	httpClient  *http.Client
}

// New creates a client, applying defaults for anything unset.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.mux.com"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	if cfg.Credentials == nil {
		cfg.Credentials = func() (string, string) { return "", "" }
	}

	return &Client{
		baseURL:     cfg.BaseURL,
		credentials: cfg.Credentials,
		timeout:     cfg.RequestTimeout,
		maxRetries:  cfg.MaxRetries,
		httpClient:  cfg.HTTPClient,
	}
}

// TestCredentials performs the read-only credential check. Any network
// failure, non-success response, or explicit status:false reports false.
func (c *Client) TestCredentials(ctx context.Context) (bool, error) {
	var resp credentialsTestResponse
	if err := c.do(ctx, http.MethodGet, "/video/v1/credentials/test", nil, &resp, ""); err != nil {
		return false, err
	}
	return resp.Status, nil
}

// CreateAssetFromURL creates a ready-to-process asset directly from a
// source URL. The idempotency key makes retried initiations safe.
func (c *Client) CreateAssetFromURL(ctx context.Context, sourceURL string, settings AssetSettings, idempotencyKey string) (*Asset, error) {
	if len(settings.Input) == 0 {
		settings.Input = []InputSettings{{URL: sourceURL}}
	} else {
		// The caller may reuse its settings value; never write through
		// its slice.
		input := make([]InputSettings, len(settings.Input))
		copy(input, settings.Input)
		input[0].URL = sourceURL
		settings.Input = input
	}

	var asset Asset
	if err := c.do(ctx, http.MethodPost, "/video/v1/assets", settings, &asset, idempotencyKey); err != nil {
		return nil, err
	}
	return &asset, nil
}

// CreateUpload creates an upload target for the file case. The returned
// URL is the byte-transfer destination for the chunked engine.
func (c *Client) CreateUpload(ctx context.Context, settings AssetSettings, idempotencyKey string) (*Upload, error) {
	req := createUploadRequest{NewAssetSettings: settings, CORSOrigin: "*"}

	var upload Upload
	if err := c.do(ctx, http.MethodPost, "/video/v1/uploads", req, &upload, idempotencyKey); err != nil {
		return nil, err
	}
	return &upload, nil
}

// GetUpload fetches the current state of an upload target.
func (c *Client) GetUpload(ctx context.Context, uploadID string) (*Upload, error) {
	var upload Upload
	if err := c.do(ctx, http.MethodGet, "/video/v1/uploads/"+uploadID, nil, &upload, ""); err != nil {
		return nil, err
	}
	return &upload, nil
}

// CancelUpload cancels an unfinished upload target.
func (c *Client) CancelUpload(ctx context.Context, uploadID string) error {
	return c.do(ctx, http.MethodPut, "/video/v1/uploads/"+uploadID+"/cancel", nil, nil, "")
}

// GetAsset fetches the full asset payload. Asset.Raw preserves the
// undecoded body for durable storage.
func (c *Client) GetAsset(ctx context.Context, assetID string) (*Asset, error) {
	var asset Asset
	if err := c.do(ctx, http.MethodGet, "/video/v1/assets/"+assetID, nil, &asset, ""); err != nil {
		return nil, err
	}
	return &asset, nil
}

// DeleteAsset removes an asset from the remote service.
func (c *Client) DeleteAsset(ctx context.Context, assetID string) error {
	return c.do(ctx, http.MethodDelete, "/video/v1/assets/"+assetID, nil, nil, "")
}

// CreateSigningKey provisions a key pair for signed playback URLs.
func (c *Client) CreateSigningKey(ctx context.Context) (*SigningKey, error) {
	var key SigningKey
	if err := c.do(ctx, http.MethodPost, "/video/v1/signing-keys", nil, &key, ""); err != nil {
		return nil, err
	}
	return &key, nil
}

// do performs one logical API call: marshal, authenticate, send with a
// per-request timeout, retry transient failures, decode the data envelope.
func (c *Client) do(ctx context.Context, method, path string, body, out any, idempotencyKey string) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	operation := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, reader)
		if err != nil {
			return backoff.Permanent(err)
		}

		token, secret := c.credentials()
		req.SetBasicAuth(token, secret)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if idempotencyKey != "" {
			req.Header.Set(idempotencyHeader, idempotencyKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Network-level failure: retryable unless the caller gave up.
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if out == nil {
				return nil
			}
			var env envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				return backoff.Permanent(fmt.Errorf("decode response: %w", err))
			}
			data := env.Data
			if data == nil {
				data = raw
			}
			if err := json.Unmarshal(data, out); err != nil {
				return backoff.Permanent(fmt.Errorf("decode response: %w", err))
			}
			if asset, ok := out.(*Asset); ok {
				asset.Raw = data
			}
			return nil

		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(ErrNotFound)

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return &APIError{StatusCode: resp.StatusCode, Method: method, Path: path, Body: string(raw)}

		default:
			return backoff.Permanent(&APIError{StatusCode: resp.StatusCode, Method: method, Path: path, Body: string(raw)})
		}
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)),
		ctx,
	)

	notify := func(err error, next time.Duration) {
		logger.Ctx(ctx).Warn().
			Err(err).
			Str("method", method).
			Str("path", path).
			Dur("retry_in", next).
			Msg("remote call failed, retrying")
	}

	return backoff.RetryNotify(operation, policy, notify)
}
