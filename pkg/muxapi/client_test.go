// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

package muxapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(Config{
		BaseURL:        srv.URL,
		RequestTimeout: 5 * time.Second,
		MaxRetries:     3,
		Credentials:    func() (string, string) { return "tok", "sec" },
	})
}

func TestTestCredentials(t *testing.T) {
	t.Parallel()

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/video/v1/credentials/test", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "tok", user)
		assert.Equal(t, "sec", pass)
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"status": true}})
	}))

	ok, err := client.TestCredentials(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateAssetFromURLSendsIdempotencyKey(t *testing.T) {
	t.Parallel()

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/video/v1/assets", r.URL.Path)
		assert.Equal(t, "session-1", r.Header.Get("Idempotency-Key"))

		var body AssetSettings
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Input, 1)
		assert.Equal(t, "https://example.com/a.mp4", body.Input[0].URL)

		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"id":     "asset-1",
			"status": "preparing",
		}})
	}))

	asset, err := client.CreateAssetFromURL(context.Background(), "https://example.com/a.mp4", AssetSettings{}, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "asset-1", asset.ID)
	assert.Equal(t, AssetStatusPreparing, asset.Status)
}

func TestCreateAssetFromURLLeavesCallerSettingsUntouched(t *testing.T) {
	t.Parallel()

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": "asset-1", "status": "preparing"}})
	}))

	settings := AssetSettings{
		Input: []InputSettings{{OverlaySettings: &OverlaySettings{Width: "38px"}}},
	}

	_, err := client.CreateAssetFromURL(context.Background(), "https://example.com/a.mp4", settings, "session-1")
	require.NoError(t, err)

	// The caller's settings value can be shared across sessions; the
	// source URL must not leak back into it.
	assert.Empty(t, settings.Input[0].URL)
	assert.Equal(t, "38px", settings.Input[0].OverlaySettings.Width)
}

func TestRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": "upload-1", "status": "waiting"}})
	}))

	upload, err := client.GetUpload(context.Background(), "upload-1")
	require.NoError(t, err)
	assert.Equal(t, "upload-1", upload.ID)
	assert.Equal(t, int64(3), calls.Load())
}

func TestClientErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":{"messages":["bad input"]}}`))
	}))

	_, err := client.CreateUpload(context.Background(), AssetSettings{}, "session-1")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, int64(1), calls.Load())
}

func TestGetAssetNotFound(t *testing.T) {
	t.Parallel()

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetAsset(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetAssetPreservesRawPayload(t *testing.T) {
	t.Parallel()

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"id":"asset-1","status":"ready","playback_ids":[{"id":"pb-1","policy":"signed"}],"unmodeled_field":42}}`))
	}))

	asset, err := client.GetAsset(context.Background(), "asset-1")
	require.NoError(t, err)
	assert.Equal(t, "asset-1", asset.ID)
	require.NotNil(t, asset.FirstPlaybackID())
	assert.Equal(t, "pb-1", asset.FirstPlaybackID().ID)
	assert.True(t, asset.SignedPlayback())

	// Fields the client does not model survive in Raw.
	assert.Contains(t, string(asset.Raw), "unmodeled_field")
}

func TestCreateUploadSendsCORSOrigin(t *testing.T) {
	t.Parallel()

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "*", body["cors_origin"])
		assert.Contains(t, body, "new_asset_settings")

		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"id":     "upload-1",
			"url":    "https://storage.example.com/put-here",
			"status": "waiting",
		}})
	}))

	upload, err := client.CreateUpload(context.Background(), AssetSettings{}, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "https://storage.example.com/put-here", upload.URL)
}

func TestCancelUpload(t *testing.T) {
	t.Parallel()

	var gotPath atomic.Value
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		gotPath.Store(r.URL.Path)
		w.Write([]byte(`{"data":{}}`))
	}))

	require.NoError(t, client.CancelUpload(context.Background(), "upload-1"))
	assert.Equal(t, "/video/v1/uploads/upload-1/cancel", gotPath.Load())
}

func TestCreateSigningKey(t *testing.T) {
	t.Parallel()

	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/video/v1/signing-keys", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"id":          "key-1",
			"private_key": "cHJpdmF0ZQ==",
		}})
	}))

	key, err := client.CreateSigningKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "key-1", key.ID)
	assert.Equal(t, "cHJpdmF0ZQ==", key.PrivateKey)
}
