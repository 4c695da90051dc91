// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/docstore"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/muxapi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterializerPlaceholderThenFinalize(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := docstore.NewMemoryStore()
	m := NewMaterializer(store)

	require.NoError(t, m.Placeholder(ctx, "doc-1", "clip.mp4"))

	rec, err := store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, docstore.StatusWaiting, rec.Status)
	assert.Equal(t, "clip.mp4", rec.Filename)
	assert.False(t, rec.Playable())

	asset := &muxapi.Asset{
		ID:          "asset-1",
		Status:      muxapi.AssetStatusReady,
		PlaybackIDs: []muxapi.PlaybackID{{ID: "pb-1", Policy: muxapi.PolicySigned}},
		Raw:         json.RawMessage(`{"id":"asset-1","status":"ready","extra":true}`),
	}
	require.NoError(t, m.Finalize(ctx, "doc-1", asset))

	rec, err = store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, docstore.StatusReady, rec.Status)
	assert.Equal(t, "asset-1", rec.RemoteAssetID)
	assert.Equal(t, "pb-1", rec.PlaybackID)
	assert.JSONEq(t, string(asset.Raw), string(rec.RawMetadata))
}

func TestMaterializerFinalizeWithoutRawPayload(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := docstore.NewMemoryStore()
	m := NewMaterializer(store)

	require.NoError(t, m.Finalize(ctx, "doc-1", &muxapi.Asset{
		ID:     "asset-1",
		Status: muxapi.AssetStatusPreparing,
	}))

	rec, err := store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, docstore.StatusPreparing, rec.Status)
	assert.NotEmpty(t, rec.RawMetadata)
}

func TestMaterializerRefresh(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := docstore.NewMemoryStore()
	m := NewMaterializer(store)

	require.NoError(t, m.Finalize(ctx, "doc-1", &muxapi.Asset{
		ID:          "asset-1",
		Status:      muxapi.AssetStatusPreparing,
		PlaybackIDs: []muxapi.PlaybackID{{ID: "pb-1", Policy: muxapi.PolicyPublic}},
	}))

	require.NoError(t, m.Refresh(ctx, "doc-1", &muxapi.Asset{
		ID:     "asset-1",
		Status: muxapi.AssetStatusReady,
		Raw:    json.RawMessage(`{"id":"asset-1","status":"ready"}`),
	}))

	rec, err := store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, docstore.StatusReady, rec.Status)
	assert.Equal(t, "pb-1", rec.PlaybackID, "refresh keeps the playback id")
}

func TestMaterializerPatches(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := docstore.NewMemoryStore()
	m := NewMaterializer(store)

	require.NoError(t, m.Placeholder(ctx, "doc-1", "clip.mp4"))
	require.NoError(t, m.PatchThumbTime(ctx, "doc-1", 4.5))
	require.NoError(t, m.PatchFilename(ctx, "doc-1", "renamed.mp4"))

	rec, err := store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 4.5, rec.ThumbTime)
	assert.Equal(t, "renamed.mp4", rec.Filename)

	require.NoError(t, m.Remove(ctx, "doc-1"))
	_, err = store.Get(ctx, "doc-1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestStatusFromAsset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		remote   string
		expected docstore.AssetStatus
	}{
		{muxapi.AssetStatusReady, docstore.StatusReady},
		{muxapi.AssetStatusErrored, docstore.StatusErrored},
		{muxapi.AssetStatusPreparing, docstore.StatusPreparing},
		{"something_new", docstore.StatusWaiting},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, statusFromAsset(&muxapi.Asset{Status: tt.remote}), tt.remote)
	}
}
