// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

package docstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client)
}

func TestRedisStoreCRUD(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := testRedisStore(t)

	_, err := store.Get(ctx, "doc-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.CreateOrReplace(ctx, &AssetRecord{
		DocumentID: "doc-1",
		Status:     StatusWaiting,
		Filename:   "clip.mp4",
	}))

	rec, err := store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, rec.Status)
	assert.Equal(t, "clip.mp4", rec.Filename)
	assert.NotZero(t, rec.UpdatedAt)

	require.NoError(t, store.CreateOrReplace(ctx, &AssetRecord{
		DocumentID: "doc-1",
		Status:     StatusReady,
		PlaybackID: "pb-1",
	}))

	rec, err = store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, StatusReady, rec.Status)
	assert.Empty(t, rec.Filename)

	require.NoError(t, store.Delete(ctx, "doc-1"))
	_, err = store.Get(ctx, "doc-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStorePatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := testRedisStore(t)

	assert.ErrorIs(t, store.Patch(ctx, "doc-1", Patch{"thumb_time": 1.0}), ErrNotFound)

	require.NoError(t, store.CreateOrReplace(ctx, &AssetRecord{
		DocumentID: "doc-1",
		Status:     StatusReady,
		PlaybackID: "pb-1",
	}))

	require.NoError(t, store.Patch(ctx, "doc-1", Patch{"thumb_time": 3.25}))

	rec, err := store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 3.25, rec.ThumbTime)
	assert.Equal(t, "pb-1", rec.PlaybackID)
}

func TestRedisStoreSubscribe(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := testRedisStore(t)

	ch, stop, err := store.Subscribe(ctx, "doc-1")
	require.NoError(t, err)
	defer stop()

	require.NoError(t, store.CreateOrReplace(ctx, &AssetRecord{
		DocumentID: "doc-1",
		Status:     StatusPreparing,
	}))
	rec := waitForRecord(t, ch)
	require.NotNil(t, rec)
	assert.Equal(t, StatusPreparing, rec.Status)

	require.NoError(t, store.Delete(ctx, "doc-1"))
	assert.Nil(t, waitForRecord(t, ch))

	stop()
	stop()
}
