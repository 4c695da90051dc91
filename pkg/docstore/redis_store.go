// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix     = "muxinput:asset:"
	redisChannelPrefix = "muxinput:asset:events:"

	// patchRetries bounds optimistic-transaction retries under
	// concurrent writers.
	patchRetries = 5
)

// RedisStore persists asset records in Redis and implements
// Subscribe via pub/sub, so readiness-status consumers in other
// processes see the same live query.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a store over an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func recordKey(documentID string) string { return redisKeyPrefix + documentID }

func eventChannel(documentID string) string { return redisChannelPrefix + documentID }

func (r *RedisStore) CreateOrReplace(ctx context.Context, rec *AssetRecord) error {
	clone := *rec
	clone.UpdatedAt = time.Now().UnixMilli()

	data, err := json.Marshal(&clone)
	if err != nil {
		return fmt.Errorf("docstore: marshal record: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, recordKey(clone.DocumentID), data, 0)
	pipe.Publish(ctx, eventChannel(clone.DocumentID), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("docstore: write record: %w", err)
	}
	return nil
}

func (r *RedisStore) Patch(ctx context.Context, documentID string, fields Patch) error {
	key := recordKey(documentID)

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var rec AssetRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("docstore: decode record: %w", err)
		}

		patched, err := applyPatch(&rec, fields)
		if err != nil {
			return err
		}
		patched.UpdatedAt = time.Now().UnixMilli()

		data, err := json.Marshal(patched)
		if err != nil {
			return fmt.Errorf("docstore: marshal patched record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.Publish(ctx, eventChannel(documentID), data)
			return nil
		})
		return err
	}

	for i := 0; i < patchRetries; i++ {
		err := r.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("docstore: patch contention on %s", documentID)
}

func (r *RedisStore) Get(ctx context.Context, documentID string) (*AssetRecord, error) {
	raw, err := r.client.Get(ctx, recordKey(documentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: read record: %w", err)
	}

	var rec AssetRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("docstore: decode record: %w", err)
	}
	return &rec, nil
}

func (r *RedisStore) Delete(ctx context.Context, documentID string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, recordKey(documentID))
	pipe.Publish(ctx, eventChannel(documentID), []byte("null"))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("docstore: delete record: %w", err)
	}
	return nil
}

func (r *RedisStore) Subscribe(ctx context.Context, documentID string) (<-chan *AssetRecord, func(), error) {
	pubsub := r.client.Subscribe(ctx, eventChannel(documentID))

	// Force the subscription to be established before returning, so a
	// write immediately after Subscribe is not missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("docstore: subscribe: %w", err)
	}

	out := make(chan *AssetRecord, 8)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var rec *AssetRecord
			if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
				logger.Ctx(ctx).Warn().Err(err).Str("document_id", documentID).Msg("bad record event payload")
				continue
			}
			select {
			case out <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			pubsub.Close()
		})
	}

	return out, stop, nil
}
