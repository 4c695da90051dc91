// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no record exists for the given id.
var ErrNotFound = errors.New("docstore: record not found")

// Patch is a set of fields to overwrite on a record, keyed by the
// record's JSON field names.
type Patch map[string]any

// Store is the host document store boundary.
//
// CreateOrReplace and Patch are idempotent upserts keyed by document id:
// a retried call never creates duplicates. Subscribe delivers record
// snapshots on every write; a nil snapshot signals deletion. The
// returned stop function releases the subscription and is safe to call
// more than once.
type Store interface {
	CreateOrReplace(ctx context.Context, rec *AssetRecord) error
	Patch(ctx context.Context, documentID string, fields Patch) error
	Get(ctx context.Context, documentID string) (*AssetRecord, error)
	Delete(ctx context.Context, documentID string) error
	Subscribe(ctx context.Context, documentID string) (<-chan *AssetRecord, func(), error)
}

// applyPatch overlays fields onto a record via its JSON form, so patch
// keys match the wire field names regardless of store backend.
func applyPatch(rec *AssetRecord, fields Patch) (*AssetRecord, error) {
	base, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("docstore: marshal record: %w", err)
	}

	var merged map[string]any
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, fmt.Errorf("docstore: unmarshal record: %w", err)
	}
	for k, v := range fields {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}

	out, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("docstore: marshal patched record: %w", err)
	}

	var patched AssetRecord
	if err := json.Unmarshal(out, &patched); err != nil {
		return nil, fmt.Errorf("docstore: apply patch: %w", err)
	}
	return &patched, nil
}
