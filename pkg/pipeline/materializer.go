// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/docstore"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/muxapi"
)

// Materializer writes the durable asset record. All writes are
// idempotent upserts keyed by the same document id, so a retried call
// never creates duplicates.
type Materializer struct {
	store docstore.Store
}

// NewMaterializer creates a materializer over the host document store.
func NewMaterializer(store docstore.Store) *Materializer {
	return &Materializer{store: store}
}

// Placeholder writes the minimal record created on initiator success in
// the file case, so the UI has something to reference before the remote
// asset id exists.
func (m *Materializer) Placeholder(ctx context.Context, documentID, filename string) error {
	return m.store.CreateOrReplace(ctx, &docstore.AssetRecord{
		DocumentID: documentID,
		Status:     docstore.StatusWaiting,
		Filename:   filename,
	})
}

// Finalize replaces the record with the resolved asset: remote id, first
// playback id, status and the raw remote payload.
func (m *Materializer) Finalize(ctx context.Context, documentID string, asset *muxapi.Asset) error {
	raw := asset.Raw
	if raw == nil {
		encoded, err := json.Marshal(asset)
		if err != nil {
			return fmt.Errorf("pipeline: encode asset metadata: %w", err)
		}
		raw = encoded
	}

	rec := &docstore.AssetRecord{
		DocumentID:    documentID,
		RemoteAssetID: asset.ID,
		Status:        statusFromAsset(asset),
		RawMetadata:   raw,
	}
	if p := asset.FirstPlaybackID(); p != nil {
		rec.PlaybackID = p.ID
	}

	return m.store.CreateOrReplace(ctx, rec)
}

// Refresh patches status and raw metadata from a newer asset payload.
func (m *Materializer) Refresh(ctx context.Context, documentID string, asset *muxapi.Asset) error {
	fields := docstore.Patch{
		"status": string(statusFromAsset(asset)),
	}
	if asset.Raw != nil {
		fields["raw_metadata"] = json.RawMessage(asset.Raw)
	}
	return m.store.Patch(ctx, documentID, fields)
}

// PatchThumbTime sets the user-adjustable poster frame time.
func (m *Materializer) PatchThumbTime(ctx context.Context, documentID string, seconds float64) error {
	return m.store.Patch(ctx, documentID, docstore.Patch{"thumb_time": seconds})
}

// PatchFilename sets the user-visible filename.
func (m *Materializer) PatchFilename(ctx context.Context, documentID, filename string) error {
	return m.store.Patch(ctx, documentID, docstore.Patch{"filename": filename})
}

// Remove deletes the record.
func (m *Materializer) Remove(ctx context.Context, documentID string) error {
	return m.store.Delete(ctx, documentID)
}

func statusFromAsset(asset *muxapi.Asset) docstore.AssetStatus {
	switch asset.Status {
	case muxapi.AssetStatusReady:
		return docstore.StatusReady
	case muxapi.AssetStatusErrored:
		return docstore.StatusErrored
	case muxapi.AssetStatusPreparing:
		return docstore.StatusPreparing
	default:
		return docstore.StatusWaiting
	}
}
