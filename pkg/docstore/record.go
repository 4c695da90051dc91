// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

// Package docstore is the boundary to the host document store. The
// pipeline only knows create-or-replace, patch, delete and a
// subscribe-by-id live query; how records are persisted is the store's
// business.
package docstore

import "encoding/json"

// AssetStatus is the lifecycle status of a durable asset record.
type AssetStatus string

const (
	StatusWaitingForUpload AssetStatus = "waiting_for_upload"
	StatusWaiting          AssetStatus = "waiting"
	StatusPreparing        AssetStatus = "preparing"
	StatusReady            AssetStatus = "ready"
	StatusErrored          AssetStatus = "errored"
)

// AssetRecord is the durable result of an upload session.
//
// PlaybackID is only meaningful once Status reaches ready; consumers
// must treat preparing/waiting* as not yet playable regardless of
// whether a playback id is present.
type AssetRecord struct {
	DocumentID    string          `json:"document_id"`
	RemoteAssetID string          `json:"remote_asset_id,omitempty"`
	PlaybackID    string          `json:"playback_id,omitempty"`
	Status        AssetStatus     `json:"status"`
	RawMetadata   json.RawMessage `json:"raw_metadata,omitempty"`
	ThumbTime     float64         `json:"thumb_time,omitempty"`
	Filename      string          `json:"filename,omitempty"`
	UpdatedAt     int64           `json:"updated_at,omitempty"`
}

// Playable reports whether the record's playback id can be used.
func (r *AssetRecord) Playable() bool {
	return r != nil && r.Status == StatusReady && r.PlaybackID != ""
}
