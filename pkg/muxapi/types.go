// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

package muxapi

import "encoding/json"

// Playback policies reported on playback ids.
const (
	PolicyPublic = "public"
	PolicySigned = "signed"
	PolicyDRM    = "drm"
)

// Asset statuses reported by the remote service.
const (
	AssetStatusPreparing = "preparing"
	AssetStatusReady     = "ready"
	AssetStatusErrored   = "errored"
)

// Upload statuses reported by the remote service.
const (
	UploadStatusWaiting      = "waiting"
	UploadStatusAssetCreated = "asset_created"
	UploadStatusErrored      = "errored"
	UploadStatusCancelled    = "cancelled"
	UploadStatusTimedOut     = "timed_out"
)

// PlaybackID identifies one playback surface of an asset together with
// its access policy.
type PlaybackID struct {
	ID     string `json:"id"`
	Policy string `json:"policy"`
}

// Track is a single media track of an asset.
type Track struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	Duration     float64 `json:"duration,omitempty"`
	MaxWidth     int64   `json:"max_width,omitempty"`
	MaxHeight    int64   `json:"max_height,omitempty"`
	MaxFrameRate float64 `json:"max_frame_rate,omitempty"`
}

// StaticRendition is one downloadable rendition of an asset.
type StaticRendition struct {
	Name   string `json:"name"`
	Ext    string `json:"ext"`
	Status string `json:"status,omitempty"`
}

// StaticRenditions groups the static rendition sub-status of an asset.
type StaticRenditions struct {
	Status string            `json:"status"`
	Files  []StaticRendition `json:"files,omitempty"`
}

// Master is the optional master-access download of an asset.
type Master struct {
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
}

// AssetError carries remote-side processing errors.
type AssetError struct {
	Type     string   `json:"type"`
	Messages []string `json:"messages,omitempty"`
}

// Asset is the full asset payload from the remote service.
type Asset struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	PlaybackIDs      []PlaybackID      `json:"playback_ids,omitempty"`
	Tracks           []Track           `json:"tracks,omitempty"`
	StaticRenditions *StaticRenditions `json:"static_renditions,omitempty"`
	Master           *Master           `json:"master,omitempty"`
	Errors           *AssetError       `json:"errors,omitempty"`
	Passthrough      string            `json:"passthrough,omitempty"`
	Duration         float64           `json:"duration,omitempty"`
	AspectRatio      string            `json:"aspect_ratio,omitempty"`
	CreatedAt        string            `json:"created_at,omitempty"`

	// Raw is the undecoded payload, preserved so callers can persist
	// fields this client does not model.
	Raw json.RawMessage `json:"-"`
}

// FirstPlaybackID returns the first playback id of the asset, or nil.
func (a *Asset) FirstPlaybackID() *PlaybackID {
	if a == nil || len(a.PlaybackIDs) == 0 {
		return nil
	}
	return &a.PlaybackIDs[0]
}

// SignedPlayback reports whether any playback id requires a signed token.
func (a *Asset) SignedPlayback() bool {
	for _, p := range a.PlaybackIDs {
		if p.Policy == PolicySigned || p.Policy == PolicyDRM {
			return true
		}
	}
	return false
}

// Upload is an upload target created for the file case: the engine PUTs
// bytes to URL and the poller watches for AssetID to appear.
type Upload struct {
	ID      string `json:"id"`
	URL     string `json:"url,omitempty"`
	AssetID string `json:"asset_id,omitempty"`
	Status  string `json:"status"`
	Timeout int64  `json:"timeout,omitempty"`
}

// SigningKey is a key pair provisioned for signed playback URLs.
// PrivateKey is base64-encoded PEM, exactly as the service returns it.
type SigningKey struct {
	ID         string `json:"id"`
	PrivateKey string `json:"private_key"`
}

// OverlaySettings positions a watermark overlay on the transcoded video.
// Margin/width/height values are dimension strings such as "10px" or "5%";
// they must pass through staging sanitization before reaching the wire.
type OverlaySettings struct {
	VerticalAlign    string `json:"vertical_align,omitempty"`
	VerticalMargin   string `json:"vertical_margin,omitempty"`
	HorizontalAlign  string `json:"horizontal_align,omitempty"`
	HorizontalMargin string `json:"horizontal_margin,omitempty"`
	Width            string `json:"width,omitempty"`
	Height           string `json:"height,omitempty"`
	Opacity          string `json:"opacity,omitempty"`
	URL              string `json:"url,omitempty"`
}

// InputSettings is one input of a new asset.
type InputSettings struct {
	URL             string           `json:"url,omitempty"`
	OverlaySettings *OverlaySettings `json:"overlay_settings,omitempty"`
}

// AssetSettings are the transcoding options sent with asset/upload creation.
type AssetSettings struct {
	Input             []InputSettings `json:"input,omitempty"`
	PlaybackPolicies  []string        `json:"playback_policy,omitempty"`
	MP4Support        string          `json:"mp4_support,omitempty"`
	MaxResolutionTier string          `json:"max_resolution_tier,omitempty"`
	NormalizeAudio    bool            `json:"normalize_audio,omitempty"`
	Passthrough       string          `json:"passthrough,omitempty"`
	VideoQuality      string          `json:"video_quality,omitempty"`
}

type createUploadRequest struct {
	NewAssetSettings AssetSettings `json:"new_asset_settings"`
	CORSOrigin       string        `json:"cors_origin,omitempty"`
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

type credentialsTestResponse struct {
	Status bool `json:"status"`
}
