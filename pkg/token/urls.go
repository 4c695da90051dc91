// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

package token

import (
	"fmt"
	"net/url"
)

// KeyPair is the signing key configuration used for signed policies.
// A zero KeyPair means no key is configured.
type KeyPair struct {
	ID         string
	PrivateKey string
}

func (k KeyPair) empty() bool {
	return k.ID == "" || k.PrivateKey == ""
}

// Builder constructs playback and image URLs for a playback id. When the
// asset's policy is signed or drm the query string is replaced entirely
// by a single token parameter; otherwise the raw params pass through.
type Builder struct {
	ImageBaseURL  string
	StreamBaseURL string
	Key           KeyPair
}

// NewBuilder creates a Builder with the default public hosts.
func NewBuilder(key KeyPair) Builder {
	return Builder{
		ImageBaseURL:  "https://image.mux.com",
		StreamBaseURL: "https://stream.mux.com",
		Key:           key,
	}
}

// signedPolicy reports whether the policy requires a token.
func signedPolicy(policy string) bool {
	return policy == "signed" || policy == "drm"
}

// ThumbnailURL builds the still-thumbnail URL.
func (b Builder) ThumbnailURL(playbackID, policy string, params Params) (string, error) {
	return b.imageURL(playbackID, policy, "thumbnail.png", AudienceThumbnail, params)
}

// AnimatedThumbnailURL builds the animated-gif thumbnail URL.
func (b Builder) AnimatedThumbnailURL(playbackID, policy string, params Params) (string, error) {
	return b.imageURL(playbackID, policy, "animated.gif", AudienceAnimatedThumbnail, params)
}

// StoryboardURL builds the storyboard VTT URL.
func (b Builder) StoryboardURL(playbackID, policy string, params Params) (string, error) {
	return b.imageURL(playbackID, policy, "storyboard.vtt", AudienceStoryboard, params)
}

// StreamURL builds the HLS playback URL.
func (b Builder) StreamURL(playbackID, policy string, params Params) (string, error) {
	base := fmt.Sprintf("%s/%s.m3u8", b.StreamBaseURL, playbackID)
	return b.withQuery(base, playbackID, policy, AudienceVideo, params)
}

func (b Builder) imageURL(playbackID, policy, file string, aud Audience, params Params) (string, error) {
	base := fmt.Sprintf("%s/%s/%s", b.ImageBaseURL, playbackID, file)
	return b.withQuery(base, playbackID, policy, aud, params)
}

func (b Builder) withQuery(base, playbackID, policy string, aud Audience, params Params) (string, error) {
	if signedPolicy(policy) {
		if b.Key.empty() {
			return "", ErrMissingSigningKey
		}
		signed, err := Sign(playbackID, aud, params, b.Key.ID, b.Key.PrivateKey)
		if err != nil {
			return "", err
		}
		return base + "?token=" + url.QueryEscape(signed), nil
	}

	q := url.Values{}
	for k, v := range params.stripped() {
		q.Set(k, v)
	}
	if len(q) == 0 {
		return base, nil
	}
	return base + "?" + q.Encode(), nil
}
