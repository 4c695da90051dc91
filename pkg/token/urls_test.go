// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

package token

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderPublicPolicy(t *testing.T) {
	t.Parallel()

	b := NewBuilder(KeyPair{})

	got, err := b.ThumbnailURL("pb-123", "public", Params{"width": "640", "time": "2"})
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "https://image.mux.com/pb-123/thumbnail.png", u.Scheme+"://"+u.Host+u.Path)
	assert.Equal(t, "640", u.Query().Get("width"))
	assert.Equal(t, "2", u.Query().Get("time"))
	assert.Empty(t, u.Query().Get("token"))
}

func TestBuilderPublicPolicyNoParams(t *testing.T) {
	t.Parallel()

	b := NewBuilder(KeyPair{})

	got, err := b.StreamURL("pb-123", "public", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://stream.mux.com/pb-123.m3u8", got)
}

func TestBuilderSignedPolicy(t *testing.T) {
	t.Parallel()

	key, pemKey := testKeyPEM(t)
	b := NewBuilder(KeyPair{ID: "key-1", PrivateKey: pemKey})

	got, err := b.StreamURL("pb-123", "signed", Params{"width": "640"})
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(u.Path, "/pb-123.m3u8"))

	// The query must collapse to a single token parameter.
	require.Len(t, u.Query(), 1)
	signed := u.Query().Get("token")
	require.NotEmpty(t, signed)

	claims := parseToken(t, signed, key)
	assert.Equal(t, "pb-123", claims["sub"])
	assert.Equal(t, "v", claims["aud"])
	assert.Equal(t, "640", claims["width"])
}

func TestBuilderDRMPolicyRequiresKey(t *testing.T) {
	t.Parallel()

	b := NewBuilder(KeyPair{})

	_, err := b.AnimatedThumbnailURL("pb-123", "drm", nil)
	assert.ErrorIs(t, err, ErrMissingSigningKey)
}

func TestBuilderAudiences(t *testing.T) {
	t.Parallel()

	key, pemKey := testKeyPEM(t)
	b := NewBuilder(KeyPair{ID: "key-1", PrivateKey: pemKey})

	tests := []struct {
		name  string
		build func(string, string, Params) (string, error)
		aud   string
		path  string
	}{
		{"thumbnail", b.ThumbnailURL, "t", "/pb-123/thumbnail.png"},
		{"animated", b.AnimatedThumbnailURL, "g", "/pb-123/animated.gif"},
		{"storyboard", b.StoryboardURL, "s", "/pb-123/storyboard.vtt"},
		{"stream", b.StreamURL, "v", "/pb-123.m3u8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.build("pb-123", "signed", nil)
			require.NoError(t, err)

			u, err := url.Parse(got)
			require.NoError(t, err)
			assert.Equal(t, tt.path, u.Path)

			claims := parseToken(t, u.Query().Get("token"), key)
			assert.Equal(t, tt.aud, claims["aud"])
		})
	}
}
