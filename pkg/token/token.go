// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

// Package token produces the short-lived, audience-scoped playback
// tokens required by signed/drm playback policies, and builds the
// playback/image URLs that embed them.
package token

import (
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingSigningKey is reported when a signed/drm asset is requested
// but no signing key pair is configured. This is a hard failure: a
// silently-unsigned URL would be rejected by the remote service anyway.
var ErrMissingSigningKey = errors.New("token: playback policy requires a signing key but none is configured")

// Audience scopes a token to one request surface. The wire form is a
// single-character code.
type Audience string

const (
	AudienceThumbnail         Audience = "t"
	AudienceAnimatedThumbnail Audience = "g"
	AudienceStoryboard        Audience = "s"
	AudienceVideo             Audience = "v"
)

// Expiry is fixed at generation time for every token.
const Expiry = 12 * time.Hour

// Params are the caller-supplied token parameters (image width/height/
// time/fit-mode, or animation start/end/fps). Empty values are stripped
// before signing.
type Params map[string]string

func (p Params) stripped() Params {
	out := make(Params, len(p))
	for k, v := range p {
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// Sign produces a signed token for the given playback id and audience.
// The token carries subject, audience code, key id and the stripped
// params; it has a fixed 12h expiry and no issued-at claim.
func Sign(playbackID string, aud Audience, params Params, keyID, keyPrivate string) (string, error) {
	if keyID == "" || keyPrivate == "" {
		return "", ErrMissingSigningKey
	}

	key, err := parsePrivateKey(keyPrivate)
	if err != nil {
		return "", fmt.Errorf("token: parse signing key: %w", err)
	}

	claims := jwt.MapClaims{
		"sub": playbackID,
		"aud": string(aud),
		"kid": keyID,
		"exp": time.Now().Add(Expiry).Unix(),
	}
	for k, v := range params.stripped() {
		claims[k] = v
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = keyID

	signed, err := tok.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// parsePrivateKey accepts either a raw PEM block or the base64-encoded
// PEM the remote service hands out from create-signing-key.
func parsePrivateKey(raw string) (*rsa.PrivateKey, error) {
	pemData := []byte(raw)
	if !strings.HasPrefix(strings.TrimSpace(raw), "-----BEGIN") {
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("decode base64 key: %w", err)
		}
		pemData = decoded
	}
	return jwt.ParseRSAPrivateKeyFromPEM(pemData)
}
