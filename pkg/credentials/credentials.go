// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

// Package credentials holds the remote-service credential record, a
// process-wide cache with explicit invalidation, and the gate the
// pipeline runs before every initiation.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/logger"
)

// ErrInvalidCredentials is reported when the remote service rejects the
// configured token/secret pair, or none is configured.
var ErrInvalidCredentials = errors.New("credentials: invalid credentials")

// Credentials is the single mutable credential record.
type Credentials struct {
	Token             string `json:"token"`
	SecretKey         string `json:"secret_key"`
	EnableSignedURLs  bool   `json:"enable_signed_urls"`
	SigningKeyID      string `json:"signing_key_id,omitempty"`
	SigningKeyPrivate string `json:"signing_key_private,omitempty"`
}

// Configured reports whether a token/secret pair is present at all.
func (c *Credentials) Configured() bool {
	return c != nil && c.Token != "" && c.SecretKey != ""
}

// HasSigningKey reports whether a signing key pair is configured.
func (c *Credentials) HasSigningKey() bool {
	return c != nil && c.SigningKeyID != "" && c.SigningKeyPrivate != ""
}

// Cache is the process-wide credential cache. It is read by many
// components but written only through SetAndInvalidate; reads never
// mutate it. The record is swapped atomically so readers are lock-free.
type Cache struct {
	current atomic.Pointer[Credentials]
}

// NewCache creates a cache, optionally seeded with initial credentials.
func NewCache(initial *Credentials) *Cache {
	c := &Cache{}
	if initial != nil {
		c.current.Store(initial)
	}
	return c
}

// Get returns the cached record, or nil when none is set or it has been
// invalidated.
func (c *Cache) Get() *Credentials {
	return c.current.Load()
}

// Invalidate drops the cached record; the next read sees nil and must
// re-fetch from whatever source populated the cache.
func (c *Cache) Invalidate() {
	c.current.Store(nil)
}

// SetAndInvalidate replaces the record, discarding any cached value.
// Writers must re-validate against the remote service afterwards.
func (c *Cache) SetAndInvalidate(creds *Credentials) {
	c.current.Store(creds)
}

// Tester performs the remote read-only credential check.
type Tester interface {
	TestCredentials(ctx context.Context) (bool, error)
}

// KeyProvisioner creates a signing key pair on the remote service.
type KeyProvisioner interface {
	CreateSigningKey(ctx context.Context) (id, privateKey string, err error)
}

// Gate blocks pipeline progress until the credential store reports valid
// credentials. It runs once per pipeline invocation and never caches a
// validity result across sessions.
type Gate struct {
	cache  *Cache
	tester Tester
}

// NewGate creates a gate over the given cache and remote tester.
func NewGate(cache *Cache, tester Tester) *Gate {
	return &Gate{cache: cache, tester: tester}
}

// EnsureValid returns the current credentials after a successful remote
// test call. Any non-success response, network failure, or explicit
// status:false maps to ErrInvalidCredentials.
func (g *Gate) EnsureValid(ctx context.Context) (*Credentials, error) {
	creds := g.cache.Get()
	if !creds.Configured() {
		return nil, fmt.Errorf("%w: no token configured", ErrInvalidCredentials)
	}

	ok, err := g.tester.TestCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return creds, nil
}

// Save replaces the credential record and re-validates it against the
// remote service. When signed URLs are enabled and no key pair is
// configured yet, a signing key is provisioned and stored alongside.
// On validation failure the new record stays in place so the caller can
// correct and retry, but the error is surfaced.
func (g *Gate) Save(ctx context.Context, creds *Credentials, keys KeyProvisioner) error {
	g.cache.SetAndInvalidate(creds)

	if _, err := g.EnsureValid(ctx); err != nil {
		return err
	}

	if creds.EnableSignedURLs && !creds.HasSigningKey() && keys != nil {
		id, private, err := keys.CreateSigningKey(ctx)
		if err != nil {
			return fmt.Errorf("provision signing key: %w", err)
		}
		next := *creds
		next.SigningKeyID = id
		next.SigningKeyPrivate = private
		g.cache.SetAndInvalidate(&next)
		logger.Ctx(ctx).Info().Str("signing_key_id", id).Msg("provisioned signing key")
	}

	return nil
}
