// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

package credentials

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTester struct {
	calls  atomic.Int64
	status bool
	err    error
}

func (f *fakeTester) TestCredentials(ctx context.Context) (bool, error) {
	f.calls.Add(1)
	return f.status, f.err
}

type fakeProvisioner struct {
	calls atomic.Int64
	err   error
}

func (f *fakeProvisioner) CreateSigningKey(ctx context.Context) (string, string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", "", f.err
	}
	return "key-1", "cHJpdmF0ZQ==", nil
}

func TestCacheLifecycle(t *testing.T) {
	t.Parallel()

	cache := NewCache(nil)
	assert.Nil(t, cache.Get())

	creds := &Credentials{Token: "tok", SecretKey: "sec"}
	cache.SetAndInvalidate(creds)
	assert.Same(t, creds, cache.Get())

	cache.Invalidate()
	assert.Nil(t, cache.Get())
}

func TestCredentialsConfigured(t *testing.T) {
	t.Parallel()

	var nilCreds *Credentials
	assert.False(t, nilCreds.Configured())
	assert.False(t, (&Credentials{Token: "tok"}).Configured())
	assert.True(t, (&Credentials{Token: "tok", SecretKey: "sec"}).Configured())
}

func TestGateUnconfiguredShortCircuits(t *testing.T) {
	t.Parallel()

	tester := &fakeTester{status: true}
	gate := NewGate(NewCache(nil), tester)

	_, err := gate.EnsureValid(context.Background())
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Zero(t, tester.calls.Load(), "no remote call for unconfigured credentials")
}

func TestGateEnsureValid(t *testing.T) {
	t.Parallel()

	cache := NewCache(&Credentials{Token: "tok", SecretKey: "sec"})

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		gate := NewGate(cache, &fakeTester{status: true})
		creds, err := gate.EnsureValid(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok", creds.Token)
	})

	t.Run("rejected", func(t *testing.T) {
		t.Parallel()
		gate := NewGate(cache, &fakeTester{status: false})
		_, err := gate.EnsureValid(context.Background())
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("network failure maps to invalid", func(t *testing.T) {
		t.Parallel()
		gate := NewGate(cache, &fakeTester{err: errors.New("connection refused")})
		_, err := gate.EnsureValid(context.Background())
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestGateNeverCachesValidity(t *testing.T) {
	t.Parallel()

	tester := &fakeTester{status: true}
	gate := NewGate(NewCache(&Credentials{Token: "tok", SecretKey: "sec"}), tester)

	for i := 0; i < 3; i++ {
		_, err := gate.EnsureValid(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int64(3), tester.calls.Load())
}

func TestGateSaveProvisionsSigningKey(t *testing.T) {
	t.Parallel()

	cache := NewCache(nil)
	gate := NewGate(cache, &fakeTester{status: true})
	keys := &fakeProvisioner{}

	err := gate.Save(context.Background(), &Credentials{
		Token:            "tok",
		SecretKey:        "sec",
		EnableSignedURLs: true,
	}, keys)
	require.NoError(t, err)
	assert.Equal(t, int64(1), keys.calls.Load())

	saved := cache.Get()
	require.NotNil(t, saved)
	assert.Equal(t, "key-1", saved.SigningKeyID)
	assert.Equal(t, "cHJpdmF0ZQ==", saved.SigningKeyPrivate)
}

func TestGateSaveSkipsProvisioningWhenKeyPresent(t *testing.T) {
	t.Parallel()

	cache := NewCache(nil)
	gate := NewGate(cache, &fakeTester{status: true})
	keys := &fakeProvisioner{}

	err := gate.Save(context.Background(), &Credentials{
		Token:             "tok",
		SecretKey:         "sec",
		EnableSignedURLs:  true,
		SigningKeyID:      "existing",
		SigningKeyPrivate: "cHJpdmF0ZQ==",
	}, keys)
	require.NoError(t, err)
	assert.Zero(t, keys.calls.Load())
	assert.Equal(t, "existing", cache.Get().SigningKeyID)
}

func TestGateSaveInvalidCredentials(t *testing.T) {
	t.Parallel()

	cache := NewCache(nil)
	gate := NewGate(cache, &fakeTester{status: false})
	keys := &fakeProvisioner{}

	err := gate.Save(context.Background(), &Credentials{Token: "bad", SecretKey: "bad"}, keys)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Zero(t, keys.calls.Load())

	// The record stays in place so the caller can correct and retry.
	require.NotNil(t, cache.Get())
	assert.Equal(t, "bad", cache.Get().Token)
}

func TestGateSaveProvisionFailure(t *testing.T) {
	t.Parallel()

	cache := NewCache(nil)
	gate := NewGate(cache, &fakeTester{status: true})
	keys := &fakeProvisioner{err: errors.New("boom")}

	err := gate.Save(context.Background(), &Credentials{
		Token:            "tok",
		SecretKey:        "sec",
		EnableSignedURLs: true,
	}, keys)
	require.Error(t, err)
	assert.Empty(t, cache.Get().SigningKeyID)
}
