// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the upload pipeline, asset records and signed
// URL building to the editor host over HTTP. The visual form/dialog
// layer lives in the host; this surface only moves state.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/credentials"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/docstore"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/logger"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/pipeline"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/token"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config wires a Server.
type Config struct {
	ListenAddr string

	Pipeline    *pipeline.Pipeline
	Store       docstore.Store
	Credentials *credentials.Cache
	Gate        *credentials.Gate
	Keys        credentials.KeyProvisioner

	ImageBaseURL  string
	StreamBaseURL string
}

// Server is the HTTP surface over the pipeline.
type Server struct {
	cfg  Config
	http *http.Server
}

// New creates a server with its routes registered.
func New(cfg Config) *Server {
	s := &Server{cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/uploads/{field}", s.handleStageURL)
	mux.HandleFunc("POST /v1/uploads/{field}/file", s.handleStageFile)
	mux.HandleFunc("GET /v1/uploads/{field}", s.handleSessionSnapshot)
	mux.HandleFunc("DELETE /v1/uploads/{field}", s.handleCancel)
	mux.HandleFunc("POST /v1/uploads/{field}/connectivity", s.handleConnectivity)
	mux.HandleFunc("GET /v1/assets/{doc}", s.handleGetAsset)
	mux.HandleFunc("DELETE /v1/assets/{doc}", s.handleDeleteAsset)
	mux.HandleFunc("PATCH /v1/assets/{doc}", s.handlePatchAsset)
	mux.HandleFunc("POST /v1/sign", s.handleSign)
	mux.HandleFunc("PUT /v1/secrets", s.handleSaveSecrets)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.http = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving HTTP until Shutdown.
func (s *Server) ListenAndServe() error {
	logger.Info().Str("addr", s.cfg.ListenAddr).Msg("http server listening")
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// urlBuilder builds playback URLs with the currently configured signing
// key, re-read on every request so secrets saves take effect.
func (s *Server) urlBuilder() token.Builder {
	b := token.NewBuilder(token.KeyPair{})
	if s.cfg.ImageBaseURL != "" {
		b.ImageBaseURL = s.cfg.ImageBaseURL
	}
	if s.cfg.StreamBaseURL != "" {
		b.StreamBaseURL = s.cfg.StreamBaseURL
	}
	if creds := s.cfg.Credentials.Get(); creds != nil {
		b.Key = token.KeyPair{ID: creds.SigningKeyID, PrivateKey: creds.SigningKeyPrivate}
	}
	return b
}
