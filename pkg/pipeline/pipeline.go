// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

// Package pipeline runs the upload & asset-readiness pipeline: stage →
// credential gate → remote initiation → chunked transfer (file case) →
// readiness polling → materialization, with idempotent cancellation and
// cleanup at every point before materialization completes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/credentials"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/docstore"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/logger"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/muxapi"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/staging"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/transfer"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
)

// RemoteService is the slice of the remote video service the pipeline
// consumes. *muxapi.Client satisfies it.
type RemoteService interface {
	CreateAssetFromURL(ctx context.Context, sourceURL string, settings muxapi.AssetSettings, idempotencyKey string) (*muxapi.Asset, error)
	CreateUpload(ctx context.Context, settings muxapi.AssetSettings, idempotencyKey string) (*muxapi.Upload, error)
	GetUpload(ctx context.Context, uploadID string) (*muxapi.Upload, error)
	GetAsset(ctx context.Context, assetID string) (*muxapi.Asset, error)
	DeleteAsset(ctx context.Context, assetID string) error
	CancelUpload(ctx context.Context, uploadID string) error
}

// Config wires a Pipeline.
type Config struct {
	Service RemoteService
	Gate    *credentials.Gate
	Store   docstore.Store

	Transfer transfer.Config

	PollInterval    time.Duration
	PollMaxAttempts int
}

// Pipeline orchestrates upload sessions. Sessions for different fields
// run independently; the only shared state is the read-only credential
// cache behind the gate.
type Pipeline struct {
	svc          RemoteService
	gate         *credentials.Gate
	store        docstore.Store
	materializer *Materializer

	transferCfg     transfer.Config
	pollInterval    time.Duration
	pollMaxAttempts int

	sessions *sessionTable
}

// New creates a pipeline, applying defaults for anything unset.
func New(cfg Config) *Pipeline {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.PollMaxAttempts <= 0 {
		cfg.PollMaxAttempts = 10
	}

	return &Pipeline{
		svc:             cfg.Service,
		gate:            cfg.Gate,
		store:           cfg.Store,
		materializer:    NewMaterializer(cfg.Store),
		transferCfg:     cfg.Transfer,
		pollInterval:    cfg.PollInterval,
		pollMaxAttempts: cfg.PollMaxAttempts,
		sessions:        newSessionTable(),
	}
}

// Start begins a session for the given field. If a session is already
// active for that field this is a no-op: the active session is returned
// with started=false and the staged upload stays unconsumed. On
// started=true the staged upload is consumed; it cannot be reused.
func (p *Pipeline) Start(ctx context.Context, fieldID string, staged *staging.StagedUpload, settings muxapi.AssetSettings) (*Session, bool, error) {
	sessionID := uuid.New().String()

	// The session outlives the Start call; only explicit cancellation
	// stops it. The cancel func must be in place before the session is
	// visible in the table, or a concurrent Cancel could read it unset.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s := &Session{
		ID:         sessionID,
		FieldID:    fieldID,
		DocumentID: "mux.videoAsset." + sessionID,
		staged:     staged,
		phase:      PhaseStaged,
		progress:   -1,
		events:     make(chan Event, eventBuffer),
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	active, inserted := p.sessions.insert(fieldID, s)
	if !inserted {
		cancel()
		return active, false, nil
	}

	if err := staged.Consume(); err != nil {
		p.sessions.remove(fieldID, s)
		cancel()
		// A Cancel that raced the insert may be waiting on Done.
		close(s.done)
		return nil, false, err
	}

	SessionsStartedTotal.WithLabelValues(string(staged.Kind)).Inc()
	logger.Ctx(ctx).Info().
		Str("session_id", s.ID).
		Str("field_id", fieldID).
		Str("kind", string(staged.Kind)).
		Msg("upload session started")

	go p.run(runCtx, s, settings)
	return s, true, nil
}

// Session returns the active session for a field, if any.
func (p *Pipeline) Session(fieldID string) (*Session, bool) {
	return p.sessions.get(fieldID)
}

// Cancel tears down the active session for a field and waits for its
// cleanup to finish. Cancelling twice, or with no active session, is a
// no-op.
func (p *Pipeline) Cancel(ctx context.Context, fieldID string) error {
	s, ok := p.Session(fieldID)
	if !ok {
		return nil
	}

	s.cancel()
	select {
	case <-s.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetOnline forwards host connectivity to the field's transfer engine,
// if one is running.
func (p *Pipeline) SetOnline(fieldID string, online bool) {
	s, ok := p.Session(fieldID)
	if !ok {
		return
	}
	if engine := s.transferEngine(); engine != nil {
		engine.SetOnline(online)
	}
}

// DeleteAsset removes a durable asset record and best-effort deletes the
// remote asset. Remote failures are logged, never propagated.
func (p *Pipeline) DeleteAsset(ctx context.Context, documentID string) error {
	rec, err := p.store.Get(ctx, documentID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil
		}
		return err
	}

	if rec.RemoteAssetID != "" {
		if err := p.svc.DeleteAsset(ctx, rec.RemoteAssetID); err != nil {
			CleanupRemoteFailuresTotal.Inc()
			logger.Ctx(ctx).Warn().
				Err(err).
				Str("remote_asset_id", rec.RemoteAssetID).
				Msg("remote asset deletion failed")
		}
	}

	return p.store.Delete(ctx, documentID)
}

// Materializer exposes the record writer for thumb-time and filename
// patches from the editor.
func (p *Pipeline) Materializer() *Materializer {
	return p.materializer
}

// run drives one session to a terminal state.
func (p *Pipeline) run(ctx context.Context, s *Session, settings muxapi.AssetSettings) {
	defer close(s.done)
	defer p.sessions.remove(s.FieldID, s)

	s.emit(Event{Type: EventStaged})

	s.setPhase(PhaseValidatingCredentials)
	if _, err := p.gate.EnsureValid(ctx); err != nil {
		p.fail(ctx, s, err, "credentials")
		return
	}
	if ctx.Err() != nil {
		p.fail(ctx, s, ctx.Err(), "")
		return
	}

	switch s.staged.Kind {
	case staging.KindURL:
		p.runURL(ctx, s, settings)
	default:
		p.runFile(ctx, s, settings)
	}
}

// runURL is the URL case: a single initiator call resolves the asset
// synchronously, so transfer and readiness polling are skipped.
func (p *Pipeline) runURL(ctx context.Context, s *Session, settings muxapi.AssetSettings) {
	s.setPhase(PhaseInitiating)
	asset, err := p.svc.CreateAssetFromURL(ctx, s.staged.URL, settings, s.ID)
	if err != nil {
		p.fail(ctx, s, fmt.Errorf("%w: %v", ErrRemoteInitiationFailed, err), "initiation")
		return
	}
	s.mu.Lock()
	s.remoteAssetID = asset.ID
	s.mu.Unlock()

	s.setPhase(PhaseMaterializing)
	if err := p.materializer.Finalize(ctx, s.DocumentID, asset); err != nil {
		p.fail(ctx, s, err, "materialize")
		return
	}
	s.mu.Lock()
	s.materialized = true
	s.mu.Unlock()

	p.succeed(ctx, s, asset)
}

// runFile is the file case: create an upload target, materialize a
// placeholder, stream bytes, poll for readiness, then materialize the
// resolved asset.
func (p *Pipeline) runFile(ctx context.Context, s *Session, settings muxapi.AssetSettings) {
	s.setPhase(PhaseInitiating)
	upload, err := p.svc.CreateUpload(ctx, settings, s.ID)
	if err != nil {
		p.fail(ctx, s, fmt.Errorf("%w: %v", ErrRemoteInitiationFailed, err), "initiation")
		return
	}
	s.mu.Lock()
	s.remoteUploadID = upload.ID
	s.mu.Unlock()

	if err := p.materializer.Placeholder(ctx, s.DocumentID, s.staged.Name); err != nil {
		p.fail(ctx, s, err, "materialize")
		return
	}
	s.mu.Lock()
	s.materialized = true
	s.mu.Unlock()

	s.setPhase(PhaseTransferring)
	engine := transfer.New(p.transferCfg)
	s.setEngine(engine)

	transferStart := time.Now()
	for ev := range engine.Upload(ctx, upload.URL, s.staged.Reader, s.staged.Size, s.staged.MIMEType) {
		switch ev.Type {
		case transfer.EventProgress:
			s.setProgress(ev.Percent)
			s.emit(Event{Type: EventProgress, Percent: ev.Percent})
		case transfer.EventPaused:
			s.emit(Event{Type: EventPaused})
		case transfer.EventResumed:
			s.emit(Event{Type: EventResumed})
		case transfer.EventError:
			if ctx.Err() != nil {
				p.fail(ctx, s, ctx.Err(), "")
			} else {
				p.fail(ctx, s, fmt.Errorf("%w: %v", ErrTransferFailed, ev.Err), "transfer")
			}
			return
		case transfer.EventSuccess:
			s.setProgress(ev.Percent)
		}
	}
	s.setEngine(nil)
	TransferDuration.Observe(time.Since(transferStart).Seconds())

	if ctx.Err() != nil {
		p.fail(ctx, s, ctx.Err(), "")
		return
	}

	s.setPhase(PhaseAwaitingReadiness)
	assetID, err := p.awaitAsset(ctx, s)
	if err != nil {
		reason := "timeout"
		if !errors.Is(err, ErrUploadTimeout) {
			reason = "transfer"
		}
		p.fail(ctx, s, err, reason)
		return
	}
	s.mu.Lock()
	s.remoteAssetID = assetID
	s.mu.Unlock()

	// One additional fetch of the full asset payload before handoff.
	asset, err := p.svc.GetAsset(ctx, assetID)
	if err != nil {
		p.fail(ctx, s, fmt.Errorf("%w: %v", ErrTransferFailed, err), "transfer")
		return
	}

	s.setPhase(PhaseMaterializing)
	if err := p.materializer.Finalize(ctx, s.DocumentID, asset); err != nil {
		p.fail(ctx, s, err, "materialize")
		return
	}

	p.succeed(ctx, s, asset)
}

func (p *Pipeline) succeed(ctx context.Context, s *Session, asset *muxapi.Asset) {
	s.setPhase(PhaseReady)
	SessionsCompletedTotal.Inc()

	ev := Event{Type: EventSuccess, AssetID: asset.ID}
	if pb := asset.FirstPlaybackID(); pb != nil {
		ev.PlaybackID = pb.ID
	}
	s.emit(ev)

	logger.Ctx(ctx).Info().
		Str("session_id", s.ID).
		Str("asset_id", asset.ID).
		Str("status", asset.Status).
		Msg("upload session ready")
}

// fail drives a session to its terminal error state: cleanup first, then
// exactly one error event. Explicit cancellation lands in Idle instead
// of Errored so the field can accept a new staged upload.
func (p *Pipeline) fail(ctx context.Context, s *Session, err error, reason string) {
	cancelled := errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled)

	p.cleanup(ctx, s)

	s.mu.Lock()
	s.err = err
	if cancelled {
		s.phase = PhaseIdle
	} else {
		s.phase = PhaseErrored
	}
	s.mu.Unlock()

	if cancelled {
		SessionsCancelledTotal.Inc()
		logger.Ctx(ctx).Info().Str("session_id", s.ID).Msg("upload session cancelled")
	} else {
		if reason == "" {
			reason = "other"
		}
		SessionsFailedTotal.WithLabelValues(reason).Inc()
		sentry.CaptureException(err)
		logger.Ctx(ctx).Error().Err(err).Str("session_id", s.ID).Msg("upload session failed")
	}

	s.emit(Event{Type: EventError, Err: err})
}
