// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"sync"

	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/staging"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/transfer"
)

// Phase is the state of an upload session.
//
//	Idle → Staged → ValidatingCredentials → Initiating →
//	{Transferring (file) | skip (URL)} → AwaitingReadiness (file) →
//	Materializing → Ready
//
// Errored is reachable from every phase except Idle/Ready; Idle is
// reachable from any phase via explicit cancellation. Ready and Errored
// are terminal.
type Phase string

const (
	PhaseIdle                  Phase = "idle"
	PhaseStaged                Phase = "staged"
	PhaseValidatingCredentials Phase = "validating_credentials"
	PhaseInitiating            Phase = "initiating"
	PhaseTransferring          Phase = "transferring"
	PhaseAwaitingReadiness     Phase = "awaiting_readiness"
	PhaseMaterializing         Phase = "materializing"
	PhaseReady                 Phase = "ready"
	PhaseErrored               Phase = "errored"
)

// eventBuffer leaves one reserved slot for the terminal event so it can
// always be delivered without blocking the session goroutine.
const eventBuffer = 32

// Session is one in-flight pipeline run. It is owned exclusively by the
// pipeline goroutine that created it and torn down on completion, error
// or explicit cancellation.
type Session struct {
	// ID is the client-generated session token, reused as the
	// idempotency key on initiator calls.
	ID string

	// FieldID identifies the editor field this session serves. At most
	// one session is active per field.
	FieldID string

	// DocumentID keys the durable asset record materialized for this
	// session.
	DocumentID string

	staged *staging.StagedUpload

	mu             sync.Mutex
	phase          Phase
	progress       float64 // -1 means unset
	remoteUploadID string
	remoteAssetID  string
	materialized   bool
	err            error
	engine         *transfer.Engine

	events      chan Event
	eventsDone  bool
	cancel      context.CancelFunc
	done        chan struct{}
	cleanupOnce sync.Once
}

// Snapshot is a point-in-time view of a session for API consumers.
type Snapshot struct {
	SessionID       string   `json:"session_id"`
	FieldID         string   `json:"field_id"`
	DocumentID      string   `json:"document_id"`
	Kind            string   `json:"kind"`
	Phase           Phase    `json:"phase"`
	ProgressPercent *float64 `json:"progress_percent,omitempty"`
	RemoteUploadID  string   `json:"remote_upload_id,omitempty"`
	RemoteAssetID   string   `json:"remote_asset_id,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// Events returns the session's event stream. The channel closes after
// the terminal event. Slow consumers may miss intermediate progress
// events but always observe the terminal one.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Done closes when the session goroutine has finished, cleanup included.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Err returns the terminal error, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Snapshot captures the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SessionID:      s.ID,
		FieldID:        s.FieldID,
		DocumentID:     s.DocumentID,
		Kind:           string(s.staged.Kind),
		Phase:          s.phase,
		RemoteUploadID: s.remoteUploadID,
		RemoteAssetID:  s.remoteAssetID,
	}
	if s.progress >= 0 {
		p := s.progress
		snap.ProgressPercent = &p
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

func (s *Session) setProgress(percent float64) {
	s.mu.Lock()
	if percent > s.progress {
		s.progress = percent
	}
	s.mu.Unlock()
}

func (s *Session) setEngine(e *transfer.Engine) {
	s.mu.Lock()
	s.engine = e
	s.mu.Unlock()
}

func (s *Session) transferEngine() *transfer.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

// emit delivers an event to the session channel. Only the session
// goroutine calls this, so the reserved-slot check cannot race with
// another producer. Terminal events close the channel.
func (s *Session) emit(ev Event) {
	if s.eventsDone {
		return
	}
	ev.SessionID = s.ID
	ev.Kind = s.staged.Kind

	if ev.Terminal() {
		s.events <- ev
		close(s.events)
		s.eventsDone = true
		return
	}

	if len(s.events) < cap(s.events)-1 {
		s.events <- ev
	}
}
