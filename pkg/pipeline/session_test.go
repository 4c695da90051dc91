// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"errors"
	"testing"

	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/staging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(t *testing.T) *Session {
	t.Helper()

	staged, err := staging.StageURL("https://example.com/video.mp4")
	require.NoError(t, err)

	return &Session{
		ID:         "session-1",
		FieldID:    "field-1",
		DocumentID: "mux.videoAsset.session-1",
		staged:     staged,
		phase:      PhaseStaged,
		progress:   -1,
		events:     make(chan Event, eventBuffer),
		done:       make(chan struct{}),
	}
}

func TestEmitDeliversTerminalEventToSlowConsumer(t *testing.T) {
	t.Parallel()

	s := testSession(t)

	// Flood the unconsumed channel well past its capacity, then emit the
	// terminal event. Intermediate events may drop; the terminal one and
	// the channel close must still arrive.
	for i := 0; i < 3*eventBuffer; i++ {
		s.emit(Event{Type: EventProgress, Percent: float64(i)})
	}
	s.emit(Event{Type: EventError, Err: errors.New("boom")})

	var events []Event
	for ev := range s.events {
		events = append(events, ev)
	}

	require.NotEmpty(t, events)
	terminal := events[len(events)-1]
	assert.Equal(t, EventError, terminal.Type)
	assert.Less(t, len(events), 3*eventBuffer+2, "slow consumers drop intermediate events")

	// Emitting after the terminal event is a no-op, not a panic.
	s.emit(Event{Type: EventProgress})
}

func TestEmitStampsSessionIdentity(t *testing.T) {
	t.Parallel()

	s := testSession(t)
	s.emit(Event{Type: EventStaged})

	ev := <-s.events
	assert.Equal(t, "session-1", ev.SessionID)
	assert.Equal(t, staging.KindURL, ev.Kind)
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	s := testSession(t)

	snap := s.Snapshot()
	assert.Equal(t, "session-1", snap.SessionID)
	assert.Equal(t, PhaseStaged, snap.Phase)
	assert.Nil(t, snap.ProgressPercent, "progress is omitted until the transfer reports it")
	assert.Empty(t, snap.Error)

	s.setPhase(PhaseTransferring)
	s.setProgress(42.5)

	snap = s.Snapshot()
	assert.Equal(t, PhaseTransferring, snap.Phase)
	require.NotNil(t, snap.ProgressPercent)
	assert.Equal(t, 42.5, *snap.ProgressPercent)
}

func TestSetProgressIsMonotonic(t *testing.T) {
	t.Parallel()

	s := testSession(t)
	s.setProgress(50)
	s.setProgress(30)

	snap := s.Snapshot()
	require.NotNil(t, snap.ProgressPercent)
	assert.Equal(t, float64(50), *snap.ProgressPercent)
}
