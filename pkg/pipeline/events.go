// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import "github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/staging"

// EventType classifies session events.
type EventType string

const (
	EventStaged   EventType = "staged"
	EventProgress EventType = "progress"
	EventPaused   EventType = "paused"
	EventResumed  EventType = "resumed"
	EventSuccess  EventType = "success"
	EventError    EventType = "error"
)

// Event is one observable step of an upload session. A session emits a
// staged event, any number of progress/paused/resumed events, and then
// exactly one terminal event (success or error), after which the event
// channel closes. URL-case sessions emit no progress events.
type Event struct {
	Type      EventType
	SessionID string
	Kind      staging.Kind

	// Percent is set on progress events.
	Percent float64

	// AssetID and PlaybackID are set on success events.
	AssetID    string
	PlaybackID string

	// Err is set on error events. A cancelled session terminates with
	// an error event carrying context.Canceled.
	Err error
}

// Terminal reports whether the event ends the session.
func (e Event) Terminal() bool {
	return e.Type == EventSuccess || e.Type == EventError
}
