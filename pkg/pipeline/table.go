// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import "sync"

// sessionTable tracks the active session per editor field.
type sessionTable struct {
	mu     sync.Mutex
	active map[string]*Session
}

func newSessionTable() *sessionTable {
	return &sessionTable{active: make(map[string]*Session)}
}

// insert registers s for the field unless one is already active, in
// which case the active session is returned with inserted=false.
func (t *sessionTable) insert(fieldID string, s *Session) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.active[fieldID]; ok {
		return existing, false
	}
	t.active[fieldID] = s
	return s, true
}

func (t *sessionTable) get(fieldID string) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.active[fieldID]
	return s, ok
}

// remove drops s from the table if it is still the registered session.
func (t *sessionTable) remove(fieldID string, s *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active[fieldID] == s {
		delete(t.active, fieldID)
	}
}
