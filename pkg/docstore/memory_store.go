// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

package docstore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and single-node runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*AssetRecord

	subMu   sync.Mutex
	nextSub int
	subs    map[string]map[int]chan *AssetRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*AssetRecord),
		subs:    make(map[string]map[int]chan *AssetRecord),
	}
}

func (m *MemoryStore) CreateOrReplace(ctx context.Context, rec *AssetRecord) error {
	clone := *rec
	clone.UpdatedAt = time.Now().UnixMilli()

	m.mu.Lock()
	m.records[clone.DocumentID] = &clone
	m.mu.Unlock()

	m.publish(clone.DocumentID, &clone)
	return nil
}

func (m *MemoryStore) Patch(ctx context.Context, documentID string, fields Patch) error {
	m.mu.Lock()
	rec, ok := m.records[documentID]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	patched, err := applyPatch(rec, fields)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	patched.UpdatedAt = time.Now().UnixMilli()
	m.records[documentID] = patched
	m.mu.Unlock()

	m.publish(documentID, patched)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, documentID string) (*AssetRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[documentID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (m *MemoryStore) Delete(ctx context.Context, documentID string) error {
	m.mu.Lock()
	_, existed := m.records[documentID]
	delete(m.records, documentID)
	m.mu.Unlock()

	if existed {
		m.publish(documentID, nil)
	}
	return nil
}

func (m *MemoryStore) Subscribe(ctx context.Context, documentID string) (<-chan *AssetRecord, func(), error) {
	ch := make(chan *AssetRecord, 8)

	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	if m.subs[documentID] == nil {
		m.subs[documentID] = make(map[int]chan *AssetRecord)
	}
	m.subs[documentID][id] = ch
	m.subMu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs[documentID], id)
			if len(m.subs[documentID]) == 0 {
				delete(m.subs, documentID)
			}
			m.subMu.Unlock()
			close(ch)
		})
	}

	return ch, stop, nil
}

func (m *MemoryStore) publish(documentID string, rec *AssetRecord) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for _, ch := range m.subs[documentID] {
		var snapshot *AssetRecord
		if rec != nil {
			clone := *rec
			snapshot = &clone
		}
		select {
		case ch <- snapshot:
		default:
			// Drop if the subscriber is slow.
		}
	}
}
