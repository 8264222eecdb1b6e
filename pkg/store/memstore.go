// Copyright 2025 Certen Protocol
//
// In-memory Content Store backend. Grounded on the MemoryKV pattern used
// for local/dev wiring in the teacher's main.go.

package store

import (
	"context"
	"sync"

	"github.com/certen/vms/pkg/codec"
	"github.com/ipfs/go-cid"
)

// MemoryStore is a process-local, map-backed ContentStore. Not durable
// across restarts - the spec only requires durability at the backend's
// discretion (§4.B).
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory content store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Put canonically derives the CID of data and stores it. Concurrent puts
// of identical bytes converge on one map entry because the key is the
// content hash itself.
func (m *MemoryStore) Put(_ context.Context, data []byte) (cid.Cid, error) {
	c, err := codec.DeriveCID(data)
	if err != nil {
		return cid.Undef, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.data[c.KeyString()]; !exists {
		buf := make([]byte, len(data))
		copy(buf, data)
		m.data[c.KeyString()] = buf
	}
	return c, nil
}

// Get returns the exact bytes stored under c, or ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, c cid.Cid) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[c.KeyString()]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Has reports whether c is present.
func (m *MemoryStore) Has(_ context.Context, c cid.Cid) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[c.KeyString()]
	return ok, nil
}

// Delete removes c. Exposed for administrative use only - the core never
// exercises it on its own (spec §9 open question 3).
func (m *MemoryStore) Delete(_ context.Context, c cid.Cid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, c.KeyString())
	return nil
}

// Len returns the number of stored objects, mainly for tests.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
