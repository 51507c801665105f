package store

import (
	"context"
	"sync"

	"keygate/internal/license"
)

// MemoryStore is an in-process Store with the same semantics as the
// Firestore backend. It backs tests and development mode.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*license.License
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*license.License)}
}

func cloneLicense(l *license.License) *license.License {
	c := *l
	if l.HWID != nil {
		h := *l.HWID
		c.HWID = &h
	}
	return &c
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, key string) (*license.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lic, ok := s.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneLicense(lic), nil
}

// Put implements Store, replacing any existing record at the key.
func (s *MemoryStore) Put(ctx context.Context, lic *license.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[lic.Key] = cloneLicense(lic)
	return nil
}

// Delete implements Store. Missing keys are ignored.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context) ([]*license.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*license.License, 0, len(s.records))
	for _, lic := range s.records {
		out = append(out, cloneLicense(lic))
	}
	return out, nil
}

// BindHWID implements Store. The check-and-set runs under the write
// lock, so concurrent binds on the same unbound key serialize and only
// the first wins.
func (s *MemoryStore) BindHWID(ctx context.Context, key, hwid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lic, ok := s.records[key]
	if !ok {
		return ErrNotFound
	}
	if lic.Bound() {
		if *lic.HWID == hwid {
			return nil
		}
		return ErrAlreadyBound
	}
	h := hwid
	lic.HWID = &h
	return nil
}

// ClearHWID implements Store. Clearing a missing key is a no-op.
func (s *MemoryStore) ClearHWID(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lic, ok := s.records[key]; ok {
		lic.HWID = nil
	}
	return nil
}

// SetStatus implements Store.
func (s *MemoryStore) SetStatus(ctx context.Context, key, st string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lic, ok := s.records[key]
	if !ok {
		return ErrNotFound
	}
	lic.Status = st
	return nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
