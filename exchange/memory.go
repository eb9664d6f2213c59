/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package exchange

import (
	"context"
	"sync"
	"time"
)

type record struct {
	mu      sync.RWMutex
	session Session
}

// MemoryStore keeps sessions in process memory, each behind its own lock, so
// writes to one session never wait on another.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*record),
	}
}

func (m *MemoryStore) Create(ctx context.Context, s Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.ID]; exists {
		return ErrExists
	}

	m.sessions[s.ID] = &record{session: s.Clone()}

	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	rec, ok := m.lookup(id)
	if !ok {
		return Session{}, ErrNotFound
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()

	return rec.session.Clone(), nil
}

func (m *MemoryStore) Update(ctx context.Context, id string, fn func(*Session) error) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	rec, ok := m.lookup(id)
	if !ok {
		return Session{}, ErrNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	working := rec.session.Clone()
	if err := fn(&working); err != nil {
		return Session{}, err
	}
	rec.session = working

	return working.Clone(), nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)

	return nil
}

// Expire drops every session that has been idle since before cutoff.
func (m *MemoryStore) Expire(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, rec := range m.sessions {
		rec.mu.RLock()
		last := rec.session.LastActive
		rec.mu.RUnlock()

		if last.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}

	return removed, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) lookup(id string) (*record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.sessions[id]
	return rec, ok
}
