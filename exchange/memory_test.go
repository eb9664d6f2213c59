/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package exchange

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreCreateDuplicate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	session := newSession("abc", time.Now())

	if err := store.Create(ctx, session); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, session); !errors.Is(err, ErrExists) {
		t.Fatalf("expected exists error, got %v", err)
	}
}

func TestMemoryStoreUpdateRollsBackOnError(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, newSession("abc", time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}

	boom := errors.New("boom")
	_, err := store.Update(ctx, "abc", func(s *Session) error {
		s.Participants = append(s.Participants, Participant{Name: "Alice"})
		s.Status = StatusAssigned
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	loaded, err := store.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(loaded.Participants) != 0 || loaded.Status != StatusCollecting {
		t.Fatalf("expected untouched session, got %+v", loaded)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, newSession("abc", time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := store.Update(ctx, "abc", func(s *Session) error {
		s.Participants = append(s.Participants, Participant{Name: "Alice"})
		s.Presence["alice"] = Presence{Name: "Alice"}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	updated.Participants[0].Name = "Mallory"
	delete(updated.Presence, "alice")

	loaded, err := store.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Participants[0].Name != "Alice" {
		t.Fatalf("expected stored name %q, got %q", "Alice", loaded.Participants[0].Name)
	}
	if _, ok := loaded.Presence["alice"]; !ok {
		t.Fatal("expected stored presence to survive caller mutation")
	}
}

func TestMemoryStoreMissing(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get: expected not found, got %v", err)
	}
	if _, err := store.Update(ctx, "nope", func(*Session) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update: expected not found, got %v", err)
	}
	if err := store.Delete(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete: expected not found, got %v", err)
	}
}

func TestMemoryStoreCanceledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Create(ctx, newSession("abc", time.Now())); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestMemoryStoreExpire(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 12, 24, 0, 0, 0, 0, time.UTC)

	if err := store.Create(ctx, newSession("old", base)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, newSession("new", base.Add(2*time.Hour))); err != nil {
		t.Fatalf("create: %v", err)
	}

	removed, err := store.Expire(ctx, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, err := store.Get(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected old to be gone, got %v", err)
	}
	if _, err := store.Get(ctx, "new"); err != nil {
		t.Fatalf("expected new to remain, got %v", err)
	}
}
