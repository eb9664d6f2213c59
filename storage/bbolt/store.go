/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package bbolt stores exchange sessions as JSON records in a BoltDB file.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Seednode/santabox/exchange"
	"go.etcd.io/bbolt"
)

const sessionBucket = "sessions"

// Store provides a BoltDB-backed session store. Bolt allows a single writer
// at a time, which serializes every Update.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the store at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, session exchange.Session) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("session id is required")
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := sessions(tx)
		if err != nil {
			return err
		}
		if bucket.Get(sessionKey(session.ID)) != nil {
			return exchange.ErrExists
		}
		return bucket.Put(sessionKey(session.ID), payload)
	})
}

func (s *Store) Get(ctx context.Context, id string) (exchange.Session, error) {
	if err := s.ready(ctx); err != nil {
		return exchange.Session{}, err
	}

	var session exchange.Session
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := sessions(tx)
		if err != nil {
			return err
		}
		return decode(bucket, id, &session)
	})
	if err != nil {
		return exchange.Session{}, err
	}

	return session, nil
}

// Update applies fn inside a single read-write transaction. An error from fn
// rolls the transaction back.
func (s *Store) Update(ctx context.Context, id string, fn func(*exchange.Session) error) (exchange.Session, error) {
	if err := s.ready(ctx); err != nil {
		return exchange.Session{}, err
	}

	var session exchange.Session
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := sessions(tx)
		if err != nil {
			return err
		}
		if err := decode(bucket, id, &session); err != nil {
			return err
		}
		if err := fn(&session); err != nil {
			return err
		}

		payload, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		return bucket.Put(sessionKey(id), payload)
	})
	if err != nil {
		return exchange.Session{}, err
	}

	return session, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := sessions(tx)
		if err != nil {
			return err
		}
		if bucket.Get(sessionKey(id)) == nil {
			return exchange.ErrNotFound
		}
		return bucket.Delete(sessionKey(id))
	})
}

// Expire removes sessions whose last activity is before cutoff.
func (s *Store) Expire(ctx context.Context, cutoff time.Time) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}

	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := sessions(tx)
		if err != nil {
			return err
		}

		var stale [][]byte
		err = bucket.ForEach(func(k, v []byte) error {
			var header struct {
				LastActive time.Time `json:"last_activity"`
			}
			if err := json.Unmarshal(v, &header); err != nil {
				return fmt.Errorf("unmarshal session %s: %w", k, err)
			}
			if header.LastActive.Before(cutoff) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return fmt.Errorf("delete session %s: %w", k, err)
			}
		}
		removed = len(stale)

		return nil
	})
	if err != nil {
		return 0, err
	}

	return removed, nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(sessionBucket))
		if err != nil {
			return fmt.Errorf("create session bucket: %w", err)
		}
		return nil
	})
}

func sessions(tx *bbolt.Tx) (*bbolt.Bucket, error) {
	bucket := tx.Bucket([]byte(sessionBucket))
	if bucket == nil {
		return nil, fmt.Errorf("session bucket is missing")
	}
	return bucket, nil
}

func decode(bucket *bbolt.Bucket, id string, session *exchange.Session) error {
	payload := bucket.Get(sessionKey(id))
	if payload == nil {
		return exchange.ErrNotFound
	}
	if err := json.Unmarshal(payload, session); err != nil {
		return fmt.Errorf("unmarshal session: %w", err)
	}
	return nil
}

func sessionKey(id string) []byte {
	return []byte(id)
}
