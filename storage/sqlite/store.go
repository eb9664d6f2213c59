/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package sqlite stores exchange sessions as JSON records in a SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/santabox/exchange"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

//go:embed schema.sql
var schema string

// Store persists sessions in SQLite. Writes are funneled through one
// connection and a mutex, and run in IMMEDIATE transactions so another
// process sharing the file cannot interleave a read-modify-write.
type Store struct {
	mu    sync.Mutex
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens a SQLite session store and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := "file:" + filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
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

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO sessions (id, payload, last_active) VALUES (?, ?, ?)`,
		session.ID, string(payload), toMillis(session.LastActive),
	)
	if isUniqueViolation(err) {
		return exchange.ErrExists
	}
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, id string) (exchange.Session, error) {
	if err := s.ready(ctx); err != nil {
		return exchange.Session{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT payload FROM sessions WHERE id = ?`, id)

	return scanSession(row)
}

// Update runs fn inside one transaction; an error from fn rolls it back.
func (s *Store) Update(ctx context.Context, id string, fn func(*exchange.Session) error) (exchange.Session, error) {
	if err := s.ready(ctx); err != nil {
		return exchange.Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return exchange.Session{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	session, err := scanSession(tx.QueryRowContext(ctx, `SELECT payload FROM sessions WHERE id = ?`, id))
	if err != nil {
		return exchange.Session{}, err
	}
	if err := fn(&session); err != nil {
		return exchange.Session{}, err
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return exchange.Session{}, fmt.Errorf("marshal session: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE sessions SET payload = ?, last_active = ? WHERE id = ?`,
		string(payload), toMillis(session.LastActive), id,
	)
	if err != nil {
		return exchange.Session{}, fmt.Errorf("update session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return exchange.Session{}, fmt.Errorf("commit transaction: %w", err)
	}

	return session, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return exchange.ErrNotFound
	}

	return nil
}

// Expire removes sessions whose last activity is before cutoff.
func (s *Store) Expire(ctx context.Context, cutoff time.Time) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sessions WHERE last_active < ?`, toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("expire sessions: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire sessions: %w", err)
	}

	return int(n), nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func scanSession(row *sql.Row) (exchange.Session, error) {
	var payload string
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return exchange.Session{}, exchange.ErrNotFound
		}
		return exchange.Session{}, fmt.Errorf("read session: %w", err)
	}

	var session exchange.Session
	if err := json.Unmarshal([]byte(payload), &session); err != nil {
		return exchange.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}

	return session, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
