/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package exchange

import (
	"context"
	"time"
)

// Store persists session records.
//
// Update must be atomic and serialized for a given session: fn sees the
// latest committed record, and nothing is written when fn returns an error.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	Update(ctx context.Context, id string, fn func(*Session) error) (Session, error)
	Delete(ctx context.Context, id string) error
	Expire(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}
