/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"time"

	"github.com/Seednode/santabox/exchange"
	"github.com/Seednode/santabox/storage/bbolt"
	"github.com/Seednode/santabox/storage/sqlite"
)

const (
	storeMemory = "memory"
	storeBolt   = "bolt"
	storeSQLite = "sqlite"
)

func openStore(cfg *Config) (exchange.Store, error) {
	switch cfg.store {
	case storeBolt:
		return bbolt.Open(cfg.dbPath)
	case storeSQLite:
		return sqlite.Open(cfg.dbPath)
	default:
		return exchange.NewMemoryStore(), nil
	}
}

// reaperLoop periodically deletes sessions that have been idle longer than
// the session timeout.
func reaperLoop(ctx context.Context, cfg *Config, svc *exchange.Service) {
	if cfg.sessionTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(cfg.sessionTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := svc.Expire(ctx, time.Now().Add(-cfg.sessionTimeout))
			if err != nil {
				logf(cfg, "ERROR: Expiring sessions: %v", err)
				continue
			}
			if removed > 0 {
				logf(cfg, "SANTA: Expired %d idle session(s)", removed)
			}
		}
	}
}
