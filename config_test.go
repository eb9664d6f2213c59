/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"cert without key", func(c *Config) { c.tlsCert = "cert.pem" }, "--tls-cert and --tls-key"},
		{"key without cert", func(c *Config) { c.tlsKey = "key.pem" }, "--tls-cert and --tls-key"},
		{"port too low", func(c *Config) { c.port = 0 }, "invalid port"},
		{"port too high", func(c *Config) { c.port = 65536 }, "invalid port"},
		{"no passes", func(c *Config) { c.maxPasses = 0 }, "invalid max passes"},
		{"zero presence window", func(c *Config) { c.presenceWindow = 0 }, "invalid presence window"},
		{"negative timeout", func(c *Config) { c.sessionTimeout = -time.Second }, "invalid session timeout"},
		{"zero timeout", func(c *Config) { c.sessionTimeout = 0 }, ""},
		{"unknown store", func(c *Config) { c.store = "redis" }, "invalid store"},
		{"bolt without path", func(c *Config) { c.store = storeBolt }, "--db is required"},
		{"sqlite without path", func(c *Config) { c.store = storeSQLite }, "--db is required"},
		{"bolt with path", func(c *Config) { c.store = storeBolt; c.dbPath = "santabox.db" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)

			err := cfg.validate()
			switch {
			case tt.wantErr == "" && err != nil:
				t.Fatalf("expected no error, got %v", err)
			case tt.wantErr != "" && err == nil:
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			case tt.wantErr != "" && !strings.Contains(err.Error(), tt.wantErr):
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigScheme(t *testing.T) {
	cfg := testConfig()
	if got := cfg.scheme(); got != "http" {
		t.Fatalf("expected http, got %q", got)
	}

	cfg.tlsCert, cfg.tlsKey = "cert.pem", "key.pem"
	if got := cfg.scheme(); got != "https" {
		t.Fatalf("expected https, got %q", got)
	}
}

func TestNewCmdDefaults(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)

	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("expected flags to parse, got %v", err)
	}

	if cfg.port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.port)
	}
	if cfg.maxPasses != 100 {
		t.Fatalf("expected default max passes 100, got %d", cfg.maxPasses)
	}
	if cfg.presenceWindow != 5*time.Minute {
		t.Fatalf("expected default presence window 5m, got %s", cfg.presenceWindow)
	}
	if cfg.store != storeMemory {
		t.Fatalf("expected default store %q, got %q", storeMemory, cfg.store)
	}
}

func TestNewCmdReadsEnvironment(t *testing.T) {
	t.Setenv("SANTABOX_PORT", "9090")
	t.Setenv("SANTABOX_PRESENCE_WINDOW", "90s")
	t.Setenv("SANTABOX_UNIFORM", "true")

	cfg := &Config{}
	newCmd(cfg)

	if cfg.port != 9090 {
		t.Fatalf("expected port 9090 from environment, got %d", cfg.port)
	}
	if cfg.presenceWindow != 90*time.Second {
		t.Fatalf("expected presence window 90s from environment, got %s", cfg.presenceWindow)
	}
	if !cfg.uniform {
		t.Fatal("expected uniform draw from environment")
	}
}

func TestNewCmdFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("SANTABOX_PORT", "9090")

	cfg := &Config{}
	cmd := newCmd(cfg)

	if err := cmd.ParseFlags([]string{"--port", "7070"}); err != nil {
		t.Fatalf("expected flags to parse, got %v", err)
	}
	if cfg.port != 7070 {
		t.Fatalf("expected flag to win over environment, got %d", cfg.port)
	}
}

func TestNewCmdRejectsInvalidConfig(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)
	cmd.SetArgs([]string{"--store", "bolt"})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "--db is required") {
		t.Fatalf("expected missing --db error, got %v", err)
	}
}
