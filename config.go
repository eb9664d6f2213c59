/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind           string
	dbPath         string
	maxPasses      int
	port           int
	prefix         string
	presenceWindow time.Duration
	profile        bool
	sessionTimeout time.Duration
	store          string
	tlsCert        string
	tlsKey         string
	uniform        bool
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.maxPasses < 1 {
		return fmt.Errorf("invalid max passes (must be at least 1): %d", c.maxPasses)
	}
	if c.presenceWindow <= 0 {
		return fmt.Errorf("invalid presence window (must be positive): %s", c.presenceWindow)
	}
	if c.sessionTimeout < 0 {
		return fmt.Errorf("invalid session timeout (must not be negative): %s", c.sessionTimeout)
	}

	switch c.store {
	case storeMemory:
	case storeBolt, storeSQLite:
		if strings.TrimSpace(c.dbPath) == "" {
			return fmt.Errorf("--db is required when using the %s store", c.store)
		}
	default:
		return fmt.Errorf("invalid store (must be one of %s, %s, %s): %q", storeMemory, storeBolt, storeSQLite, c.store)
	}

	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SANTABOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "santabox",
		Short:         "A self-service Secret Santa draw, shared with a single link.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: SANTABOX_BIND)")
	fs.StringVar(&cfg.dbPath, "db", "", "path to the session database, for the bolt and sqlite stores (env: SANTABOX_DB)")
	fs.IntVar(&cfg.maxPasses, "max-passes", 100, "repair passes allowed when drawing assignments (env: SANTABOX_MAX_PASSES)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: SANTABOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: SANTABOX_PREFIX)")
	fs.DurationVar(&cfg.presenceWindow, "presence-window", 5*time.Minute, "how recently a participant must have been seen to count as online (env: SANTABOX_PRESENCE_WINDOW)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: SANTABOX_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 24*time.Hour, "time before idle sessions are deleted, 0 to keep forever (env: SANTABOX_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.store, "store", storeMemory, "session store: memory, bolt, or sqlite (env: SANTABOX_STORE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: SANTABOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: SANTABOX_TLS_KEY)")
	fs.BoolVar(&cfg.uniform, "uniform", false, "draw uniformly among all valid assignments by reshuffling instead of repairing (env: SANTABOX_UNIFORM)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: SANTABOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: SANTABOX_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("santabox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
