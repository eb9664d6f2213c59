/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Santabox Secret Santa
//
// Everybody opens the same link, enters their name, and once the group is
// complete anybody can start the draw. Each person then sees only who they
// are giving a present to.
//
// Features:
// - Sessions per ID: /santa/:session, with a JSON API and a websocket below it
// - Random 32-hex-character session IDs, with a server-side collision check
// - Case-insensitive unique names, 2 to 50 characters
// - Draw guarantees nobody gives to themselves
// - Online indicator from heartbeats, within a recency window
// - Sessions auto-reaped after a configurable idle timeout
// - QR code of the share link, backed by go-qrcode

package main

import (
	_ "embed"
	"errors"
	"net/http"
	"time"

	"github.com/Seednode/santabox/exchange"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const santaPath = "/santa"

//go:embed assets/santa/index.html
var indexHTML []byte

func sessionURL(cfg *Config, r *http.Request, sessionID string) string {
	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return scheme + "://" + r.Host + cfg.prefix + santaPath + "/" + sessionID
}

// redirectNewSession handles GET /santa by creating a session and
// redirecting to /santa/:session.
func redirectNewSession(cfg *Config, svc *exchange.Service, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		session, err := svc.Create(r.Context())
		if err != nil {
			errs <- err

			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			securityHeaders(cfg, w)
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(newPage(cfg, "Server Error", "Unable to create a new exchange. Please try again.")))

			return
		}

		logf(cfg, "SANTA: Created session %s for %s", session.ID, realIP(r))

		http.Redirect(w, r, cfg.prefix+santaPath+"/"+session.ID, http.StatusTemporaryRedirect)
	}
}

// serveSessionPage serves the client for an existing session. Unknown
// sessions are sent to a fresh one.
func serveSessionPage(cfg *Config, svc *exchange.Service, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		_, err := svc.Get(r.Context(), ps.ByName("session"))
		switch {
		case errors.Is(err, exchange.ErrNotFound):
			http.Redirect(w, r, cfg.prefix+santaPath, http.StatusTemporaryRedirect)

			return
		case err != nil:
			errs <- err
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		securityHeaders(cfg, w)

		_, err = w.Write(indexHTML)
		if err != nil {
			errs <- err

			return
		}
	}
}

// serveQR generates a PNG QR code for the session URL using go-qrcode.
func serveQR(cfg *Config, svc *exchange.Service, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		sessionID := ps.ByName("session")

		if _, err := svc.Get(r.Context(), sessionID); err != nil {
			http.Error(w, http.StatusText(statusFor(err)), statusFor(err))

			return
		}

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(sessionURL(cfg, r, sessionID), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, err = w.Write(png)
		if err != nil {
			errs <- err

			return
		}
	}
}

// registerSanta sets up routes so that:
//   - $path                                  → redirects to a new session
//   - $path/:session                         → HTML client
//   - $path/:session/state                   → JSON view of the session
//   - $path/:session/participants(/*name)    → register / unregister
//   - $path/:session/start, /reset           → lifecycle actions
//   - $path/:session/assignment/*name        → lookup
//   - $path/:session/heartbeat               → presence
//   - $path/:session/ws                      → live updates
//   - $path/:session/qr                      → PNG QR code for the session URL
func registerSanta(cfg *Config, svc *exchange.Service, hub *liveHub, mux *httprouter.Router, errs chan<- error) {
	path := cfg.prefix + santaPath

	mux.GET(path, redirectNewSession(cfg, svc, errs))

	mux.GET(path+"/:session", serveSessionPage(cfg, svc, errs))

	mux.GET(path+"/:session/state", serveState(cfg, svc, errs))

	mux.POST(path+"/:session/participants", serveRegister(cfg, svc, errs))

	mux.DELETE(path+"/:session/participants/*name", serveUnregister(cfg, svc, errs))

	mux.POST(path+"/:session/start", serveStart(cfg, svc, errs))

	mux.POST(path+"/:session/reset", serveReset(cfg, svc, errs))

	mux.GET(path+"/:session/assignment/*name", serveLookup(cfg, svc, errs))

	mux.POST(path+"/:session/heartbeat", serveHeartbeat(cfg, svc, errs))

	mux.GET(path+"/:session/qr", serveQR(cfg, svc, errs))

	mux.GET(path+"/:session/ws", serveLive(cfg, svc, hub))
}
