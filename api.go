/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Seednode/santabox/exchange"
	"github.com/julienschmidt/httprouter"
)

const maxBodyBytes = 4096

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type stateResponse struct {
	apiResponse
	exchange.View
}

type registerResponse struct {
	apiResponse
	Participant exchange.Participant `json:"participant"`
}

type startResponse struct {
	apiResponse
	AssignmentCount int `json:"assignment_count"`
}

type lookupResponse struct {
	apiResponse
	Assignment *string `json:"assignment"`
}

var errMalformedRequest = errors.New("malformed request body")

// requestFields reads a flat JSON object, or a form body for clients that
// post plain HTML forms.
func requestFields(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	fields := map[string]string{}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		err := json.NewDecoder(r.Body).Decode(&fields)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, errMalformedRequest
		}

		return fields, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, errMalformedRequest
	}
	for k := range r.PostForm {
		fields[k] = r.PostForm.Get(k)
	}

	return fields, nil
}

func writeJSON(cfg *Config, w http.ResponseWriter, r *http.Request, status int, payload any, errs chan<- error) {
	startTime := time.Now()

	data, err := json.Marshal(payload)
	if err != nil {
		errs <- fmt.Errorf("encode response for %s: %w", r.URL.Path, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	written, err := w.Write(data)
	if err != nil {
		errs <- err

		return
	}

	logf(cfg, "SERVE: %s %s (%s) to %s in %s",
		r.Method,
		r.URL.Path,
		humanReadableSize(int64(written)),
		realIP(r),
		time.Since(startTime).Round(time.Microsecond),
	)
}

func writeError(cfg *Config, w http.ResponseWriter, r *http.Request, err error, errs chan<- error) {
	status := statusFor(err)
	message := err.Error()

	switch {
	case errors.Is(err, errMalformedRequest):
		status = http.StatusBadRequest
	case status == http.StatusInternalServerError:
		errs <- fmt.Errorf("%s %s: %w", r.Method, r.URL.Path, err)
		message = "An internal error occurred. Please try again."
	}

	writeJSON(cfg, w, r, status, apiResponse{Success: false, Message: message}, errs)
}

// nameParam reads a catch-all name, so names containing "/" still route.
func nameParam(ps httprouter.Params) string {
	return strings.TrimPrefix(ps.ByName("name"), "/")
}

func serveState(cfg *Config, svc *exchange.Service, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		view, err := svc.View(r.Context(), ps.ByName("session"), r.URL.Query().Get("username"))
		if err != nil {
			writeError(cfg, w, r, err, errs)

			return
		}

		writeJSON(cfg, w, r, http.StatusOK, stateResponse{
			apiResponse: apiResponse{Success: true},
			View:        view,
		}, errs)
	}
}

func serveRegister(cfg *Config, svc *exchange.Service, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		sessionID := ps.ByName("session")

		fields, err := requestFields(w, r)
		if err != nil {
			writeError(cfg, w, r, err, errs)

			return
		}

		p, err := svc.Register(r.Context(), sessionID, fields["name"], realIP(r))
		if err != nil {
			writeError(cfg, w, r, err, errs)

			return
		}

		logf(cfg, "SANTA: Participant %q joined %s", p.Name, sessionID)

		writeJSON(cfg, w, r, http.StatusCreated, registerResponse{
			apiResponse: apiResponse{Success: true, Message: fmt.Sprintf("Participant %q was added.", p.Name)},
			Participant: exchange.Participant{Name: p.Name, JoinedAt: p.JoinedAt},
		}, errs)
	}
}

func serveUnregister(cfg *Config, svc *exchange.Service, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		sessionID, name := ps.ByName("session"), nameParam(ps)

		if err := svc.Unregister(r.Context(), sessionID, name); err != nil {
			writeError(cfg, w, r, err, errs)

			return
		}

		logf(cfg, "SANTA: Participant %q left %s", name, sessionID)

		writeJSON(cfg, w, r, http.StatusOK, apiResponse{Success: true, Message: "Participant removed."}, errs)
	}
}

func serveStart(cfg *Config, svc *exchange.Service, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		sessionID := ps.ByName("session")

		assignments, err := svc.Start(r.Context(), sessionID)
		if err != nil {
			writeError(cfg, w, r, err, errs)

			return
		}

		logf(cfg, "SANTA: Drew %d assignments for %s", len(assignments), sessionID)

		writeJSON(cfg, w, r, http.StatusOK, startResponse{
			apiResponse:     apiResponse{Success: true, Message: "The draw is done! Everybody can now look up their assignment."},
			AssignmentCount: len(assignments),
		}, errs)
	}
}

func serveReset(cfg *Config, svc *exchange.Service, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		sessionID := ps.ByName("session")

		if err := svc.Reset(r.Context(), sessionID); err != nil {
			writeError(cfg, w, r, err, errs)

			return
		}

		logf(cfg, "SANTA: Reset %s", sessionID)

		writeJSON(cfg, w, r, http.StatusOK, apiResponse{Success: true, Message: "The exchange was reset."}, errs)
	}
}

func serveLookup(cfg *Config, svc *exchange.Service, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		receiver, ok, err := svc.Lookup(r.Context(), ps.ByName("session"), nameParam(ps))
		if err != nil {
			writeError(cfg, w, r, err, errs)

			return
		}

		resp := lookupResponse{apiResponse: apiResponse{Success: true, Message: "No assignment found."}}
		if ok {
			resp.Assignment = &receiver
			resp.Message = "You are giving a present to " + receiver + "."
		}

		writeJSON(cfg, w, r, http.StatusOK, resp, errs)
	}
}

func serveHeartbeat(cfg *Config, svc *exchange.Service, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		fields, err := requestFields(w, r)
		if err != nil {
			writeError(cfg, w, r, err, errs)

			return
		}

		if err := svc.Heartbeat(r.Context(), ps.ByName("session"), fields["username"], realIP(r)); err != nil {
			writeError(cfg, w, r, err, errs)

			return
		}

		writeJSON(cfg, w, r, http.StatusOK, apiResponse{Success: true, Message: "Heartbeat updated."}, errs)
	}
}
