/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package exchange runs the lifecycle of a gift exchange session: people
// register under a display name, somebody starts the draw, and everybody
// looks up who they are giving to.
package exchange

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const (
	MinNameLength = 2
	MaxNameLength = 50
)

type Status string

const (
	StatusCollecting Status = "collecting"
	StatusAssigned   Status = "assigned"
)

type Participant struct {
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined"`
	Addr     string    `json:"ip,omitempty"`
}

type Assignment struct {
	Giver     string    `json:"giver"`
	Receiver  string    `json:"receiver"`
	CreatedAt time.Time `json:"created"`
}

type Presence struct {
	Name     string    `json:"name"`
	LastSeen time.Time `json:"last_seen"`
	Addr     string    `json:"ip,omitempty"`
}

// Session is the persisted record of one exchange. Presence is keyed by the
// folded form of the name.
type Session struct {
	ID           string              `json:"id"`
	CreatedAt    time.Time           `json:"created"`
	LastActive   time.Time           `json:"last_activity"`
	Status       Status              `json:"status"`
	Participants []Participant       `json:"participants"`
	Assignments  []Assignment        `json:"assignments"`
	Presence     map[string]Presence `json:"online_users"`
}

func newSession(id string, now time.Time) Session {
	return Session{
		ID:           id,
		CreatedAt:    now,
		LastActive:   now,
		Status:       StatusCollecting,
		Participants: []Participant{},
		Assignments:  []Assignment{},
		Presence:     map[string]Presence{},
	}
}

// Clone returns a deep copy, so callers never share slices or maps with a
// store.
func (s Session) Clone() Session {
	out := s
	out.Participants = slices.Clone(s.Participants)
	out.Assignments = slices.Clone(s.Assignments)
	if out.Participants == nil {
		out.Participants = []Participant{}
	}
	if out.Assignments == nil {
		out.Assignments = []Assignment{}
	}

	out.Presence = make(map[string]Presence, len(s.Presence))
	for k, v := range s.Presence {
		out.Presence[k] = v
	}

	return out
}

// Names returns the participant names in registration order.
func (s Session) Names() []string {
	names := make([]string, len(s.Participants))
	for i, p := range s.Participants {
		names[i] = p.Name
	}
	return names
}

func (s Session) participantIndex(name string) int {
	key := foldName(name)
	for i, p := range s.Participants {
		if foldName(p.Name) == key {
			return i
		}
	}
	return -1
}

func (s Session) receiverFor(name string) (string, bool) {
	if s.Status != StatusAssigned {
		return "", false
	}

	key := foldName(name)
	for _, a := range s.Assignments {
		if foldName(a.Giver) == key {
			return a.Receiver, true
		}
	}

	return "", false
}

// online returns presence entries seen at or after cutoff, ordered by name.
func (s Session) online(cutoff time.Time) []Presence {
	out := make([]Presence, 0, len(s.Presence))
	for _, p := range s.Presence {
		if p.LastSeen.Before(cutoff) {
			continue
		}
		out = append(out, p)
	}

	slices.SortFunc(out, func(a, b Presence) int {
		return strings.Compare(foldName(a.Name), foldName(b.Name))
	})

	return out
}

// cleanName trims and NFC-normalizes a display name.
func cleanName(raw string) string {
	return norm.NFC.String(strings.TrimSpace(raw))
}

// foldName is the case-insensitive identity of a display name. A Caser is
// stateful, so one is built per call.
func foldName(name string) string {
	return cases.Fold().String(cleanName(name))
}

func validateName(raw string) (string, error) {
	name := cleanName(raw)

	switch n := utf8.RuneCountInString(name); {
	case n == 0:
		return "", invalidName("a name is required")
	case n < MinNameLength:
		return "", invalidName("a name must be at least %d characters", MinNameLength)
	case n > MaxNameLength:
		return "", invalidName("a name must be at most %d characters", MaxNameLength)
	}

	return name, nil
}
