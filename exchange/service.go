/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/santabox/derangement"
	"github.com/google/uuid"
)

const DefaultPresenceWindow = 5 * time.Minute

// errUnchanged lets a mutation bail out without writing or notifying.
var errUnchanged = errors.New("unchanged")

type Options struct {
	Generator      *derangement.Generator
	Now            func() time.Time
	NewID          func() string
	PresenceWindow time.Duration
}

// Service applies lifecycle operations to sessions held in a Store. Every
// mutation goes through Store.Update, so concurrent calls on one session are
// applied one at a time.
type Service struct {
	store          Store
	gen            *derangement.Generator
	now            func() time.Time
	newID          func() string
	presenceWindow time.Duration

	mu        sync.RWMutex
	listeners []func(id string)
}

// View is what a participant's client is shown. It only ever carries the
// viewer's own assignment.
type View struct {
	ID               string        `json:"id"`
	Status           Status        `json:"status"`
	Participants     []Participant `json:"participants"`
	Online           []Presence    `json:"online_users"`
	AssignmentsReady bool          `json:"assignments_ready"`
	UserAssignment   *string       `json:"user_assignment"`
	Stats            Stats         `json:"stats"`
	CreatedAt        time.Time     `json:"created"`
	LastActive       time.Time     `json:"last_activity"`
}

type Stats struct {
	ParticipantCount int    `json:"participant_count"`
	OnlineCount      int    `json:"online_count"`
	Status           Status `json:"status"`
}

// NewID returns a 32 character hex session identifier.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func NewService(store Store, opts Options) *Service {
	if opts.Generator == nil {
		opts.Generator = derangement.New()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = NewID
	}
	if opts.PresenceWindow <= 0 {
		opts.PresenceWindow = DefaultPresenceWindow
	}

	return &Service{
		store:          store,
		gen:            opts.Generator,
		now:            opts.Now,
		newID:          opts.NewID,
		presenceWindow: opts.PresenceWindow,
	}
}

// Subscribe registers fn to be called with the session ID after every
// successful mutation.
func (s *Service) Subscribe(fn func(id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listeners = append(s.listeners, fn)
}

func (s *Service) notify(id string) {
	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(id)
	}
}

func (s *Service) Create(ctx context.Context) (Session, error) {
	const attempts = 5

	for range attempts {
		session := newSession(s.newID(), s.now())

		err := s.store.Create(ctx, session)
		switch {
		case err == nil:
			return session, nil
		case errors.Is(err, ErrExists):
			continue
		default:
			return Session{}, err
		}
	}

	return Session{}, fmt.Errorf("create session: %w", ErrExists)
}

func (s *Service) Get(ctx context.Context, id string) (Session, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Register(ctx context.Context, id, name, addr string) (Participant, error) {
	clean, err := validateName(name)
	if err != nil {
		return Participant{}, err
	}

	var added Participant
	err = s.update(ctx, id, func(sess *Session, now time.Time) error {
		if sess.Status != StatusCollecting {
			return wrongState("register", sess.Status)
		}
		if sess.participantIndex(clean) >= 0 {
			return fmt.Errorf("%w: %q", ErrDuplicateName, clean)
		}

		added = Participant{Name: clean, JoinedAt: now, Addr: addr}
		sess.Participants = append(sess.Participants, added)
		s.markSeen(sess, clean, addr, now)

		return nil
	})
	if err != nil {
		return Participant{}, err
	}

	return added, nil
}

// Unregister removes name from the session. Removing an unknown name is not
// an error.
func (s *Service) Unregister(ctx context.Context, id, name string) error {
	return s.update(ctx, id, func(sess *Session, _ time.Time) error {
		if sess.Status != StatusCollecting {
			return wrongState("unregister", sess.Status)
		}

		i := sess.participantIndex(name)
		if i < 0 {
			return errUnchanged
		}
		sess.Participants = append(sess.Participants[:i], sess.Participants[i+1:]...)

		return nil
	})
}

// Start draws the assignments and moves the session to StatusAssigned in a
// single update.
func (s *Service) Start(ctx context.Context, id string) ([]Assignment, error) {
	var assignments []Assignment
	err := s.update(ctx, id, func(sess *Session, now time.Time) error {
		if sess.Status != StatusCollecting {
			return wrongState("start", sess.Status)
		}
		if len(sess.Participants) < 2 {
			return ErrInsufficientParticipants
		}

		pairs, err := s.gen.Pairs(sess.Names())
		if err != nil {
			return err
		}

		assignments = make([]Assignment, len(pairs))
		for i, p := range pairs {
			assignments[i] = Assignment{Giver: p.Giver, Receiver: p.Receiver, CreatedAt: now}
		}
		sess.Assignments = assignments
		sess.Status = StatusAssigned

		return nil
	})
	if err != nil {
		return nil, err
	}

	return assignments, nil
}

// Reset clears participants and assignments. Presence is kept.
func (s *Service) Reset(ctx context.Context, id string) error {
	return s.update(ctx, id, func(sess *Session, _ time.Time) error {
		sess.Participants = []Participant{}
		sess.Assignments = []Assignment{}
		sess.Status = StatusCollecting

		return nil
	})
}

// Lookup returns who name gives to. A session that has not been started, or
// a name that is not a giver, yields ok == false and no error.
func (s *Service) Lookup(ctx context.Context, id, name string) (receiver string, ok bool, err error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return "", false, err
	}
	if cleanName(name) == "" {
		return "", false, nil
	}

	receiver, ok = session.receiverFor(name)

	return receiver, ok, nil
}

func (s *Service) Heartbeat(ctx context.Context, id, name, addr string) error {
	clean, err := validateName(name)
	if err != nil {
		return err
	}

	return s.update(ctx, id, func(sess *Session, now time.Time) error {
		s.markSeen(sess, clean, addr, now)

		return nil
	})
}

// Online lists everybody seen within the presence window.
func (s *Service) Online(ctx context.Context, id string) ([]Presence, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return session.online(s.now().Add(-s.presenceWindow)), nil
}

func (s *Service) View(ctx context.Context, id, viewer string) (View, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return View{}, err
	}

	participants := make([]Participant, len(session.Participants))
	for i, p := range session.Participants {
		participants[i] = Participant{Name: p.Name, JoinedAt: p.JoinedAt}
	}

	online := session.online(s.now().Add(-s.presenceWindow))
	for i := range online {
		online[i].Addr = ""
	}

	v := View{
		ID:               session.ID,
		Status:           session.Status,
		Participants:     participants,
		Online:           online,
		AssignmentsReady: session.Status == StatusAssigned,
		Stats: Stats{
			ParticipantCount: len(participants),
			OnlineCount:      len(online),
			Status:           session.Status,
		},
		CreatedAt:  session.CreatedAt,
		LastActive: session.LastActive,
	}

	if cleanName(viewer) != "" {
		if receiver, ok := session.receiverFor(viewer); ok {
			v.UserAssignment = &receiver
		}
	}

	return v, nil
}

// Expire deletes sessions idle since before cutoff.
func (s *Service) Expire(ctx context.Context, cutoff time.Time) (int, error) {
	return s.store.Expire(ctx, cutoff)
}

func (s *Service) update(ctx context.Context, id string, fn func(*Session, time.Time) error) error {
	_, err := s.store.Update(ctx, id, func(sess *Session) error {
		now := s.now()
		if err := fn(sess, now); err != nil {
			return err
		}
		sess.LastActive = now

		return nil
	})
	if errors.Is(err, errUnchanged) {
		return nil
	}
	if err != nil {
		return err
	}

	s.notify(id)

	return nil
}

// markSeen records name as present and drops entries last seen before the
// presence window, so the stored record only holds people still online.
func (s *Service) markSeen(sess *Session, name, addr string, now time.Time) {
	if sess.Presence == nil {
		sess.Presence = make(map[string]Presence)
	}

	cutoff := now.Add(-s.presenceWindow)
	for key, p := range sess.Presence {
		if p.LastSeen.Before(cutoff) {
			delete(sess.Presence, key)
		}
	}

	sess.Presence[foldName(name)] = Presence{Name: name, LastSeen: now, Addr: addr}
}
