package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/example/captionkit/internal/app"
	"github.com/example/captionkit/internal/notify"
)

// DefaultSessionTTL is how long an untouched session survives.
const DefaultSessionTTL = 30 * time.Minute

// ErrUnknownSession is returned for ids that never existed or have expired.
var ErrUnknownSession = errors.New("unknown session")

// Factory builds the App for a new session. Toasts raised by the App must
// reach rec so they can be returned with the next response.
type Factory func(rec *notify.Recorder) *app.App

// Session is one client's App plus the toasts it has not collected yet.
type Session struct {
	id       string
	app      *app.App
	toasts   *notify.Recorder
	created  time.Time
	lastSeen time.Time
}

// ID is the session's public identifier.
func (s *Session) ID() string { return s.id }

// App is the session's application state.
func (s *Session) App() *app.App { return s.app }

// Sessions holds one App per browser session.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
	factory  Factory
	ttl      time.Duration
	now      func() time.Time
}

// NewSessions creates an empty session table.
func NewSessions(factory Factory, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{
		sessions: make(map[string]*Session),
		factory:  factory,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create starts a session on the search page.
func (s *Sessions) Create() *Session {
	rec := &notify.Recorder{}
	now := s.now()
	sess := &Session{
		id:       uuid.New().String(),
		app:      s.factory(rec),
		toasts:   rec,
		created:  now,
		lastSeen: now,
	}
	s.mu.Lock()
	s.sessions[sess.id] = sess
	n := len(s.sessions)
	s.mu.Unlock()
	logrus.WithFields(logrus.Fields{"session": sess.id, "active": n}).Info("session created")
	return sess
}

// Get returns a live session and marks it as used.
func (s *Sessions) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrUnknownSession
	}
	sess.lastSeen = s.now()
	return sess, nil
}

// Delete discards a session and cancels its outstanding requests.
func (s *Sessions) Delete(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return ErrUnknownSession
	}
	sess.app.Close()
	logrus.WithField("session", id).Info("session discarded")
	return nil
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Expire closes sessions idle for longer than the TTL and returns how many
// were removed.
func (s *Sessions) Expire() int {
	cutoff := s.now().Add(-s.ttl)
	var stale []*Session
	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			stale = append(stale, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()
	for _, sess := range stale {
		sess.app.Close()
		logrus.WithFields(logrus.Fields{
			"session": sess.id,
			"age":     s.now().Sub(sess.created).Round(time.Second),
		}).Info("session expired")
	}
	return len(stale)
}

// Sweep expires idle sessions every interval until ctx is done, then
// closes whatever is left.
func (s *Sessions) Sweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.ttl / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Expire()
		case <-ctx.Done():
			s.closeAll()
			return
		}
	}
}

func (s *Sessions) closeAll() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()
	for _, sess := range all {
		sess.app.Close()
	}
}
