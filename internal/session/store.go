// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SESSION
// =============================================================================

// Session is one browser session. Lock and Unlock serialize turns so a
// session never has more than one request in flight.
type Session struct {
	turn sync.Mutex

	ID         string
	Transcript *Transcript
	StartTime  time.Time

	mu           sync.Mutex
	lastActivity time.Time
	notice       string
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:           id,
		Transcript:   NewTranscript(),
		StartTime:    now,
		lastActivity: now,
	}
}

// Lock waits for any in-flight turn to finish and claims the session.
func (s *Session) Lock() { s.turn.Lock() }

// Unlock releases the session for the next turn.
func (s *Session) Unlock() { s.turn.Unlock() }

// RecordActivity marks the session as used at now.
func (s *Session) RecordActivity(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = now
}

// IdleTime returns how long the session has been unused as of now.
func (s *Session) IdleTime(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActivity)
}

// SetNotice stores a message to show on the next render only.
func (s *Session) SetNotice(notice string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notice = notice
}

// TakeNotice returns the pending notice and clears it.
func (s *Session) TakeNotice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.notice
	s.notice = ""
	return n
}

// =============================================================================
// STORE
// =============================================================================

// Store tracks browser sessions by id.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session

	// idleTimeout expires unused sessions. Zero keeps them forever.
	idleTimeout time.Duration
	now         func() time.Time
}

// NewStore creates a store that expires sessions idle longer than idleTimeout.
func NewStore(idleTimeout time.Duration) *Store {
	return &Store{
		sessions:    make(map[string]*Session),
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// GetOrCreate returns the session for id, creating a fresh one when id is
// unknown or not a valid session id. created reports which happened; the
// caller should reissue the cookie when it is true.
func (s *Store) GetOrCreate(id string) (sess *Session, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if sess, ok := s.sessions[id]; ok {
		sess.RecordActivity(now)
		return sess, false
	}

	sess = newSession(uuid.NewString(), now)
	s.sessions[sess.ID] = sess
	return sess, true
}

// Get returns an existing session.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if ok {
		sess.RecordActivity(s.now())
	}
	return sess, ok
}

// Delete forgets a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions idle longer than the timeout as of now and
// returns how many were removed. A session with a turn in flight is kept
// however long the model takes.
func (s *Store) Sweep(now time.Time) int {
	if s.idleTimeout <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if !sess.turn.TryLock() {
			continue
		}
		if sess.IdleTime(now) > s.idleTimeout {
			delete(s.sessions, id)
			removed++
		}
		sess.turn.Unlock()
	}
	return removed
}

// Run sweeps every interval until ctx is done. onSweep, if set, is told
// how many sessions each sweep removed.
func (s *Store) Run(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := s.Sweep(s.now())
			if onSweep != nil && removed > 0 {
				onSweep(removed)
			}
		}
	}
}
