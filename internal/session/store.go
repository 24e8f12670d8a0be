package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

type entry struct {
	s   *Session
	exp time.Time
}

// Store keeps sessions in memory. Every Get extends the session's lifetime.
type Store struct {
	mu  sync.RWMutex
	m   map[string]entry
	ttl time.Duration
	now func() time.Time
}

// NewStore returns a store whose sessions expire after ttl without use.
func NewStore(ttl time.Duration) *Store {
	return &Store{m: make(map[string]entry), ttl: ttl, now: time.Now}
}

// Put assigns the session a new id and stores it.
func (st *Store) Put(s *Session) string {
	id := uuid.NewString()
	s.ID = id

	st.mu.Lock()
	defer st.mu.Unlock()
	st.m[id] = entry{s: s, exp: st.now().Add(st.ttl)}
	return id
}

// Get returns a live session.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	e, ok := st.m[id]
	if !ok || st.now().After(e.exp) {
		return nil, ErrNotFound
	}
	e.exp = st.now().Add(st.ttl)
	st.m[id] = e
	return e.s, nil
}

// Delete removes a session.
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.m[id]; !ok {
		return ErrNotFound
	}
	delete(st.m, id)
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.m)
}

// Sweep drops expired sessions and returns how many were removed.
func (st *Store) Sweep() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	now := st.now()
	n := 0
	for id, e := range st.m {
		if now.After(e.exp) {
			delete(st.m, id)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done. onSweep, if set, receives
// the number of removed sessions.
func (st *Store) Run(ctx context.Context, interval time.Duration, onSweep func(int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := st.Sweep(); n > 0 && onSweep != nil {
				onSweep(n)
			}
		}
	}
}
