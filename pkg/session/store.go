// Package session holds per-citizen conversation state in memory.
//
// The store is the only shared mutable structure in the core. Access is
// serialized per user key: a turn's read-modify-write runs under that key's
// lock, so two inbound events for the same citizen can never interleave,
// while turns for different citizens proceed in parallel.
//
// Sessions are not persisted; after a restart every conversation begins
// again at Idle. There is no eviction, but LastTouched is recorded so a TTL
// sweep can be layered on later.
package session

import (
	"sync"
	"time"

	"vozlocal/pkg/proto"
)

// Session is the ephemeral conversation state for one citizen.
type Session struct {
	Step           proto.SessionStep
	PendingSummary string               // bill summary, owned by AwaitingQuestion
	PendingBillID  string               // bill the summary belongs to
	PendingBatch   []proto.CurationItem // curated items, owned by AwaitingAudioChoice
	LastTouched    time.Time
}

// Reset returns the session to Idle and clears all pending fields.
func (s *Session) Reset() {
	s.Step = proto.StepIdle
	s.PendingSummary = ""
	s.PendingBillID = ""
	s.PendingBatch = nil
}

type entry struct {
	mu   sync.Mutex
	sess Session
}

// Store maps user keys to sessions with per-key locking.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	clock   func() time.Time
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
		clock:   time.Now,
	}
}

func (st *Store) entryFor(key string) *entry {
	st.mu.Lock()
	defer st.mu.Unlock()

	e, ok := st.entries[key]
	if !ok {
		e = &entry{sess: Session{Step: proto.StepIdle}}
		st.entries[key] = e
	}
	return e
}

// Do runs fn under the key's lock with the current session. The mutated
// session is committed when fn returns nil; on error the previous state is
// restored, so a failed turn never leaves a half-written session behind.
func (st *Store) Do(key string, fn func(*Session) error) error {
	e := st.entryFor(key)

	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.sess
	e.sess.LastTouched = st.clock()

	if err := fn(&e.sess); err != nil {
		touched := e.sess.LastTouched
		e.sess = before
		e.sess.LastTouched = touched
		return err
	}
	return nil
}

// Snapshot returns a copy of the session for key, and whether one exists.
// Intended for tests and diagnostics; turn processing goes through Do.
func (st *Store) Snapshot(key string) (Session, bool) {
	st.mu.Lock()
	e, ok := st.entries[key]
	st.mu.Unlock()
	if !ok {
		return Session{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	sess := e.sess
	sess.PendingBatch = append([]proto.CurationItem(nil), e.sess.PendingBatch...)
	return sess, true
}

// Len returns the number of tracked sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.entries)
}
