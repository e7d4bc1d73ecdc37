package coordinator

import (
	"fmt"
	"sync"
	"time"
)

// SessionStore holds live sessions keyed by session id. Sessions are
// per-user-channel, so the id is derived from the channel coordinates and a
// returning user lands in the same session.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore returns an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// SessionID derives the stable session id for a user channel.
func SessionID(channelType, channelID string) string {
	return fmt.Sprintf("%s.%s", channelType, channelID)
}

// GetOrCreate returns the session for a channel, creating it on first
// contact. The second return reports whether the session was created.
func (st *SessionStore) GetOrCreate(channelType, channelID, userID string, now time.Time) (*Session, bool) {
	id := SessionID(channelType, channelID)

	st.mu.RLock()
	sess, ok := st.sessions[id]
	st.mu.RUnlock()
	if ok {
		return sess, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if sess, ok := st.sessions[id]; ok {
		return sess, false
	}
	sess = NewSession(id, channelType, channelID, userID, now)
	st.sessions[id] = sess
	return sess, true
}

// Get returns the session with this id, or nil when none exists.
func (st *SessionStore) Get(id string) *Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.sessions[id]
}

// Evict removes a session. Returns false when it was not present.
func (st *SessionStore) Evict(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return false
	}
	delete(st.sessions, id)
	return true
}

// Sweep evicts sessions idle longer than maxIdle that are not mid-turn.
// Sessions with outstanding requests stay until their turn settles.
func (st *SessionStore) Sweep(now time.Time, maxIdle time.Duration) []string {
	st.mu.Lock()
	defer st.mu.Unlock()

	var evicted []string
	for id, sess := range st.sessions {
		sess.Lock()
		idle := now.Sub(sess.UpdatedAt) > maxIdle
		busy := len(sess.Outstanding) > 0
		sess.Unlock()
		if idle && !busy {
			delete(st.sessions, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// All returns a snapshot of the live sessions.
func (st *SessionStore) All() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sessions := make([]*Session, 0, len(st.sessions))
	for _, sess := range st.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
