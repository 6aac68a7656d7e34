package ws

import (
	"sync"

	pkglogger "github.com/guvercin/messaging-backend/pkg/logger"
)

// Registry is the authoritative map of username to at most one live
// session. All operations are short critical sections; no network I/O
// happens while the lock is held.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]Session),
	}
}

// Register binds a session to a username. The newly connecting session
// always wins: any previously registered session is returned so the
// caller can close it.
func (r *Registry) Register(username string, sess Session) Session {
	r.mu.Lock()
	prev := r.sessions[username]
	r.sessions[username] = sess
	r.mu.Unlock()

	if prev != nil {
		pkglogger.GetLogger().Info().
			Str("username", username).
			Msg("session replaced by newer connection")
	}
	return prev
}

// Unregister removes the entry only if the registered session is the
// given one, so a late disconnect from a replaced session cannot evict
// its successor.
func (r *Registry) Unregister(username string, sess Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.sessions[username]; ok && current == sess {
		delete(r.sessions, username)
		return true
	}
	return false
}

// Lookup returns the live session for a username, if any.
func (r *Registry) Lookup(username string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[username]
	return sess, ok
}

// Broadcast sends the payload to every registered session. Sessions are
// snapshotted under the read lock; the sends happen outside it, each
// serialized by the session's own write lock.
func (r *Registry) Broadcast(payload []byte) {
	r.mu.RLock()
	snapshot := make([]Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		snapshot = append(snapshot, sess)
	}
	r.mu.RUnlock()

	for _, sess := range snapshot {
		if err := sess.SendText(payload); err != nil {
			pkglogger.GetLogger().Warn().
				Err(err).
				Str("username", sess.Username()).
				Msg("broadcast send failed")
		}
	}
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
