// Package runtime holds the live-connection registry, the broadcast
// router, and the queue bridge. It propagates events without containing
// poll or vote business rules.
package runtime

import (
	"sync"

	"github.com/samber/lo"

	"livepoll/contract"
	"livepoll/domain"
)

type session struct {
	user domain.User
	sink contract.EventSink
}

// Registry is the single piece of mutable shared state touched by every
// connection task. One lock guards the map; register, unregister and
// snapshot are each atomic with respect to one another, so a snapshot
// never observes a half-inserted entry.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]session)}
}

// Register inserts a live connection for a user. If the user already
// has one, the stale handle is closed and replaced (last-write-wins):
// the previous session is treated as superseded, not as an error.
func (r *Registry) Register(user domain.User, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.sessions[user.ID]; ok {
		_ = old.sink.Close()
	}
	r.sessions[user.ID] = session{user: user, sink: sink}
}

// Unregister removes a user's entry and closes its handle.
// No-op if the user is not present (idempotent).
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[userID]; ok {
		_ = s.sink.Close()
		delete(r.sessions, userID)
	}
}

// Release removes the entry only if it still points at the given sink,
// reporting whether it did. A connection evicted by Register calls this
// on its way out without tearing down the session that replaced it.
func (r *Registry) Release(userID string, sink contract.EventSink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[userID]
	if !ok || s.sink != sink {
		return false
	}
	_ = s.sink.Close()
	delete(r.sessions, userID)
	return true
}

// Lookup returns the cached display metadata for a connected user.
// The connection handle itself never leaves the registry.
func (r *Registry) Lookup(userID string) (domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[userID]
	return s.user, ok
}

// SnapshotIDs returns a point-in-time view of connected user ids.
func (r *Registry) SnapshotIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Keys(r.sessions)
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// sinkFor borrows a handle for the duration of one send.
func (r *Registry) sinkFor(userID string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[userID]
	return s.sink, ok
}
