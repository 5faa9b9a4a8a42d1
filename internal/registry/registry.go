// Package registry maintains the in-process directory of authenticated
// users to their live realtime connection. One active connection per user
// per namespace; a reconnect replaces the previous entry.
package registry

import "sync"

// Registry is a concurrency-safe userID → connectionID map. It never
// performs I/O; all persistence and cache traffic happens outside the
// critical section. State is lost on restart, which is fine: clients
// reconnect and re-register.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]string
}

func New() *Registry {
	return &Registry{conns: make(map[string]string)}
}

// Register associates the user with a connection, overwriting any prior
// mapping (last-connect-wins). It reports whether the user had no live
// connection before, i.e. whether this transition is offline→online.
func (r *Registry) Register(userID, connID string) (cameOnline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, had := r.conns[userID]
	r.conns[userID] = connID
	return !had
}

// Unregister removes the mapping only when it still points at connID. A
// stale disconnect arriving after a fast reconnect must not clobber the
// newer registration. It reports whether the user actually went offline.
func (r *Registry) Unregister(userID, connID string) (wentOffline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.conns[userID]
	if !ok || current != connID {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Lookup returns the user's current connection, if any. Callers use the
// absence to fall back on durable persistence: realtime push is a latency
// optimization, never the only delivery path.
func (r *Registry) Lookup(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.conns[userID]
	return connID, ok
}

// Len reports the number of live registrations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
