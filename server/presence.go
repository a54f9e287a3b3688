package server

import (
	"log/slog"
	"sync"
)

// Registry tracks open sessions and which user each one is bound to.
// A user has at most one bound session; a second login silently replaces
// the first and the prior handle is orphaned (no forced disconnect).
// Multi-device fan-out would change the value type to a set of handles.
type Registry struct {
	mtx      sync.RWMutex
	sessions map[string]*Session // all open sessions, by handle
	users    map[string]string   // userID -> handle
	handles  map[string]string   // handle -> userID, mirror of users
	log      *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		users:    make(map[string]string),
		handles:  make(map[string]string),
		log:      slog.With("component", "presence"),
	}
}

// Add tracks a newly opened session so it receives broadcasts.
func (r *Registry) Add(s *Session) {
	r.mtx.Lock()
	r.sessions[s.ID] = s
	r.mtx.Unlock()
	metricSessionsActive.Inc()
}

// Drop stops tracking a session. Callers must have handled MarkOffline
// first if the session was bound.
func (r *Registry) Drop(handle string) {
	r.mtx.Lock()
	_, ok := r.sessions[handle]
	delete(r.sessions, handle)
	r.mtx.Unlock()
	if ok {
		metricSessionsActive.Dec()
	}
}

// MarkOnline binds a user to a session and announces the presence change
// to every open session.
func (r *Registry) MarkOnline(userID, handle string) {
	r.mtx.Lock()
	if old, ok := r.users[userID]; ok && old != handle {
		// second login: the previous handle is orphaned
		delete(r.handles, old)
		r.log.Debug("session replaced", "user", userID, "old", old, "new", handle)
	}
	r.users[userID] = handle
	r.handles[handle] = userID
	r.mtx.Unlock()

	r.Broadcast(NewEvent(EventUserStatusChanged, statusPayload{UserID: userID, Status: "online"}))
}

// MarkOffline unbinds the user owning this handle, but only if the
// registry still points at it. A stale disconnect arriving after the
// same user reconnected must not clobber the newer session.
func (r *Registry) MarkOffline(handle string) (string, bool) {
	r.mtx.Lock()
	userID, ok := r.handles[handle]
	if !ok {
		r.mtx.Unlock()
		return "", false
	}
	if r.users[userID] != handle {
		// should not happen given the mirror invariant, but never
		// remove a newer binding
		delete(r.handles, handle)
		r.mtx.Unlock()
		return "", false
	}
	delete(r.users, userID)
	delete(r.handles, handle)
	r.mtx.Unlock()

	r.Broadcast(NewEvent(EventUserStatusChanged, statusPayload{UserID: userID, Status: "offline"}))
	return userID, true
}

// IsOnline reports whether a user has a bound session.
func (r *Registry) IsOnline(userID string) bool {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	_, ok := r.users[userID]
	return ok
}

// SessionFor returns the user's bound session.
func (r *Registry) SessionFor(userID string) (*Session, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	handle, ok := r.users[userID]
	if !ok {
		return nil, false
	}
	s, ok := r.sessions[handle]
	return s, ok
}

// Push delivers an event to a user's session if one is bound. Pushes
// against a stale or saturated session are dropped, not errored.
func (r *Registry) Push(userID string, ev *Event) bool {
	s, ok := r.SessionFor(userID)
	if !ok {
		return false
	}
	if !s.send(ev) {
		metricPushesDropped.Inc()
		r.log.Debug("push dropped", "user", userID, "event", ev.Type)
		return false
	}
	return true
}

// Broadcast sends an event to every open session. The interest set is
// deliberately explicit here so it can later be narrowed to contacts or
// conversation partners without changing callers.
func (r *Registry) Broadcast(ev *Event) {
	r.mtx.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mtx.RUnlock()

	for _, s := range sessions {
		if !s.send(ev) {
			metricPushesDropped.Inc()
		}
	}
}
