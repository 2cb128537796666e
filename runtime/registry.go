package runtime

import (
	"chat-signal/contract"
	"chat-signal/domain"
	"chat-signal/domain/event"
	"chat-signal/observability"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// PresenceFunc is invoked after every successful register or unregister,
// outside the registry lock.
type PresenceFunc func(userID string, status domain.PresenceStatus)

// Registry maps a user to at most one live connection handle.
// Last registration wins: registering a second handle for the same user
// rebinds the entry without closing the previous handle.
type Registry struct {
	mu       sync.RWMutex
	log      *slog.Logger
	metrics  *observability.Metrics
	sessions map[string]contract.ConnectionHandle // map user -> handle
	hooks    []PresenceFunc
}

var _ contract.IRegistry = (*Registry)(nil)

func NewRegistry(log *slog.Logger, metrics *observability.Metrics) *Registry {
	return &Registry{
		log:      log.With("component", "registry"),
		metrics:  metrics,
		sessions: make(map[string]contract.ConnectionHandle),
	}
}

// OnPresenceChange adds a presence hook. Hooks run in the order they were
// added. Call it during wiring.
func (r *Registry) OnPresenceChange(fn PresenceFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

func (r *Registry) Register(userID string, handle contract.ConnectionHandle) {
	r.mu.Lock()
	previous, superseded := r.sessions[userID]
	r.sessions[userID] = handle
	size := len(r.sessions)
	hooks := slices.Clone(r.hooks)
	r.mu.Unlock()

	r.metrics.ConnectedUsers.Set(float64(size))
	if superseded && previous.ID() != handle.ID() {
		r.log.Debug("Handle superseded", "user_id", userID,
			"previous", previous.ID(), "current", handle.ID())
	}
	r.log.Debug("User registered", "user_id", userID, "conn_id", handle.ID())
	for _, hook := range hooks {
		hook(userID, domain.Online)
	}
}

// Unregister removes the entry bound to handle, if any, and reports the user
// that went offline. A handle that was superseded or already removed is a no-op.
func (r *Registry) Unregister(handle contract.ConnectionHandle) (string, bool) {
	r.mu.Lock()
	var userID string
	found := false
	for uid, h := range r.sessions {
		if h.ID() == handle.ID() {
			userID, found = uid, true
			delete(r.sessions, uid)
			break
		}
	}
	size := len(r.sessions)
	hooks := slices.Clone(r.hooks)
	r.mu.Unlock()

	if !found {
		return "", false
	}
	r.metrics.ConnectedUsers.Set(float64(size))
	r.log.Debug("User unregistered", "user_id", userID, "conn_id", handle.ID())
	for _, hook := range hooks {
		hook(userID, domain.Offline)
	}
	return userID, true
}

func (r *Registry) Lookup(userID string) (contract.ConnectionHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.sessions[userID]
	return h, ok
}

// Notify pushes e to userID if reachable. Absence is not an error.
// A handle that refuses the event is treated as disconnected.
func (r *Registry) Notify(userID string, e event.Event) bool {
	h, ok := r.Lookup(userID)
	if !ok {
		return false
	}
	if err := h.Send(e); err != nil {
		r.metrics.OutboundDropped.Inc()
		r.log.Debug("Delivery failed, dropping handle",
			"user_id", userID, "event", e.Name(), "error", err)
		h.Close()
		r.Unregister(h)
		return false
	}
	r.metrics.OutboundEvents.WithLabelValues(e.Name()).Inc()
	return true
}

// Others returns a snapshot of every handle not bound to userID.
func (r *Registry) Others(userID string) []contract.ConnectionHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	others := lo.OmitByKeys(r.sessions, []string{userID})
	return lo.Values(others)
}

// Online returns the registered users, sorted.
func (r *Registry) Online() []string {
	r.mu.RLock()
	res := lo.Keys(r.sessions)
	r.mu.RUnlock()
	sort.Strings(res)
	return res
}
