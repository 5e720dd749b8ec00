package wsocket

import (
	"sync"

	"bus_tracker_go_backend/internal/models"

	"github.com/google/uuid"
)

// Subscription is the authorization state of one connection.
type Subscription struct {
	UserID   uuid.UUID
	Role     models.Role
	BusID    string
	AdminAll bool
}

type Entry struct {
	Client *Client
	Subscription
}

// Registry tracks every open connection. It is a membership store only;
// authorization decisions are made by the Router. Subscription state lives
// here and nowhere else.
type Registry struct {
	mu      sync.RWMutex
	clients map[*Client]*Subscription
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[*Client]*Subscription)}
}

func (r *Registry) Register(c *Client, role models.Role, adminAll bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c] = &Subscription{UserID: c.UserID, Role: role, AdminAll: adminAll}
}

// SetSubscription replaces the connection's subscription. It reports false
// when the connection is no longer registered.
func (r *Registry) SetSubscription(c *Client, busID string, adminAll bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.clients[c]
	if !ok {
		return false
	}
	sub.BusID = busID
	sub.AdminAll = adminAll
	return true
}

// Unregister is idempotent; it reports whether c was registered.
func (r *Registry) Unregister(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[c]; !ok {
		return false
	}
	delete(r.clients, c)
	return true
}

// Snapshot copies the current membership.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]Entry, 0, len(r.clients))
	for c, sub := range r.clients {
		entries = append(entries, Entry{Client: c, Subscription: *sub})
	}
	return entries
}

func (r *Registry) Lookup(c *Client) (Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.clients[c]
	if !ok {
		return Subscription{}, false
	}
	return *sub, true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// CloseAll closes every registered connection, e.g. on shutdown. Handlers
// unregister their own connections as the sockets drop.
func (r *Registry) CloseAll(code int, reason string) int {
	entries := r.Snapshot()
	for _, entry := range entries {
		entry.Client.Close(code, reason)
	}
	return len(entries)
}
