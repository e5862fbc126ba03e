package services

import (
	"sort"

	"signalhub/internal/core/domain"
)

// IdentityRegistry is the source of truth for who is online. It keeps a
// connection index and a name index so both lookup directions are O(1).
//
// The registry carries no lock of its own: all four core registries share
// invariants (negotiation unwind reads identity state), so the relay
// serializes every event against a single mutex before touching any of them.
type IdentityRegistry struct {
	byConn map[string]*domain.Identity
	byName map[string]*domain.Identity
}

func NewIdentityRegistry() *IdentityRegistry {
	return &IdentityRegistry{
		byConn: make(map[string]*domain.Identity),
		byName: make(map[string]*domain.Identity),
	}
}

// Register binds connID to the display name. A name already bound to a
// different connection is silently taken over: the old connection keeps
// running but no longer resolves to any identity. Re-registering the same
// connection under a new name drops its previous binding first.
func (r *IdentityRegistry) Register(connID, name, avatar string) *domain.Identity {
	if prev, ok := r.byConn[connID]; ok && prev.Name != name {
		delete(r.byName, prev.Name)
	}
	if prev, ok := r.byName[name]; ok && prev.ConnID != connID {
		delete(r.byConn, prev.ConnID)
	}
	id := &domain.Identity{ConnID: connID, Name: name, Avatar: avatar}
	r.byConn[connID] = id
	r.byName[name] = id
	return id
}

func (r *IdentityRegistry) ResolveByConn(connID string) (*domain.Identity, bool) {
	id, ok := r.byConn[connID]
	return id, ok
}

func (r *IdentityRegistry) ResolveByName(name string) (*domain.Identity, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// Unregister removes the binding for connID. Idempotent: a connection that
// never registered, or whose name was taken over, is a no-op. Returns the
// removed identity so the caller can unwind dependent state.
func (r *IdentityRegistry) Unregister(connID string) (*domain.Identity, bool) {
	id, ok := r.byConn[connID]
	if !ok {
		return nil, false
	}
	delete(r.byConn, connID)
	// The name index may already point at a newer connection after takeover.
	if cur, ok := r.byName[id.Name]; ok && cur.ConnID == connID {
		delete(r.byName, id.Name)
	}
	return id, true
}

// Snapshot returns the full presence list sorted by display name.
func (r *IdentityRegistry) Snapshot() []domain.UserEntry {
	users := make([]domain.UserEntry, 0, len(r.byConn))
	for _, id := range r.byConn {
		users = append(users, domain.UserEntry{
			ID:       id.ConnID,
			Username: id.Name,
			Avatar:   id.Avatar,
		})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users
}
