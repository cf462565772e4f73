package chat

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
)

// noPartner is the PartnerID of a connection that is not paired.
const noPartner = ""

// Connection is the matchmaking state of one open transport session.
type Connection struct {
	ID        string
	PartnerID string
	IsTyping  bool
}

// Paired reports whether the connection currently has a partner.
func (c *Connection) Paired() bool {
	return c.PartnerID != noPartner
}

// unpair clears the partner and the typing state.
func (c *Connection) unpair() {
	c.PartnerID = noPartner
	c.IsTyping = false
}

// Registry holds one Connection per open transport session.
// It is not safe for concurrent use; the Matchmaker serializes access.
type Registry struct {
	connections map[string]*Connection
}

func NewRegistry() *Registry {
	return &Registry{connections: make(map[string]*Connection)}
}

// Register creates an unpaired, not typing entry for id.
func (r *Registry) Register(id string) (*Connection, error) {
	if _, ok := r.connections[id]; ok {
		return nil, fmt.Errorf("register %s: %w", id, ErrDuplicateID)
	}
	conn := &Connection{ID: id}
	r.connections[id] = conn
	return conn, nil
}

func (r *Registry) Get(id string) (*Connection, error) {
	conn, ok := r.connections[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return conn, nil
}

// Remove deletes the entry for id. Removing a missing id is an error.
func (r *Registry) Remove(id string) error {
	if _, ok := r.connections[id]; !ok {
		return fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	delete(r.connections, id)
	return nil
}

func (r *Registry) Len() int {
	return len(r.connections)
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	ids := lo.Keys(r.connections)
	sort.Strings(ids)
	return ids
}
