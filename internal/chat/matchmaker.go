package chat

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/omochice/stranger-chat/pkg/protocol"
)

// Stats is a snapshot of the matchmaking counters.
type Stats struct {
	// Active is the number of connections inside a pairing.
	Active int
	// Total is the number of open connections.
	Total int
	// Waiting is the id occupying the waiting slot, or empty.
	Waiting string
}

// Matchmaker pairs connections two by two through a single waiting slot.
//
// Every operation runs under one lock that also guards the registry, so a
// pairing decision and the registry writes it implies are atomic. Outbound
// events are handed to the Broadcaster while the lock is held, which keeps
// their order identical to the order of the transitions that produced them.
type Matchmaker struct {
	mu          sync.Mutex
	registry    *Registry
	waitingID   string
	activeCount int
	totalCount  int
	broadcaster Broadcaster
	log         *slog.Logger
}

func NewMatchmaker(broadcaster Broadcaster, log *slog.Logger) *Matchmaker {
	return &Matchmaker{
		registry:    NewRegistry(),
		broadcaster: broadcaster,
		log:         log,
	}
}

// Connect registers a new connection and tries to pair it.
func (m *Matchmaker) Connect(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.registry.Register(id); err != nil {
		return err
	}
	m.totalCount++
	m.log.Info("Connection opened", "connection_id", id, "total", m.totalCount)

	return m.joinOrPair(id)
}

// JoinOrPair pairs id with the waiting connection, or makes id the waiting one.
func (m *Matchmaker) JoinOrPair(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.joinOrPair(id)
}

func (m *Matchmaker) joinOrPair(id string) error {
	conn, err := m.registry.Get(id)
	if err != nil {
		return err
	}
	if conn.Paired() {
		return fmt.Errorf("join %s: %w", id, ErrAlreadyPaired)
	}

	partner := m.waitingPartner(id)
	if partner == nil {
		m.waitingID = id
		m.log.Debug("Connection waiting for a partner", "connection_id", id)
		m.broadcastStats()
		return nil
	}

	conn.PartnerID, conn.IsTyping = partner.ID, false
	partner.PartnerID, partner.IsTyping = id, false
	m.waitingID = noPartner
	m.activeCount += 2

	m.broadcaster.SendTo(id, protocol.Paired())
	m.broadcaster.SendTo(partner.ID, protocol.Paired())
	m.log.Debug("Connections paired", "connection_id", id, "partner_id", partner.ID, "active", m.activeCount)

	m.broadcastStats()
	return nil
}

// waitingPartner returns the connection id can be paired with, if any.
// A slot naming id itself or an id that vanished from the registry is not a partner.
func (m *Matchmaker) waitingPartner(id string) *Connection {
	if m.waitingID == noPartner || m.waitingID == id {
		return nil
	}
	partner, err := m.registry.Get(m.waitingID)
	if err != nil {
		m.log.Warn("Reclaiming stale waiting slot", "waiting_id", m.waitingID)
		m.waitingID = noPartner
		return nil
	}
	return partner
}

// EndSession ends the conversation id is part of. Neither side re-enters the
// waiting slot; both have to request a new partner explicitly.
func (m *Matchmaker) EndSession(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, err := m.registry.Get(id)
	if err != nil {
		return err
	}
	partnerID := conn.PartnerID

	if m.waitingID == id || (partnerID != noPartner && m.waitingID == partnerID) {
		m.waitingID = noPartner
	}
	conn.unpair()

	if partnerID != noPartner {
		if partner, err := m.registry.Get(partnerID); err == nil {
			partner.unpair()
			m.broadcaster.SendTo(partnerID, protocol.SessionEnded(protocol.RolePartner, ""))
		}
		m.activeCount -= 2
	}
	m.broadcaster.SendTo(id, protocol.SessionEnded(protocol.RoleSelf, ""))
	m.log.Debug("Session ended", "connection_id", id, "partner_id", partnerID, "active", m.activeCount)

	m.broadcastStats()
	return nil
}

// Disconnect cleans up after a connection that is gone. Calling it for an
// id that is not registered, including a second time for the same id, does nothing.
func (m *Matchmaker) Disconnect(id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, err := m.registry.Get(id)
	if err != nil {
		m.log.Debug("Disconnect for unknown connection", "connection_id", id, "reason", reason)
		return nil
	}
	partnerID := conn.PartnerID

	switch {
	case partnerID != noPartner:
		if partner, err := m.registry.Get(partnerID); err == nil {
			m.broadcaster.SendTo(partnerID, protocol.SessionEnded(protocol.RolePartner, reason))
			partner.unpair()
		}
		m.activeCount -= 2
	case m.waitingID == id:
		// Waiting connections were never counted as active.
		m.waitingID = noPartner
	}

	if err := m.registry.Remove(id); err != nil {
		return err
	}
	m.totalCount--
	m.log.Info("Connection closed", "connection_id", id, "reason", reason, "total", m.totalCount)

	m.broadcastStats()
	return nil
}

// Chat relays message to the partner of id. Without a registered partner it is dropped.
func (m *Matchmaker) Chat(id, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, partner, ok := m.partnerOf(id)
	if !ok {
		return
	}
	m.broadcaster.SendTo(partner.ID, protocol.ChatMessage(message))
}

// Typing relays a typing state change of id to its partner.
// Repeating the last announced state sends nothing.
func (m *Matchmaker) Typing(id string, typing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, partner, ok := m.partnerOf(id)
	if !ok {
		return
	}
	if conn.IsTyping == typing {
		return
	}
	conn.IsTyping = typing
	m.broadcaster.SendTo(partner.ID, protocol.TypingState(typing))
}

// partnerOf returns the connection of id and its registered partner.
func (m *Matchmaker) partnerOf(id string) (conn, partner *Connection, ok bool) {
	conn, err := m.registry.Get(id)
	if err != nil || !conn.Paired() {
		return nil, nil, false
	}
	partner, err = m.registry.Get(conn.PartnerID)
	if err != nil {
		return nil, nil, false
	}
	return conn, partner, true
}

func (m *Matchmaker) broadcastStats() {
	m.broadcaster.BroadcastAll(protocol.PresenceStats(m.activeCount))
}

func (m *Matchmaker) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{Active: m.activeCount, Total: m.totalCount, Waiting: m.waitingID}
}

// Connection returns a copy of the state of id.
func (m *Matchmaker) Connection(id string) (Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, err := m.registry.Get(id)
	if err != nil {
		return Connection{}, err
	}
	return *conn, nil
}

// CheckInvariants verifies the matchmaking invariants and returns every violation found.
func (m *Matchmaker) CheckInvariants() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	paired := 0
	for _, id := range m.registry.IDs() {
		conn, _ := m.registry.Get(id)
		if !conn.Paired() {
			continue
		}
		paired++
		partner, err := m.registry.Get(conn.PartnerID)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("%s is paired with unregistered %s", id, conn.PartnerID))
		case partner.PartnerID != id:
			errs = append(errs, fmt.Errorf("%s is paired with %s but %s is paired with %q", id, partner.ID, partner.ID, partner.PartnerID))
		}
		if conn.PartnerID == id {
			errs = append(errs, fmt.Errorf("%s is paired with itself", id))
		}
	}

	if m.waitingID != noPartner {
		waiting, err := m.registry.Get(m.waitingID)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("waiting slot holds unregistered %s", m.waitingID))
		case waiting.Paired():
			errs = append(errs, fmt.Errorf("waiting slot holds paired %s", m.waitingID))
		}
	}

	if m.activeCount != paired {
		errs = append(errs, fmt.Errorf("active count %d, want %d paired connections", m.activeCount, paired))
	}
	if m.activeCount < 0 || m.activeCount%2 != 0 {
		errs = append(errs, fmt.Errorf("active count %d is negative or odd", m.activeCount))
	}
	if m.totalCount != m.registry.Len() {
		errs = append(errs, fmt.Errorf("total count %d, want %d registered", m.totalCount, m.registry.Len()))
	}
	return errors.Join(errs...)
}
