// Package protocol defines the events exchanged between the server and its clients.
package protocol

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// EventName identifies an event on the wire.
type EventName string

// Inbound events, sent by clients.
const (
	EventRequestNewPartner EventName = "request-new-partner"
	EventEndSession        EventName = "end-session"
)

// Outbound events, sent by the server.
const (
	EventPaired        EventName = "paired"
	EventSessionEnded  EventName = "session-ended"
	EventPresenceStats EventName = "presence-stats"
)

// Relayed in both directions.
const (
	EventChat   EventName = "chat"
	EventTyping EventName = "typing"
)

// Role tells the receiver of a session-ended event who ended the session.
type Role string

const (
	RoleSelf    Role = "self"
	RolePartner Role = "partner"
)

const (
	fieldEvent   = "event"
	fieldMessage = "message"
	fieldTyping  = "typing"
	fieldRole    = "role"
	fieldReason  = "reason"
	fieldActive  = "active"
)

// ErrMissingEventName is returned when a decoded envelope carries no event name.
var ErrMissingEventName = errors.New("event name is missing")

// Event is the envelope for every event. Only the fields relevant to Name are set.
type Event struct {
	Name    EventName
	Message string
	Typing  bool
	Role    Role
	Reason  string
	Active  int
}

// Paired is sent to both connections of a new pairing.
func Paired() Event {
	return Event{Name: EventPaired}
}

// SessionEnded is sent to the connections of a pairing that was torn down.
func SessionEnded(role Role, reason string) Event {
	return Event{Name: EventSessionEnded, Role: role, Reason: reason}
}

// ChatMessage carries a chat message to the partner.
func ChatMessage(message string) Event {
	return Event{Name: EventChat, Message: message}
}

// TypingState carries the typing state to the partner.
func TypingState(typing bool) Event {
	return Event{Name: EventTyping, Typing: typing}
}

// PresenceStats is broadcast to every connection after each matchmaking change.
func PresenceStats(active int) Event {
	return Event{Name: EventPresenceStats, Active: active}
}

// RequestNewPartner asks the server to pair the sender with someone.
func RequestNewPartner() Event {
	return Event{Name: EventRequestNewPartner}
}

// EndSession asks the server to end the sender's current conversation.
func EndSession() Event {
	return Event{Name: EventEndSession}
}

// Encode encodes the event into bytes using protobuf
func (e *Event) Encode() ([]byte, error) {
	data, err := proto.Marshal(e.toProto())
	if err != nil {
		return nil, fmt.Errorf("failed to encode event %q: %w", e.Name, err)
	}
	return data, nil
}

// Decode decodes bytes into an event using protobuf
func (e *Event) Decode(data []byte) error {
	pbEvent := &structpb.Struct{}
	if err := proto.Unmarshal(data, pbEvent); err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}
	return e.fromProto(pbEvent)
}

// toProto converts the Event to a protobuf Struct keyed by field name.
// Zero-valued payload fields are left out, except typing which is meaningful when false.
func (e *Event) toProto() *structpb.Struct {
	fields := map[string]*structpb.Value{
		fieldEvent: structpb.NewStringValue(string(e.Name)),
	}
	if e.Message != "" {
		fields[fieldMessage] = structpb.NewStringValue(e.Message)
	}
	if e.Name == EventTyping || e.Typing {
		fields[fieldTyping] = structpb.NewBoolValue(e.Typing)
	}
	if e.Role != "" {
		fields[fieldRole] = structpb.NewStringValue(string(e.Role))
	}
	if e.Reason != "" {
		fields[fieldReason] = structpb.NewStringValue(e.Reason)
	}
	if e.Name == EventPresenceStats || e.Active != 0 {
		fields[fieldActive] = structpb.NewNumberValue(float64(e.Active))
	}
	return &structpb.Struct{Fields: fields}
}

// fromProto populates the Event from a protobuf Struct.
// Unknown keys are ignored so older clients keep working against newer servers.
func (e *Event) fromProto(pbEvent *structpb.Struct) error {
	fields := pbEvent.GetFields()
	name := fields[fieldEvent].GetStringValue()
	if name == "" {
		return ErrMissingEventName
	}
	*e = Event{
		Name:    EventName(name),
		Message: fields[fieldMessage].GetStringValue(),
		Typing:  fields[fieldTyping].GetBoolValue(),
		Role:    Role(fields[fieldRole].GetStringValue()),
		Reason:  fields[fieldReason].GetStringValue(),
		Active:  int(fields[fieldActive].GetNumberValue()),
	}
	return nil
}
