package chat

import (
	"fmt"

	"github.com/omochice/stranger-chat/pkg/protocol"
)

type handler func(m *Matchmaker, id string, event protocol.Event) error

// handlers maps every inbound event a client may send to its operation.
var handlers = map[protocol.EventName]handler{
	protocol.EventRequestNewPartner: func(m *Matchmaker, id string, _ protocol.Event) error {
		return m.JoinOrPair(id)
	},
	protocol.EventEndSession: func(m *Matchmaker, id string, _ protocol.Event) error {
		return m.EndSession(id)
	},
	protocol.EventChat: func(m *Matchmaker, id string, event protocol.Event) error {
		m.Chat(id, event.Message)
		return nil
	},
	protocol.EventTyping: func(m *Matchmaker, id string, event protocol.Event) error {
		m.Typing(id, event.Typing)
		return nil
	},
}

// Dispatch runs the operation matching an event received from connection id.
func (m *Matchmaker) Dispatch(id string, event protocol.Event) error {
	h, ok := handlers[event.Name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event.Name)
	}
	return h(m, id, event)
}
