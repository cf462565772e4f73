//go:generate go run go.uber.org/mock/mockgen -source=broadcaster.go -destination=../mocks/mock_broadcaster.go -package=mocks

package chat

import "github.com/omochice/stranger-chat/pkg/protocol"

// Broadcaster delivers outbound events. Implementations must not block:
// the Matchmaker calls them while holding its lock.
type Broadcaster interface {
	// SendTo delivers an event to a single connection.
	SendTo(id string, event protocol.Event)

	// BroadcastAll delivers an event to every connection.
	BroadcastAll(event protocol.Event)
}
