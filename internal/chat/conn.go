// Package chat pairs anonymous connections into one-to-one conversations
// and relays their events. It is shared by all transports.
package chat

import "context"

// Conn abstracts a framed bidirectional connection for every transport.
// This interface isolates transport details from matchmaking logic.
type Conn interface {
	// Read reads a single frame holding one encoded event.
	// Returns io.EOF when the peer closed the connection normally.
	Read(ctx context.Context) ([]byte, error)

	// Write sends a single frame.
	Write(ctx context.Context, data []byte) error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}
