package chat_test

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/omochice/stranger-chat/internal/chat"
	"github.com/omochice/stranger-chat/pkg/protocol"
)

// mockConn is a mock implementation of chat.Conn for testing.
type mockConn struct {
	readCh     chan []byte
	readErr    error
	mu         sync.Mutex
	closed     bool
	remoteAddr string
}

func newMockConn(addr string) *mockConn {
	return &mockConn{
		readCh:     make(chan []byte, 10),
		remoteAddr: addr,
	}
}

func (m *mockConn) Read(ctx context.Context) ([]byte, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case data, ok := <-m.readCh:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	}
}

func (m *mockConn) Write(ctx context.Context, data []byte) error {
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) RemoteAddr() string {
	return m.remoteAddr
}

// send queues an event as if the peer had written it.
func (m *mockConn) send(t *testing.T, event protocol.Event) {
	t.Helper()
	data, err := event.Encode()
	if err != nil {
		t.Fatalf("failed to encode %s: %v", event.Name, err)
	}
	m.readCh <- data
}

// hangUp makes the next Read return io.EOF.
func (m *mockConn) hangUp() {
	close(m.readCh)
}

// Compile-time check that mockConn implements chat.Conn
var _ chat.Conn = (*mockConn)(nil)
