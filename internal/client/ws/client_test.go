package ws_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/omochice/stranger-chat/internal/client"
	ws "github.com/omochice/stranger-chat/internal/client/ws"
	"github.com/omochice/stranger-chat/pkg/protocol"
	"github.com/stretchr/testify/require"
)

// startMockServer upgrades one connection and hands it to the test.
func startMockServer(t *testing.T) (string, <-chan *websocket.Conn) {
	t.Helper()
	accepted := make(chan *websocket.Conn, 1)
	done := make(chan struct{})
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		accepted <- conn
		<-done
	}))
	t.Cleanup(func() {
		close(done)
		server.Close()
	})

	return "ws" + strings.TrimPrefix(server.URL, "http"), accepted
}

func newClient(t *testing.T, url string) *ws.Client {
	t.Helper()
	c := ws.New(url, logs.GetLoggerFromLevel(slog.LevelDebug))
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(c.Disconnect)
	return c
}

func accept(t *testing.T, accepted <-chan *websocket.Conn) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-accepted:
		return conn
	case <-time.After(time.Second):
		t.Fatal("server never upgraded the connection")
		return nil
	}
}

func receive(t *testing.T, c *ws.Client) protocol.Event {
	t.Helper()
	select {
	case event, ok := <-c.Events():
		require.True(t, ok, "events channel closed")
		return event
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return protocol.Event{}
	}
}

func writeEvent(t *testing.T, conn *websocket.Conn, event protocol.Event) {
	t.Helper()
	data, err := event.Encode()
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, data))
}

func TestClient_ConnectAndDisconnect(t *testing.T) {
	req := require.New(t)
	url, accepted := startMockServer(t)

	c := ws.New(url, logs.GetLoggerFromLevel(slog.LevelDebug))
	req.False(c.IsConnected())

	req.NoError(c.Connect(context.Background()))
	req.True(c.IsConnected())
	server := accept(t, accepted)

	c.Disconnect()
	req.False(c.IsConnected())

	// The server sees a normal closure.
	req.NoError(server.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := server.ReadMessage()
	req.True(websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestClient_SendWithoutConnection(t *testing.T) {
	c := ws.New("ws://127.0.0.1:0/ws", logs.GetLoggerFromLevel(slog.LevelDebug))
	require.ErrorIs(t, c.SendChat("hello"), client.ErrNotConnected)
	require.ErrorIs(t, c.SetTyping(false), client.ErrNotConnected)
}

func TestClient_SendsBinaryEvents(t *testing.T) {
	req := require.New(t)
	url, accepted := startMockServer(t)
	c := newClient(t, url)
	server := accept(t, accepted)

	// When
	req.NoError(c.RequestPartner())
	req.NoError(c.SendChat("hello"))
	req.NoError(c.EndSession())

	// Then
	want := []protocol.Event{protocol.RequestNewPartner(), protocol.ChatMessage("hello"), protocol.EndSession()}
	req.NoError(server.SetReadDeadline(time.Now().Add(time.Second)))
	for _, expected := range want {
		messageType, data, err := server.ReadMessage()
		req.NoError(err)
		req.Equal(websocket.BinaryMessage, messageType)
		var event protocol.Event
		req.NoError(event.Decode(data))
		req.Equal(expected, event)
	}
}

func TestClient_ReceivesEvents(t *testing.T) {
	req := require.New(t)
	url, accepted := startMockServer(t)
	c := newClient(t, url)
	server := accept(t, accepted)

	writeEvent(t, server, protocol.PresenceStats(2))
	// Text messages are not part of the protocol and are skipped.
	req.NoError(server.WriteMessage(websocket.TextMessage, []byte("ignored")))
	writeEvent(t, server, protocol.SessionEnded(protocol.RolePartner, "transport close"))

	req.Equal(protocol.PresenceStats(2), receive(t, c))
	req.Equal(protocol.SessionEnded(protocol.RolePartner, "transport close"), receive(t, c))
}

func TestClient_AnswersPing(t *testing.T) {
	req := require.New(t)
	url, accepted := startMockServer(t)
	c := newClient(t, url)
	server := accept(t, accepted)

	pong := make(chan string, 1)
	server.SetPongHandler(func(appData string) error {
		pong <- appData
		return nil
	})
	req.NoError(server.WriteControl(websocket.PingMessage, []byte("keepalive"), time.Now().Add(time.Second)))
	writeEvent(t, server, protocol.Paired())
	req.Equal(protocol.Paired(), receive(t, c))

	// The pong handler only runs while the server is reading.
	go func() {
		_ = server.SetReadDeadline(time.Now().Add(time.Second))
		_, _, _ = server.ReadMessage()
	}()
	select {
	case appData := <-pong:
		req.Equal("keepalive", appData)
	case <-time.After(time.Second):
		t.Fatal("client never answered the ping")
	}
}

func TestClient_ServerClose(t *testing.T) {
	req := require.New(t)
	url, accepted := startMockServer(t)
	c := newClient(t, url)
	server := accept(t, accepted)

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye")
	req.NoError(server.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))

	select {
	case _, ok := <-c.Events():
		req.False(ok, "expected events channel to be closed")
	case <-time.After(time.Second):
		t.Fatal("events channel was not closed")
	}
	req.Eventually(func() bool { return !c.IsConnected() }, time.Second, 10*time.Millisecond)
}
