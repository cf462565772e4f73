package tcp_test

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/omochice/stranger-chat/internal/chat"
	"github.com/omochice/stranger-chat/internal/transport/tcp"
	"github.com/omochice/stranger-chat/pkg/protocol"
)

func TestConn_ImplementsInterface(t *testing.T) {
	var _ chat.Conn = (*tcp.Conn)(nil)
}

func TestConn_Read(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client, 0)

	go func() {
		protocol.WriteFrame(server, []byte("test message"))
		server.Close()
	}()

	data, err := conn.Read(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "test message" {
		t.Errorf("Read() = %q, want %q", string(data), "test message")
	}

	if _, err := conn.Read(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("Read() after close error = %v, want io.EOF", err)
	}
}

func TestConn_Write(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client, 0)

	go func() {
		if err := conn.Write(context.Background(), []byte("hello")); err != nil {
			t.Errorf("Write() error = %v", err)
		}
	}()

	data, err := protocol.ReadFrame(server)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("server received %q, want %q", string(data), "hello")
	}
}

func TestConn_Close(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	conn := tcp.NewConn(client, 0)
	if err := conn.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if err := conn.Write(context.Background(), []byte("x")); err == nil {
		t.Error("Write() after Close() error = nil, want error")
	}
}

func TestConn_RemoteAddr(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client, 0)
	if addr := conn.RemoteAddr(); addr == "" {
		t.Error("RemoteAddr() returned empty string")
	}
}
