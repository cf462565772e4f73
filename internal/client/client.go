//go:generate go run go.uber.org/mock/mockgen -source=client.go -destination=../mocks/mock_client.go -package=mocks

// Package client defines the common interface for chat clients.
package client

import (
	"context"
	"errors"

	"github.com/omochice/stranger-chat/pkg/protocol"
)

// ErrNotConnected is returned when sending before Connect or after Disconnect.
var ErrNotConnected = errors.New("not connected to server")

// Client defines the interface for chat clients.
// Both TCP and WebSocket implementations satisfy this interface.
type Client interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
	RequestPartner() error
	EndSession() error
	SendChat(message string) error
	SetTyping(typing bool) error
	// Events is closed once the connection to the server is lost.
	Events() <-chan protocol.Event
}
