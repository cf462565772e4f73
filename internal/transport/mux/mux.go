// Package mux shares one listening port between the WebSocket and TCP transports.
//
// Every accepted connection is classified by its first byte. A framed TCP
// client always starts with the high byte of a length header, which is zero
// for any frame up to protocol.MaxFrameSize, while an HTTP upgrade starts with
// an ASCII method name. A connection that stays silent for the sniff timeout
// is handed to TCP, since framed clients may wait for the server to speak.
// Such a client is only registered, and so only paired, once the timeout has
// passed; SNIFF_TIMEOUT trades that delay against slow HTTP clients.
package mux

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/soheilhy/cmux"
)

// Mux splits one root listener into an HTTP listener and a TCP listener.
type Mux struct {
	root net.Listener
	cm   cmux.CMux
	log  *slog.Logger
	http net.Listener
	tcp  net.Listener
	done chan struct{}
	once sync.Once
}

// New creates a Mux over root. Serve must be called to start accepting.
func New(root net.Listener, sniffTimeout time.Duration, log *slog.Logger) *Mux {
	m := &Mux{
		root: root,
		cm:   cmux.New(root),
		log:  log.With("transport", "mux"),
		done: make(chan struct{}),
	}
	m.cm.SetReadTimeout(sniffTimeout)
	m.cm.HandleError(m.handleError)

	// Matchers run in registration order.
	m.http = m.cm.Match(upgradeRequest)
	m.tcp = m.cm.Match(framedOrSilent)
	return m
}

// HTTP returns the listener receiving WebSocket upgrade requests.
func (m *Mux) HTTP() net.Listener {
	return m.http
}

// TCP returns the listener receiving framed TCP clients.
func (m *Mux) TCP() net.Listener {
	return m.tcp
}

// Addr returns the shared listening address.
func (m *Mux) Addr() string {
	return m.root.Addr().String()
}

// Serve accepts and classifies connections. It returns nil after Stop.
func (m *Mux) Serve() error {
	m.log.Info("Shared port server started", "address", m.Addr())
	err := m.cm.Serve()
	select {
	case <-m.done:
		return nil
	default:
	}
	return err
}

// Stop closes the root listener and both derived listeners.
func (m *Mux) Stop() {
	m.once.Do(func() {
		close(m.done)
		m.cm.Close()
		_ = m.root.Close()
	})
}

// handleError keeps serving after an unclassified connection.
func (m *Mux) handleError(err error) bool {
	var notMatched cmux.ErrNotMatched
	if errors.As(err, &notMatched) {
		m.log.Debug("Connection closed before classification", "error", err)
	}
	return true
}

func upgradeRequest(r io.Reader) bool {
	first, err := readFirst(r)
	return err == nil && first != 0
}

func framedOrSilent(r io.Reader) bool {
	first, err := readFirst(r)
	if err != nil {
		return isTimeout(err)
	}
	return first == 0
}

func readFirst(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
