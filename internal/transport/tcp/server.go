package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/omochice/stranger-chat/internal/chat"
)

// Server handles TCP connections and delegates to Hub.
type Server struct {
	address      string
	bufferSize   int
	writeTimeout time.Duration
	hub          *chat.Hub
	log          *slog.Logger
	ctx          context.Context
	cancel       context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	conns    map[*Conn]struct{}
	wg       sync.WaitGroup
}

// New creates a TCP server that uses the provided Hub.
func New(address string, hub *chat.Hub, bufferSize int, writeTimeout time.Duration, log *slog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		address:      address,
		bufferSize:   bufferSize,
		writeTimeout: writeTimeout,
		hub:          hub,
		log:          log.With("transport", "tcp"),
		ctx:          ctx,
		cancel:       cancel,
		conns:        make(map[*Conn]struct{}),
	}
}

// Start listens and accepts TCP connections until Stop is called.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Listen binds the listening socket so Addr is known before serving.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}
	s.Attach(listener)
	return nil
}

// Attach serves on an existing listener, such as one half of a shared port.
func (s *Server) Attach(listener net.Listener) {
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.log.Info("TCP server started", "address", listener.Addr().String())
}

// Serve accepts connections on the bound listener. It returns nil after Stop.
func (s *Server) Serve() error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return errors.New("tcp server is not listening")
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				s.log.Error("Failed to accept TCP connection", "error", err)
				continue
			}
			return fmt.Errorf("tcp listener closed: %w", err)
		}

		tcpConn := NewConn(conn, s.writeTimeout)
		if !s.track(tcpConn) {
			_ = tcpConn.Close()
			return nil
		}

		client := chat.NewClient(tcpConn, s.bufferSize)
		go s.handleClient(client)
		go s.writeLoop(client, tcpConn)
	}
}

// Stop stops the TCP server and closes every open connection.
func (s *Server) Stop() {
	s.cancel()

	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// track records conn and its two goroutines unless the server is stopping.
func (s *Server) track(conn *Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(2)
	return true
}

func (s *Server) untrack(conn *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) handleClient(client *chat.Client) {
	defer s.wg.Done()
	defer close(client.Outgoing)
	if err := s.hub.HandleClient(s.ctx, client); err != nil {
		s.log.Error("Client handling failed", "connection_id", client.ID, "error", err)
	}
}

func (s *Server) writeLoop(client *chat.Client, conn *Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	for data := range client.Outgoing {
		if err := conn.Write(s.ctx, data); err != nil {
			s.log.Error("Failed to write to TCP client", "connection_id", client.ID, "error", err)
			return
		}
	}
}
