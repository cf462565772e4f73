package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"
	"github.com/omochice/stranger-chat/internal/chat"
	"github.com/omochice/stranger-chat/internal/config"
	"github.com/omochice/stranger-chat/internal/transport/mux"
	"github.com/omochice/stranger-chat/internal/transport/tcp"
	"github.com/omochice/stranger-chat/internal/transport/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// transport is a listening server that can be shut down.
type transport interface {
	Serve() error
	Stop()
}

// listen binds every configured transport. Servers are returned in stop order.
func listen(cfg config.Config, hub *chat.Hub, wsServer *ws.Server, log *slog.Logger) ([]transport, error) {
	if cfg.SharedPort {
		root, err := net.Listen("tcp", cfg.Addr())
		if err != nil {
			return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Addr(), err)
		}
		shared := mux.New(root, cfg.SniffTimeout, log)
		tcpServer := tcp.New(cfg.Addr(), hub, cfg.OutgoingBufferSize, cfg.WriteTimeout, log)
		wsServer.Attach(shared.HTTP())
		tcpServer.Attach(shared.TCP())
		return []transport{wsServer, tcpServer, shared}, nil
	}

	if err := wsServer.Listen(); err != nil {
		return nil, err
	}
	servers := []transport{wsServer}

	if addr, ok := cfg.TCPAddr(); ok {
		tcpServer := tcp.New(addr, hub, cfg.OutgoingBufferSize, cfg.WriteTimeout, log)
		if err := tcpServer.Listen(); err != nil {
			wsServer.Stop()
			return nil, err
		}
		servers = append(servers, tcpServer)
	}
	return servers, nil
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	hub := chat.NewHub(log)

	wsServer := ws.New(cfg.Addr(), hub, ws.Options{
		BufferSize:   cfg.OutgoingBufferSize,
		ReadLimit:    int64(cfg.ReadLimit),
		PingInterval: cfg.PingInterval,
		WriteTimeout: cfg.WriteTimeout,
	}, log)
	servers, err := listen(cfg, hub, wsServer, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv transport) {
			if err := srv.Serve(); err != nil {
				errChan <- err
			}
		}(srv)
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case runErr = <-errChan:
		log.Error("Server stopped unexpectedly", "error", runErr)
	}

	for _, srv := range servers {
		srv.Stop()
	}

	stats := hub.Matchmaker().Stats()
	log.Info("Server stopped", "active", stats.Active, "total", stats.Total)
	return runErr
}
