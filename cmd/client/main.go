package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/omochice/stranger-chat/internal/client"
	"github.com/omochice/stranger-chat/internal/client/tcp"
	"github.com/omochice/stranger-chat/internal/client/ws"
	"github.com/omochice/stranger-chat/pkg/protocol"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	serverAddr := flag.String("server", "ws://localhost:8001/ws", "Server address (ws://host:port/ws, or host:port with -transport tcp)")
	transport := flag.String("transport", "ws", "Transport to use: ws or tcp")
	logLevel := flag.String("log-level", "WARN", "Log level")
	flag.Parse()

	log := logs.GetLoggerFromString(*logLevel)

	var c client.Client
	switch *transport {
	case "ws":
		c = ws.New(*serverAddr, log)
	case "tcp":
		c = tcp.New(*serverAddr, log)
	default:
		return fmt.Errorf("unknown transport %q", *transport)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Disconnect()

	color.Info.Printf("Connected to %s, looking for a stranger...\n", *serverAddr)
	fmt.Println("Type a message, or /next, /end, /typing, /idle, /quit")

	lost := make(chan struct{})
	go func() {
		defer close(lost)
		for event := range c.Events() {
			render(event)
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-lost:
			return fmt.Errorf("connection to %s lost", *serverAddr)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := handleLine(c, strings.TrimSpace(line))
			if err != nil {
				color.Error.Printf("Failed to send: %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

// handleLine maps one input line to a client call.
func handleLine(c client.Client, line string) (quit bool, err error) {
	switch line {
	case "":
		return false, nil
	case "/quit", "/exit":
		return true, nil
	case "/next":
		return false, c.RequestPartner()
	case "/end":
		return false, c.EndSession()
	case "/typing":
		return false, c.SetTyping(true)
	case "/idle":
		return false, c.SetTyping(false)
	default:
		return false, c.SendChat(line)
	}
}

func render(event protocol.Event) {
	switch event.Name {
	case protocol.EventPaired:
		color.Success.Println("*** You are now chatting with a stranger. Say hi! ***")
	case protocol.EventSessionEnded:
		if event.Role == protocol.RoleSelf {
			color.Warn.Println("*** You left the conversation. Type /next to meet someone new. ***")
		} else {
			color.Warn.Printf("*** The stranger left (%s). Type /next to meet someone new. ***\n", event.Reason)
		}
	case protocol.EventChat:
		fmt.Printf("%s %s\n", color.Cyan.Render("Stranger:"), event.Message)
	case protocol.EventTyping:
		if event.Typing {
			color.Gray.Println("Stranger is typing...")
		} else {
			color.Gray.Println("Stranger stopped typing.")
		}
	case protocol.EventPresenceStats:
		color.Gray.Printf("%d people chatting\n", event.Active)
	}
}
