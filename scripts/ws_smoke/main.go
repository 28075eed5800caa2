package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

// run registers a nickname, joins a channel, says something and waits for
// the reply to a /ping, printing every line the server sends.
func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	nick := flag.String("nick", "tester", "nickname to register")
	channel := flag.String("channel", "#smoke", "channel to join")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	lines := []string{
		*nick,
		*nick + ": /join " + *channel,
		*nick + ": " + *text,
		*nick + ": /ping",
	}
	for _, line := range lines {
		if err := conn.Write(ctx, websocket.MessageText, []byte(line)); err != nil {
			return fmt.Errorf("send %q: %w", line, err)
		}
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return errors.New("timed out waiting for pong")
			}
			return fmt.Errorf("read: %w", err)
		}
		line := string(data)
		fmt.Println(line)
		if strings.TrimSpace(line) == "pong" {
			return nil
		}
	}
}
