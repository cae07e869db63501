// Command chat-client is a minimal terminal client for the realtime chat
// server. It connects with a token, prints inbound events, and sends
// private messages typed on stdin as "<receiverId> <message>".
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dohuyhi210/realtime-chat-app/internal/client"
	"github.com/dohuyhi210/realtime-chat-app/internal/logger"
	"github.com/dohuyhi210/realtime-chat-app/internal/wire"
)

func main() {
	serverURL := flag.String("url", "ws://localhost:5000/ws", "websocket URL of the chat server")
	token := flag.String("token", "", "JWT issued by /v1/auth/login")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "usage: chat-client -token <jwt> [-url ws://host/ws]")
		os.Exit(2)
	}
	if *debug {
		logger.SetLevel(logger.LevelDebug)
	}

	c := client.New(client.Options{
		ServerURL: *serverURL,
		Token:     *token,
	})

	c.OnStateChange(func(s client.State) {
		fmt.Printf("* connection %s\n", s)
	})

	c.On(wire.TypePrivateMessage, func(data json.RawMessage) {
		var m wire.MessageDelivered
		if err := json.Unmarshal(data, &m); err != nil {
			return
		}
		fmt.Printf("[%s] %s\n", m.SenderNickname, m.Content)
	})
	c.On(wire.TypeGroupMessage, func(data json.RawMessage) {
		var m wire.MessageDelivered
		if err := json.Unmarshal(data, &m); err != nil {
			return
		}
		fmt.Printf("[%s @ %s] %s\n", m.SenderNickname, m.GroupName, m.Content)
	})
	c.On(wire.TypeUserOnline, printPresence)
	c.On(wire.TypeUserOffline, printPresence)
	c.On(wire.TypeTyping, func(data json.RawMessage) {
		var t wire.TypingChanged
		if err := json.Unmarshal(data, &t); err != nil {
			return
		}
		if t.IsTyping {
			fmt.Printf("* %s is typing...\n", t.UserID)
		}
	})
	c.On(wire.TypeError, func(data json.RawMessage) {
		var e wire.ErrorFrame
		if err := json.Unmarshal(data, &e); err != nil {
			return
		}
		fmt.Printf("! server error: %s (%s)\n", e.Message, e.Code)
	})

	c.Connect()
	defer c.Close()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			fmt.Println("usage: <receiverId> <message>")
			continue
		}
		if err := c.SendPrivateMessage(parts[0], parts[1]); err != nil {
			fmt.Printf("! send failed: %v\n", err)
		}
	}
}

func printPresence(data json.RawMessage) {
	var p wire.PresenceChanged
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	if p.IsOnline {
		fmt.Printf("* %s is online\n", p.UserID)
	} else {
		fmt.Printf("* %s went offline\n", p.UserID)
	}
}
