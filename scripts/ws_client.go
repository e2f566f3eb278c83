// Package main runs a demo WebSocket viewer against a local fleetglobe.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	follow := "2"
	if len(os.Args) > 1 {
		follow = os.Args[1]
	}

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		}
	}()

	// Lock the camera to one drone, then release it.
	time.Sleep(500 * time.Millisecond)
	send(c, "follow", fmt.Sprintf(`{"id":%s}`, follow))
	time.Sleep(500 * time.Millisecond)
	send(c, "click", `{"key":"region-2"}`)
	send(c, "reset", "")

	select {
	case <-time.After(15 * time.Second):
	case <-done:
	}
}

func send(c *websocket.Conn, typ, payload string) {
	m := wsMessage{Type: typ}
	if payload != "" {
		m.Payload = json.RawMessage(payload)
	}
	if err := c.WriteJSON(m); err != nil {
		log.Fatal(err)
	}
}
