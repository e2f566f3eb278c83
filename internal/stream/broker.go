// Package stream fans scene mutations, camera changes and selections out to
// connected browser globes over WebSocket.
package stream

import (
	"encoding/json"
	"sync"
)

// Topics carried by the broker.
const (
	TopicScene     = "scene"
	TopicCamera    = "camera"
	TopicSelection = "selection"
)

// Message is one frame of the viewer protocol, in both directions.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	// Origin is the publishing Engine. Handles and camera state only mean
	// something to viewers of that engine.
	Origin string `json:"origin,omitempty"`
}

// NewMessage marshals v as the payload of a typed frame.
func NewMessage(typ string, v any) Message {
	m := Message{Type: typ}
	if v != nil {
		m.Payload, _ = json.Marshal(v)
	}
	return m
}

// EventBroker is implemented by the in-memory Broker and RedisBroker.
type EventBroker interface {
	Subscribe(topic string) chan Message
	Unsubscribe(topic string, ch chan Message)
	Publish(topic string, msg Message)
}

// Broker is an in-process pub/sub. Slow subscribers drop messages rather
// than block publishers.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Message]struct{} // topic -> set of channels
	size int
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan Message]struct{}{}, size: 64}
}

func (b *Broker) Subscribe(topic string) chan Message {
	ch := make(chan Message, b.size)
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = map[chan Message]struct{}{}
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(topic string, ch chan Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[topic]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, topic)
	}
	close(ch)
}

func (b *Broker) Publish(topic string, msg Message) {
	b.mu.Lock()
	for ch := range b.subs[topic] {
		select {
		case ch <- msg:
		default:
		}
	}
	b.mu.Unlock()
}
