// Package websocket multiplexes accepted connections onto named topics.
package websocket

import (
	"context"
	"sync"

	"github.com/coder/websocket"
)

// Hub fans out topic publications to subscribed connections.
//
// Invariants:
//   - topics and subs are only touched under mu
//   - a connection is in subs iff it is subscribed to at least one topic
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Conn]struct{}
	subs   map[*Conn]map[string]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		topics: make(map[string]map[*Conn]struct{}),
		subs:   make(map[*Conn]map[string]struct{}),
	}
}

// Subscribe adds c to topic.
func (h *Hub) Subscribe(c *Conn, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Conn]struct{})
	}
	h.topics[topic][c] = struct{}{}
	if h.subs[c] == nil {
		h.subs[c] = make(map[string]struct{})
	}
	h.subs[c][topic] = struct{}{}
}

// Unsubscribe removes c from topic.
func (h *Hub) Unsubscribe(c *Conn, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribe(c, topic)
}

func (h *Hub) unsubscribe(c *Conn, topic string) {
	if members := h.topics[topic]; members != nil {
		delete(members, c)
		if len(members) == 0 {
			delete(h.topics, topic)
		}
	}
	if topics := h.subs[c]; topics != nil {
		delete(topics, topic)
		if len(topics) == 0 {
			delete(h.subs, c)
		}
	}
}

// Remove drops c from every topic.
func (h *Hub) Remove(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic := range h.subs[c] {
		h.unsubscribe(c, topic)
	}
}

// Publish sends a text message to every subscriber of topic and returns how
// many connections it was queued for.
func (h *Hub) Publish(topic, msg string) int {
	return h.publish(topic, msg, nil)
}

func (h *Hub) publish(topic, msg string, except *Conn) int {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.topics[topic]))
	for c := range h.topics[topic] {
		if c != except {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	sent := 0
	data := []byte(msg)
	for _, c := range targets {
		if c.trySend(outbound{typ: websocket.MessageText, data: data}) == nil {
			sent++
		}
	}
	return sent
}

// Subscribers returns the number of connections subscribed to topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Connections returns the number of connections with any subscription.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Shutdown closes every subscribed connection.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.subs))
	for c := range h.subs {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := ctx.Err(); err != nil {
			return err
		}
		_ = c.Close(int(websocket.StatusGoingAway), "server shutdown")
	}
	return nil
}
