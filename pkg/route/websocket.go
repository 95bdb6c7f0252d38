package route

import (
	"context"
	"net/http"
)

// MessageType is the WebSocket frame type of a message.
type MessageType int

const (
	MessageText MessageType = iota + 1
	MessageBinary
)

// Socket is one upgraded connection as seen by route callbacks.
type Socket interface {
	// Send writes a text message.
	Send(ctx context.Context, msg string) error
	// SendBinary writes a binary message.
	SendBinary(ctx context.Context, data []byte) error
	// Close closes the connection with a status code and reason.
	Close(code int, reason string) error

	Subscribe(topic string)
	Unsubscribe(topic string)
	// Publish sends msg to every socket subscribed to topic.
	Publish(ctx context.Context, topic, msg string)

	// Header returns the headers of the upgrade request.
	Header() http.Header
	// Pathname is the request path the socket was opened on.
	Pathname() string
	// Subprotocol is the negotiated WebSocket sub-protocol.
	Subprotocol() string

	// Get and Set hold per-connection state.
	Get(key string) any
	Set(key string, value any)
}

// WebSocket holds a route's connection callbacks. Nil callbacks are skipped.
type WebSocket struct {
	Open    func(ctx context.Context, s Socket)
	Message func(ctx context.Context, s Socket, typ MessageType, data []byte)
	Close   func(ctx context.Context, s Socket, code int, reason string)
}
