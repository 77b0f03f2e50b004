// Package transport abstracts the messaging network behind a small
// send/receive surface so the conversation engine never touches the wire
// protocol.
package transport

import (
	"context"
)

// State is the coarse connection state of the automation session.
type State int

const (
	// StateDisconnected covers every state other than a healthy connection.
	StateDisconnected State = iota
	// StateConnected means the session is logged in and online.
	StateConnected
)

func (s State) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "disconnected"
}

// Message is one inbound user message.
type Message struct {
	UserID   string
	Text     string
	PushName string
}

// Handler consumes inbound messages.
type Handler func(ctx context.Context, msg Message)

// Transport is the messaging session. Implementations must tolerate
// Shutdown followed by Start: the supervisor recycles the session this way.
type Transport interface {
	// Start connects the session and begins delivering inbound messages
	// to the registered handler.
	Start(ctx context.Context) error

	// Shutdown tears the session down. Best effort; callers bound it with
	// a context timeout and proceed on expiry.
	Shutdown(ctx context.Context) error

	// Send delivers a text message to a user.
	Send(ctx context.Context, userID, text string) error

	// SendMedia delivers an image with a caption to a user.
	SendMedia(ctx context.Context, userID string, media []byte, mimeType, caption string) error

	// ConnectionState reports the current session state.
	ConnectionState() State

	// OnMessage registers the inbound handler. Must be called before Start.
	OnMessage(h Handler)
}
