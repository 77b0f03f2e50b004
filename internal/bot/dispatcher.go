// Package bot connects the messaging transport to the conversation engine:
// per-user serialization, reply delivery, media loading and the liveness
// counters the supervisor watches.
package bot

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/rfarias/atendebot/internal/flow"
	"github.com/rfarias/atendebot/internal/supervisor"
	"github.com/rfarias/atendebot/internal/transport"
)

// Per-message processing deadline, covering the engine plus all sends.
const handleTimeout = 90 * time.Second

// queueDepth bounds the per-user backlog. A user flooding faster than we
// answer loses the overflow, not the conversation.
const queueDepth = 16

// Dispatcher fans inbound messages into per-user FIFO queues so one user's
// messages are handled strictly in order while users stay independent.
type Dispatcher struct {
	engine    *flow.Engine
	transport transport.Transport
	state     *supervisor.ProcessState
	mediaDir  string

	mu     sync.Mutex
	queues map[string]chan transport.Message
}

// New creates a dispatcher. Register HandleMessage on the transport.
func New(engine *flow.Engine, t transport.Transport, state *supervisor.ProcessState, mediaDir string) *Dispatcher {
	return &Dispatcher{
		engine:    engine,
		transport: t,
		state:     state,
		mediaDir:  mediaDir,
		queues:    make(map[string]chan transport.Message),
	}
}

// HandleMessage enqueues one inbound message. Never blocks the transport's
// event loop: a full queue drops the message with a log line.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg transport.Message) {
	d.state.NoteReceived()

	q := d.queueFor(msg.UserID)
	select {
	case q <- msg:
	default:
		slog.Warn("User queue full, dropping message", "user_id", msg.UserID)
	}
}

func (d *Dispatcher) queueFor(userID string) chan transport.Message {
	d.mu.Lock()
	defer d.mu.Unlock()

	if q, ok := d.queues[userID]; ok {
		return q
	}
	q := make(chan transport.Message, queueDepth)
	d.queues[userID] = q
	go d.drain(q)
	return q
}

func (d *Dispatcher) drain(q chan transport.Message) {
	for msg := range q {
		d.process(msg)
	}
}

// process runs one message through the engine and delivers the replies.
// This is the panic boundary: a handler bug drops the one message and logs
// it, the process and the user's stored state stay intact.
func (d *Dispatcher) process(msg transport.Message) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic while handling message",
				"user_id", msg.UserID,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	for _, reply := range d.engine.Handle(ctx, msg.UserID, msg.PushName, msg.Text) {
		d.deliver(ctx, msg.UserID, reply)
	}
}

// deliver sends one reply, retrying once. A reply lost after the retry is
// logged and abandoned; the conversation state has already advanced and the
// user will re-prompt.
func (d *Dispatcher) deliver(ctx context.Context, userID string, reply flow.Reply) {
	var err error
	if reply.MediaPath != "" {
		err = d.sendMedia(ctx, userID, reply)
	} else {
		err = d.transport.Send(ctx, userID, reply.Text)
	}
	if err != nil {
		slog.Warn("Send failed, retrying once", "user_id", userID, "error", err)
		if reply.MediaPath != "" {
			err = d.sendMedia(ctx, userID, reply)
		} else {
			err = d.transport.Send(ctx, userID, reply.Text)
		}
	}
	if err != nil {
		slog.Error("Send failed after retry, dropping reply", "user_id", userID, "error", err)
		return
	}
	d.state.NoteResponded()
}

// sendMedia loads the image from MediaDir and ships it with the caption.
// A missing or unreadable file degrades to a text-only send so the flow
// never stalls on an asset problem.
func (d *Dispatcher) sendMedia(ctx context.Context, userID string, reply flow.Reply) error {
	path := filepath.Join(d.mediaDir, reply.MediaPath)
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("Media file unavailable, sending caption only", "path", path, "error", err)
		return d.transport.Send(ctx, userID, reply.Text)
	}
	return d.transport.SendMedia(ctx, userID, data, mimeFor(path), reply.Text)
}

func mimeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "image/png"
	}
}
