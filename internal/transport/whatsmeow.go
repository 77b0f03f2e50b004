package transport

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"
)

// WhatsmeowTransport drives a WhatsApp session through whatsmeow.
type WhatsmeowTransport struct {
	container *sqlstore.Container

	mu      sync.Mutex
	client  *whatsmeow.Client
	handler Handler
}

// NewWhatsmeow creates a transport whose device credentials live in the
// given SQLite database. First run pairs via a QR code on stdout.
func NewWhatsmeow(ctx context.Context, deviceDBPath string) (*WhatsmeowTransport, error) {
	dbLog := waLog.Stdout("Database", "ERROR", true)
	container, err := sqlstore.New(ctx, "sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", deviceDBPath), dbLog)
	if err != nil {
		return nil, fmt.Errorf("open device store: %w", err)
	}
	return &WhatsmeowTransport{container: container}, nil
}

// OnMessage registers the inbound handler.
func (t *WhatsmeowTransport) OnMessage(h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

// Start connects a fresh client. Safe to call again after Shutdown; the
// supervisor relies on that to recycle the session.
func (t *WhatsmeowTransport) Start(ctx context.Context) error {
	device, err := t.container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("get device: %w", err)
	}

	client := whatsmeow.NewClient(device, waLog.Stdout("Client", "ERROR", true))
	client.AddEventHandler(t.eventHandler)

	if client.Store.ID == nil {
		// Not paired yet: show the QR and wait for the scan.
		qrChan, err := client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("get qr channel: %w", err)
		}
		if err := client.Connect(); err != nil {
			return fmt.Errorf("connect for pairing: %w", err)
		}
		for evt := range qrChan {
			switch evt.Event {
			case "code":
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
			case "success":
				slog.Info("Device paired")
			default:
				slog.Info("QR pairing event", "event", evt.Event)
			}
			if evt.Event != "code" {
				break
			}
		}
	} else {
		if err := client.Connect(); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
	}

	t.mu.Lock()
	t.client = client
	t.mu.Unlock()

	slog.Info("Transport started")
	return nil
}

// Shutdown disconnects the current client. Idempotent.
func (t *WhatsmeowTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	client := t.client
	t.client = nil
	t.mu.Unlock()

	if client == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		client.Disconnect()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("Transport shut down")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("transport shutdown: %w", ctx.Err())
	}
}

// ConnectionState reports whether the session is connected and logged in.
func (t *WhatsmeowTransport) ConnectionState() State {
	t.mu.Lock()
	client := t.client
	t.mu.Unlock()

	if client != nil && client.IsConnected() && client.IsLoggedIn() {
		return StateConnected
	}
	return StateDisconnected
}

// Send delivers a text message.
func (t *WhatsmeowTransport) Send(ctx context.Context, userID, text string) error {
	client, jid, err := t.target(userID)
	if err != nil {
		return err
	}
	_, err = client.SendMessage(ctx, jid, &waE2E.Message{Conversation: proto.String(text)})
	if err != nil {
		return fmt.Errorf("send message to %s: %w", userID, err)
	}
	return nil
}

// SendMedia uploads an image and delivers it with a caption.
func (t *WhatsmeowTransport) SendMedia(ctx context.Context, userID string, media []byte, mimeType, caption string) error {
	client, jid, err := t.target(userID)
	if err != nil {
		return err
	}

	uploaded, err := client.Upload(ctx, media, whatsmeow.MediaImage)
	if err != nil {
		return fmt.Errorf("upload media for %s: %w", userID, err)
	}

	msg := &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
		Caption:       proto.String(caption),
		Mimetype:      proto.String(mimeType),
		URL:           proto.String(uploaded.URL),
		DirectPath:    proto.String(uploaded.DirectPath),
		MediaKey:      uploaded.MediaKey,
		FileEncSHA256: uploaded.FileEncSHA256,
		FileSHA256:    uploaded.FileSHA256,
		FileLength:    proto.Uint64(uploaded.FileLength),
	}}
	if _, err := client.SendMessage(ctx, jid, msg); err != nil {
		return fmt.Errorf("send media to %s: %w", userID, err)
	}
	return nil
}

func (t *WhatsmeowTransport) target(userID string) (*whatsmeow.Client, types.JID, error) {
	t.mu.Lock()
	client := t.client
	t.mu.Unlock()

	if client == nil {
		return nil, types.JID{}, fmt.Errorf("transport not started")
	}
	jid, err := types.ParseJID(userID)
	if err != nil {
		return nil, types.JID{}, fmt.Errorf("parse jid %q: %w", userID, err)
	}
	return client, jid, nil
}

func (t *WhatsmeowTransport) eventHandler(evt interface{}) {
	msg, ok := evt.(*events.Message)
	if !ok {
		return
	}
	if msg.Info.IsGroup || msg.Info.IsFromMe {
		return
	}

	text := msg.Message.GetConversation()
	if text == "" {
		text = msg.Message.GetExtendedTextMessage().GetText()
	}
	if text == "" {
		return
	}

	t.mu.Lock()
	handler := t.handler
	t.mu.Unlock()
	if handler == nil {
		return
	}

	handler(context.Background(), Message{
		UserID:   msg.Info.Chat.ToNonAD().String(),
		Text:     text,
		PushName: msg.Info.PushName,
	})
}
