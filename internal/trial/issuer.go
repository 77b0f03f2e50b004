package trial

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Credentials are the login data returned by the provisioning panel.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Issuer requests trial credentials from the provisioning panel.
type Issuer interface {
	Issue(ctx context.Context, userID, senderName string) (*Credentials, error)
}

// PanelIssuer talks to the panel's chatbot HTTP endpoint.
type PanelIssuer struct {
	url    string
	client *http.Client
}

// NewPanelIssuer creates an issuer with a bounded request timeout.
// Timeout counts as failure; the caller never waits longer than this.
func NewPanelIssuer(url string, timeout time.Duration) *PanelIssuer {
	return &PanelIssuer{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type panelRequest struct {
	AppName         string `json:"appName"`
	MessageDateTime string `json:"messageDateTime"`
	SenderName      string `json:"senderName"`
	SenderMessage   string `json:"senderMessage"`
	UserAgent       string `json:"userAgent"`
}

// Issue requests a fresh trial credential pair from the panel.
func (p *PanelIssuer) Issue(ctx context.Context, userID, senderName string) (*Credentials, error) {
	if senderName == "" {
		senderName = userID
	}
	payload, err := json.Marshal(panelRequest{
		AppName:         "com.whatsapp",
		MessageDateTime: time.Now().Format(time.RFC3339),
		SenderName:      senderName,
		SenderMessage:   "teste",
		UserAgent:       "atendebot",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal panel request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build panel request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call panel: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("panel returned status %d: %s", resp.StatusCode, body)
	}

	var creds Credentials
	if err := json.NewDecoder(resp.Body).Decode(&creds); err != nil {
		return nil, fmt.Errorf("decode panel response: %w", err)
	}
	if creds.Username == "" || creds.Password == "" {
		return nil, fmt.Errorf("panel response missing username or password")
	}
	return &creds, nil
}
