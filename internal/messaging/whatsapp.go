// Package messaging sends outbound WhatsApp messages: conversational
// replies from the chat engine and customer notifications triggered by
// order progress. All sends are best effort; a provider outage degrades to
// log lines, never to errors on the order path.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// graphBaseURL is the Meta Graph API host; tests point it elsewhere.
const graphBaseURL = "https://graph.facebook.com/v16.0"

const sendTimeout = 10 * time.Second

// TextSender delivers one text message to a phone number.
type TextSender interface {
	SendText(ctx context.Context, to, text string) error
}

// WhatsApp sends messages through the Meta Cloud API. An empty access
// token disables it: SendText logs and returns nil so the rest of the
// system behaves identically with and without provider credentials.
type WhatsApp struct {
	accessToken   string
	phoneNumberID string
	baseURL       string
	http          *http.Client
	log           zerolog.Logger
}

// NewWhatsApp builds a client for the given business phone number.
func NewWhatsApp(accessToken, phoneNumberID string, log zerolog.Logger) *WhatsApp {
	return &WhatsApp{
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		baseURL:       graphBaseURL,
		http:          &http.Client{Timeout: sendTimeout},
		log:           log,
	}
}

// Configured reports whether provider credentials are present.
func (w *WhatsApp) Configured() bool {
	return w.accessToken != "" && w.phoneNumberID != ""
}

// SendText posts a text message to the Cloud API messages endpoint.
func (w *WhatsApp) SendText(ctx context.Context, to, text string) error {
	if !w.Configured() {
		w.log.Debug().Str("to", to).Msg("whatsapp not configured, dropping outbound message")
		return nil
	}
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"text":              map[string]string{"body": text},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s/messages", w.baseURL, w.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.accessToken)

	resp, err := w.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("whatsapp send: status %d: %s", resp.StatusCode, detail)
	}
	w.log.Debug().Str("to", to).Msg("whatsapp message sent")
	return nil
}
