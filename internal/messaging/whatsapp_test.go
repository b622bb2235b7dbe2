package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestSendText_PostsCloudAPIPayload(t *testing.T) {
	var got struct {
		MessagingProduct string            `json:"messaging_product"`
		To               string            `json:"to"`
		Text             map[string]string `json:"text"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/123456/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("auth = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
	}))
	t.Cleanup(srv.Close)

	w := NewWhatsApp("tok", "123456", zerolog.Nop())
	w.baseURL = srv.URL
	if err := w.SendText(context.Background(), "919876543210", "hello"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if got.MessagingProduct != "whatsapp" || got.To != "919876543210" || got.Text["body"] != "hello" {
		t.Fatalf("payload mismatch: %+v", got)
	}
}

func TestSendText_ProviderErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	w := NewWhatsApp("bad", "123456", zerolog.Nop())
	w.baseURL = srv.URL
	if err := w.SendText(context.Background(), "1555", "hi"); err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestSendText_UnconfiguredIsNoOp(t *testing.T) {
	w := NewWhatsApp("", "", zerolog.Nop())
	if w.Configured() {
		t.Fatal("unconfigured client reported configured")
	}
	if err := w.SendText(context.Background(), "1555", "hi"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
}
