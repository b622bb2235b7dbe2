package messaging

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type recordingSender struct {
	to   []string
	text []string
	err  error
}

func (r *recordingSender) SendText(_ context.Context, to, text string) error {
	r.to = append(r.to, to)
	r.text = append(r.text, text)
	return r.err
}

func TestNotifier_PhotoCaptured(t *testing.T) {
	s := &recordingSender{}
	n := NewNotifier(s, zerolog.Nop())
	n.PhotoCaptured(context.Background(), "1555", "o-1")
	if len(s.text) != 1 {
		t.Fatalf("sent %d messages, want 1", len(s.text))
	}
	if !strings.Contains(s.text[0], "Order #o-1") || !strings.Contains(s.text[0], "Photo captured") {
		t.Fatalf("unexpected message: %q", s.text[0])
	}
}

func TestNotifier_DeliveryCompletedNamesSigner(t *testing.T) {
	s := &recordingSender{}
	n := NewNotifier(s, zerolog.Nop())
	n.DeliveryCompleted(context.Background(), "1555", "o-2", "R. Sharma")
	if len(s.text) != 1 || !strings.Contains(s.text[0], "Signature collected from: R. Sharma") {
		t.Fatalf("unexpected message: %v", s.text)
	}
}

func TestNotifier_StatusChangedTemplates(t *testing.T) {
	cases := []struct {
		status string
		want   string
	}{
		{"in_progress", "Status: In Progress"},
		{"delivered", "Status: Delivered"},
		{"completed", "Status: Completed"},
		{"confirmed", "Status changed from pending"},
	}
	for _, tc := range cases {
		s := &recordingSender{}
		n := NewNotifier(s, zerolog.Nop())
		n.StatusChanged(context.Background(), "1555", "o-3", "pending", tc.status)
		if len(s.text) != 1 || !strings.Contains(s.text[0], tc.want) {
			t.Errorf("status %s: message %v missing %q", tc.status, s.text, tc.want)
		}
	}
}

func TestNotifier_EmptyPhoneSkipsSend(t *testing.T) {
	s := &recordingSender{}
	n := NewNotifier(s, zerolog.Nop())
	n.PhotoCaptured(context.Background(), "", "o-4")
	if len(s.text) != 0 {
		t.Fatalf("sent %d messages for empty phone", len(s.text))
	}
}

func TestNotifier_SenderFailureIsSwallowed(t *testing.T) {
	s := &recordingSender{err: errors.New("provider down")}
	n := NewNotifier(s, zerolog.Nop())
	n.KYCCompleted(context.Background(), "1555", "o-5", "Asha")
	if len(s.text) != 1 {
		t.Fatalf("send not attempted")
	}
}
