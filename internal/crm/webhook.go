package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Event names carried in outbound webhook envelopes.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// Envelope is the payload delivered to every subscriber endpoint.
type Envelope struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
}

// WebhookNotifier fans an event out to a fixed list of subscriber URLs.
// Deliveries are concurrent and independent: one endpoint timing out or
// answering 5xx never blocks or fails the others, and no delivery is
// retried.
type WebhookNotifier struct {
	urls []string
	http *http.Client
	log  zerolog.Logger
}

// NewWebhookNotifier builds a notifier for the given destination URLs.
func NewWebhookNotifier(urls []string, log zerolog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		urls: urls,
		http: &http.Client{Timeout: defaultHTTPTimeout},
		log:  log,
	}
}

// Notify posts the enveloped event to every destination and waits for all
// deliveries to finish. The returned count is the number of failed
// deliveries; per-destination errors are logged, not returned.
func (w *WebhookNotifier) Notify(ctx context.Context, event string, data any) int {
	if len(w.urls) == 0 {
		return 0
	}
	env := Envelope{
		Event:     event,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	}
	body, err := json.Marshal(env)
	if err != nil {
		w.log.Error().Err(err).Str("event", event).Msg("webhook payload marshal failed")
		return len(w.urls)
	}

	failures := make(chan bool, len(w.urls))
	for _, url := range w.urls {
		go func(url string) {
			failures <- w.deliver(ctx, url, event, body) != nil
		}(url)
	}
	failed := 0
	for range w.urls {
		if <-failures {
			failed++
		}
	}
	return failed
}

func (w *WebhookNotifier) deliver(ctx context.Context, url, event string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		w.log.Warn().Err(err).Str("url", url).Str("event", event).Msg("webhook request build failed")
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "orders-bot-webhook/1.0")

	resp, err := w.http.Do(req)
	if err != nil {
		w.log.Warn().Err(err).Str("url", url).Str("event", event).Msg("webhook delivery failed")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		err := fmt.Errorf("webhook delivery: status %d", resp.StatusCode)
		w.log.Warn().Err(err).Str("url", url).Str("event", event).Msg("webhook destination rejected event")
		return err
	}
	w.log.Debug().Str("url", url).Str("event", event).Msg("webhook delivered")
	return nil
}
