package crm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

func TestPipeline_OrderCreatedSyncsCRMAndWebhooks(t *testing.T) {
	var contactCreated, dealCreated atomic.Bool
	crmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/crm/v3/objects/contacts":
			contactCreated.Store(true)
			json.NewEncoder(w).Encode(Contact{ID: "c-1"})
		case "/crm/v3/objects/deals":
			dealCreated.Store(true)
			json.NewEncoder(w).Encode(Deal{ID: "d-1"})
		case "/crm/v4/objects/deals/d-1/associations/contacts/c-1":
		default:
			t.Errorf("unexpected crm path %s", r.URL.Path)
		}
	}))
	var webhookHit atomic.Bool
	hookSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		webhookHit.Store(true)
	}))
	t.Cleanup(crmSrv.Close)
	t.Cleanup(hookSrv.Close)

	h := NewHubSpot("test-key", zerolog.Nop())
	h.baseURL = crmSrv.URL
	p := NewPipeline(h, NewWebhookNotifier([]string{hookSrv.URL}, zerolog.Nop()), zerolog.Nop())

	p.OrderCreated(OrderSummary{OrderID: "o-1", CustomerPhone: "919876543210", Total: 120})
	p.Close()

	if !contactCreated.Load() || !dealCreated.Load() {
		t.Fatalf("crm sync incomplete: contact=%v deal=%v", contactCreated.Load(), dealCreated.Load())
	}
	if !webhookHit.Load() {
		t.Fatal("order.created webhook not delivered")
	}
}

func TestPipeline_EmptyPhoneSkipsCRMButNotWebhooks(t *testing.T) {
	crmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("crm called for phoneless order: %s", r.URL.Path)
	}))
	var webhookHit atomic.Bool
	hookSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		webhookHit.Store(true)
	}))
	t.Cleanup(crmSrv.Close)
	t.Cleanup(hookSrv.Close)

	h := NewHubSpot("test-key", zerolog.Nop())
	h.baseURL = crmSrv.URL
	p := NewPipeline(h, NewWebhookNotifier([]string{hookSrv.URL}, zerolog.Nop()), zerolog.Nop())

	p.OrderCreated(OrderSummary{OrderID: "o-2", Total: 40})
	p.Close()

	if !webhookHit.Load() {
		t.Fatal("webhook skipped for phoneless order")
	}
}

func TestPipeline_CRMFailureDoesNotStopWebhooks(t *testing.T) {
	crmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	var webhookHit atomic.Bool
	hookSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		webhookHit.Store(true)
	}))
	t.Cleanup(crmSrv.Close)
	t.Cleanup(hookSrv.Close)

	h := NewHubSpot("test-key", zerolog.Nop())
	h.baseURL = crmSrv.URL
	p := NewPipeline(h, NewWebhookNotifier([]string{hookSrv.URL}, zerolog.Nop()), zerolog.Nop())

	p.StatusChanged(OrderSummary{OrderID: "o-3", Status: "delivered"})
	p.Close()

	if !webhookHit.Load() {
		t.Fatal("crm failure suppressed webhook fan-out")
	}
}
