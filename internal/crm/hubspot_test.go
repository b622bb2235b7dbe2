package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/whatsorder/go-orders-backend/internal/domain"
)

func testHubSpot(t *testing.T, handler http.Handler) *HubSpot {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	h := NewHubSpot("test-key", zerolog.Nop())
	h.baseURL = srv.URL
	return h
}

func TestUpsertContact_CreatesNew(t *testing.T) {
	h := testHubSpot(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/crm/v3/objects/contacts" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		var body struct {
			Properties map[string]any `json:"properties"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.Properties["phone"] != "919876543210" {
			t.Errorf("phone = %v", body.Properties["phone"])
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Contact{ID: "c-1"})
	}))

	c, err := h.UpsertContact(context.Background(), "919876543210", "Asha")
	if err != nil {
		t.Fatalf("UpsertContact: %v", err)
	}
	if c == nil || c.ID != "c-1" {
		t.Fatalf("contact = %+v", c)
	}
}

func TestUpsertContact_ConflictFallsBackToSearch(t *testing.T) {
	var searched atomic.Bool
	h := testHubSpot(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/crm/v3/objects/contacts":
			w.WriteHeader(http.StatusConflict)
		case "/crm/v3/objects/contacts/search":
			searched.Store(true)
			json.NewEncoder(w).Encode(map[string]any{
				"results": []Contact{{ID: "c-existing"}},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	c, err := h.UpsertContact(context.Background(), "919876543210", "")
	if err != nil {
		t.Fatalf("UpsertContact: %v", err)
	}
	if !searched.Load() {
		t.Fatal("409 did not trigger search by phone")
	}
	if c == nil || c.ID != "c-existing" {
		t.Fatalf("contact = %+v", c)
	}
}

func TestCreateDeal_AssociatesWithContact(t *testing.T) {
	var associated atomic.Bool
	h := testHubSpot(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/crm/v3/objects/deals":
			json.NewEncoder(w).Encode(Deal{ID: "d-1"})
		case "/crm/v4/objects/deals/d-1/associations/contacts/c-1":
			associated.Store(true)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	o := OrderSummary{
		OrderID:       "o-1",
		Total:         120,
		CustomerPhone: "919876543210",
		Items:         []ItemSummary{{ProductName: "Bananas", Quantity: 3, LineTotal: 120}},
	}
	d, err := h.CreateDeal(context.Background(), o, "c-1")
	if err != nil {
		t.Fatalf("CreateDeal: %v", err)
	}
	if d == nil || d.ID != "d-1" {
		t.Fatalf("deal = %+v", d)
	}
	if !associated.Load() {
		t.Fatal("deal was not associated with contact")
	}
}

func TestFindDealByOrderID_NoMatch(t *testing.T) {
	h := testHubSpot(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"results": []Deal{}})
	}))
	d, err := h.FindDealByOrderID(context.Background(), "o-404")
	if err != nil {
		t.Fatalf("FindDealByOrderID: %v", err)
	}
	if d != nil {
		t.Fatalf("expected nil deal, got %+v", d)
	}
}

func TestUnconfiguredClientIsNoOp(t *testing.T) {
	h := NewHubSpot("", zerolog.Nop())
	if h.Configured() {
		t.Fatal("empty key reported as configured")
	}
	c, err := h.UpsertContact(context.Background(), "1555", "x")
	if err != nil || c != nil {
		t.Fatalf("UpsertContact = (%+v, %v)", c, err)
	}
	if err := h.UpdateDealStage(context.Background(), "d-1", "closedwon"); err != nil {
		t.Fatalf("UpdateDealStage: %v", err)
	}
}

func TestDealStageFor(t *testing.T) {
	cases := map[domain.Status]string{
		domain.StatusPending:    "qualifiedtoprospect",
		domain.StatusConfirmed:  "presentationscheduled",
		domain.StatusPreparing:  "decisionmakerboughtin",
		domain.StatusShipped:    "contractsent",
		domain.StatusDelivered:  "closedwon",
		domain.StatusCompleted:  "closedwon",
		domain.StatusCancelled:  "closedlost",
		domain.StatusInProgress: "qualifiedtoprospect",
	}
	for status, want := range cases {
		if got := DealStageFor(status); got != want {
			t.Errorf("DealStageFor(%s) = %q, want %q", status, got, want)
		}
	}
}
