// Package crm implements the best-effort enrichment pipeline: HubSpot
// contact/deal synchronization and fan-out to subscriber webhooks. Nothing
// in this package is authoritative for order state and nothing here may
// fail the order path; callers go through Pipeline, which isolates every
// step behind its own failure boundary.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/whatsorder/go-orders-backend/internal/domain"
)

// hubspotBaseURL is the production API host; tests override it.
const hubspotBaseURL = "https://api.hubapi.com"

// defaultHTTPTimeout bounds every outbound CRM call so a slow third party
// cannot hold a pipeline worker hostage.
const defaultHTTPTimeout = 10 * time.Second

// Contact is the subset of a HubSpot contact this system cares about.
type Contact struct {
	ID string `json:"id"`
}

// Deal is the subset of a HubSpot deal this system cares about.
type Deal struct {
	ID string `json:"id"`
}

// ItemSummary is one order line in the cross-system order summary.
type ItemSummary struct {
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	LineTotal   float64 `json:"total_price"`
}

// OrderSummary is the order projection shared with the CRM and webhook
// subscribers. It is built once at dispatch time from the authoritative
// order and never re-read.
type OrderSummary struct {
	OrderID       string        `json:"orderId"`
	Total         float64       `json:"total"`
	Items         []ItemSummary `json:"items"`
	CustomerPhone string        `json:"customerPhone,omitempty"`
	CustomerName  string        `json:"customerName,omitempty"`
	Status        domain.Status `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// itemsDescription renders "2x Apples, 1x Milk" for the deal description.
func (o OrderSummary) itemsDescription() string {
	parts := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		parts = append(parts, fmt.Sprintf("%dx %s", it.Quantity, it.ProductName))
	}
	return strings.Join(parts, ", ")
}

// HubSpot is a minimal HubSpot CRM v3 client. A zero API key disables it:
// every method becomes a logged no-op returning (nil, nil), which keeps the
// pipeline code free of configuration checks.
type HubSpot struct {
	apiKey  string
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewHubSpot builds a client. An empty apiKey yields a disabled client.
func NewHubSpot(apiKey string, log zerolog.Logger) *HubSpot {
	return &HubSpot{
		apiKey:  apiKey,
		baseURL: hubspotBaseURL,
		http:    &http.Client{Timeout: defaultHTTPTimeout},
		log:     log,
	}
}

// Configured reports whether an API key is present.
func (h *HubSpot) Configured() bool { return h.apiKey != "" }

// UpsertContact creates a contact keyed by phone number. When HubSpot
// answers 409 (contact exists) the existing contact is looked up by phone
// instead of failing.
func (h *HubSpot) UpsertContact(ctx context.Context, phone, name string) (*Contact, error) {
	if !h.Configured() {
		return nil, nil
	}
	props := map[string]any{
		"phone":                    phone,
		"hs_whatsapp_phone_number": phone,
		"lifecyclestage":           "lead",
		"lead_source":              "WhatsApp Bot",
	}
	if name != "" {
		props["firstname"] = name
	}

	var out Contact
	status, err := h.do(ctx, http.MethodPost, "/crm/v3/objects/contacts", map[string]any{"properties": props}, &out)
	switch {
	case err != nil:
		return nil, err
	case status == http.StatusConflict:
		return h.FindContactByPhone(ctx, phone)
	case status >= 300:
		return nil, fmt.Errorf("hubspot contact create: status %d", status)
	}
	return &out, nil
}

// FindContactByPhone searches for a contact by its phone property and
// returns (nil, nil) when none matches.
func (h *HubSpot) FindContactByPhone(ctx context.Context, phone string) (*Contact, error) {
	if !h.Configured() {
		return nil, nil
	}
	body := map[string]any{
		"filterGroups": []any{
			map[string]any{
				"filters": []any{
					map[string]any{"propertyName": "phone", "operator": "EQ", "value": phone},
				},
			},
		},
	}
	var out struct {
		Results []Contact `json:"results"`
	}
	status, err := h.do(ctx, http.MethodPost, "/crm/v3/objects/contacts/search", body, &out)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("hubspot contact search: status %d", status)
	}
	if len(out.Results) == 0 {
		return nil, nil
	}
	return &out.Results[0], nil
}

// CreateDeal records the order as a deal. When contactID is non-empty the
// deal is associated with that contact; an association failure is logged
// but the created deal is still returned.
func (h *HubSpot) CreateDeal(ctx context.Context, o OrderSummary, contactID string) (*Deal, error) {
	if !h.Configured() {
		return nil, nil
	}
	body := map[string]any{
		"properties": map[string]any{
			"dealname":              fmt.Sprintf("WhatsApp Order #%s", o.OrderID),
			"amount":                o.Total,
			"dealstage":             "qualifiedtoprospect",
			"pipeline":              "default",
			"source":                "WhatsApp Bot",
			"description":           "Order items: " + o.itemsDescription(),
			"custom_order_id":       o.OrderID,
			"whatsapp_phone_number": o.CustomerPhone,
		},
	}
	var out Deal
	status, err := h.do(ctx, http.MethodPost, "/crm/v3/objects/deals", body, &out)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("hubspot deal create: status %d", status)
	}
	if contactID != "" {
		if err := h.AssociateDealWithContact(ctx, out.ID, contactID); err != nil {
			h.log.Warn().Err(err).Str("deal_id", out.ID).Str("contact_id", contactID).
				Msg("deal-contact association failed")
		}
	}
	return &out, nil
}

// AssociateDealWithContact links a deal to a contact using the default
// HubSpot-defined deal→contact association type.
func (h *HubSpot) AssociateDealWithContact(ctx context.Context, dealID, contactID string) error {
	if !h.Configured() {
		return nil
	}
	path := fmt.Sprintf("/crm/v4/objects/deals/%s/associations/contacts/%s", dealID, contactID)
	body := []any{
		map[string]any{"associationCategory": "HUBSPOT_DEFINED", "associationTypeId": 3},
	}
	status, err := h.do(ctx, http.MethodPut, path, body, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("hubspot association: status %d", status)
	}
	return nil
}

// FindDealByOrderID searches for the deal carrying the given order id in
// its custom_order_id property, returning (nil, nil) when none matches.
func (h *HubSpot) FindDealByOrderID(ctx context.Context, orderID string) (*Deal, error) {
	if !h.Configured() {
		return nil, nil
	}
	body := map[string]any{
		"filterGroups": []any{
			map[string]any{
				"filters": []any{
					map[string]any{"propertyName": "custom_order_id", "operator": "EQ", "value": orderID},
				},
			},
		},
	}
	var out struct {
		Results []Deal `json:"results"`
	}
	status, err := h.do(ctx, http.MethodPost, "/crm/v3/objects/deals/search", body, &out)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("hubspot deal search: status %d", status)
	}
	if len(out.Results) == 0 {
		return nil, nil
	}
	return &out.Results[0], nil
}

// UpdateDealStage moves a deal to the given pipeline stage.
func (h *HubSpot) UpdateDealStage(ctx context.Context, dealID, stage string) error {
	if !h.Configured() {
		return nil
	}
	body := map[string]any{"properties": map[string]any{"dealstage": stage}}
	status, err := h.do(ctx, http.MethodPatch, "/crm/v3/objects/deals/"+dealID, body, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("hubspot deal stage update: status %d", status)
	}
	return nil
}

// DealStageFor maps an order status onto the default HubSpot pipeline.
// Unknown statuses map to the entry stage.
func DealStageFor(status domain.Status) string {
	switch status {
	case domain.StatusPending:
		return "qualifiedtoprospect"
	case domain.StatusConfirmed:
		return "presentationscheduled"
	case domain.StatusPreparing:
		return "decisionmakerboughtin"
	case domain.StatusShipped:
		return "contractsent"
	case domain.StatusDelivered, domain.StatusCompleted:
		return "closedwon"
	case domain.StatusCancelled:
		return "closedlost"
	default:
		return "qualifiedtoprospect"
	}
}

// do sends one authenticated JSON request and decodes the response into out
// when provided and the status is 2xx. The HTTP status is always returned
// so callers can branch on conflict responses.
func (h *HubSpot) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, rd)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}
