// Order, product, account, and webhook HTTP handlers.
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses. Business rules
// (status derivation, catalog resolution, side-effect dispatch) live in
// the services package.
package handlers

import (
	"context"

	"github.com/whatsorder/go-orders-backend/internal/domain"
	"github.com/whatsorder/go-orders-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// OrderService defines order lifecycle operations consumed by HTTP
// handlers. Implementations must be safe for concurrent use and honor the
// provided context.
type OrderService interface {
	// Create resolves items against the catalog and persists the order.
	Create(ctx context.Context, userID, customerPhone, customerName string, items []services.ItemInput) (*domain.Order, error)
	// Get fetches one order with its line items.
	Get(ctx context.Context, id string) (*domain.Order, error)
	// List returns a page of orders, newest first, plus the total count.
	List(ctx context.Context, page, pageSize int) ([]domain.Order, int64, error)
	// RecordPhoto records the delivery photo agent action.
	RecordPhoto(ctx context.Context, orderID, photoData string) (*domain.Order, error)
	// RecordSignature records the signature agent action.
	RecordSignature(ctx context.Context, orderID, signatureData, customerName string) (*domain.Order, error)
	// RecordKYC records the KYC agent action.
	RecordKYC(ctx context.Context, orderID, kycJSON string) (*domain.Order, error)
	// UpdateStatus manually sets the status of an action-free order.
	UpdateStatus(ctx context.Context, orderID string, status domain.Status) (*domain.Order, error)
}

// ProductService defines catalog operations consumed by HTTP handlers.
type ProductService interface {
	Create(ctx context.Context, name, description string, price float64, stock int) (*domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
}

// AccountService defines operator account operations consumed by HTTP
// handlers.
type AccountService interface {
	Register(ctx context.Context, name, email, password string) (*domain.User, string, error)
	Login(ctx context.Context, email, password string) (*domain.User, string, error)
}

// ConversationService processes one inbound chat message end to end.
type ConversationService interface {
	HandleMessage(ctx context.Context, from, profileName, text string) string
}

// EventDeduper gates webhook redeliveries. The first call for a given
// event id succeeds; later calls report a duplicate.
type EventDeduper interface {
	// MarkProcessed returns false when the event was already handled.
	MarkProcessed(ctx context.Context, source, eventID string) (bool, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for orders, products, accounts, and
// the messaging-platform webhook.
type Handlers struct {
	orders   OrderService
	products ProductService
	accounts AccountService
	convo    ConversationService
	dedupe   EventDeduper

	// webhookVerifyToken is the shared secret echoed back during the
	// platform's GET verification handshake.
	webhookVerifyToken string
}

// New constructs a Handlers instance bound to the given services.
func New(orders OrderService, products ProductService, accounts AccountService, convo ConversationService, dedupe EventDeduper, webhookVerifyToken string) *Handlers {
	return &Handlers{
		orders:             orders,
		products:           products,
		accounts:           accounts,
		convo:              convo,
		dedupe:             dedupe,
		webhookVerifyToken: webhookVerifyToken,
	}
}
