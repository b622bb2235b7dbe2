package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/whatsorder/go-orders-backend/internal/crm"
	"github.com/whatsorder/go-orders-backend/internal/domain"
	"github.com/whatsorder/go-orders-backend/internal/repo"
)

// OrderRepo defines the repository contract required by OrderService.
type OrderRepo interface {
	// CreateOrder inserts an order and its resolved line items atomically.
	CreateOrder(ctx context.Context, db *gorm.DB, userID, customerPhone, customerName string, total float64, items []domain.OrderItem) (*domain.Order, error)

	// GetOrder fetches one order with its items.
	GetOrder(ctx context.Context, db *gorm.DB, id string) (*domain.Order, error)

	// CountOrders returns the total number of orders for pagination.
	CountOrders(ctx context.Context, db *gorm.DB) (int64, error)

	// ListOrdersPage returns a page of orders, newest first.
	ListOrdersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Order, error)

	// GetAgentActions re-reads the authoritative action flags.
	GetAgentActions(ctx context.Context, db *gorm.DB, id string) (domain.AgentActions, error)

	// MarkPhotoCaptured persists the photo flag, timestamp, and status in one
	// update.
	MarkPhotoCaptured(ctx context.Context, db *gorm.DB, id string, at time.Time, status domain.Status) error

	// MarkSignatureCaptured persists the signature flag, timestamp, signer
	// name, and status in one update.
	MarkSignatureCaptured(ctx context.Context, db *gorm.DB, id string, at time.Time, customerName string, status domain.Status) error

	// MarkKYCCompleted persists the KYC flag, timestamp, payload, and status
	// in one update.
	MarkKYCCompleted(ctx context.Context, db *gorm.DB, id string, at time.Time, kycJSON string, status domain.Status) error

	// UpdateOrderStatus sets the status column directly.
	UpdateOrderStatus(ctx context.Context, db *gorm.DB, id string, status domain.Status) error
}

// ProductRepo defines the catalog contract required by OrderService and
// ProductService.
type ProductRepo interface {
	CreateProduct(ctx context.Context, db *gorm.DB, name, description string, price float64, stock int) (*domain.Product, error)
	ListProducts(ctx context.Context, db *gorm.DB) ([]domain.Product, error)
	GetProduct(ctx context.Context, db *gorm.DB, id string) (*domain.Product, error)
	FindProductByName(ctx context.Context, db *gorm.DB, name string) (*domain.Product, error)
}

// SideEffects receives order events for the best-effort enrichment
// pipeline. crm.Pipeline is the production implementation.
type SideEffects interface {
	OrderCreated(o crm.OrderSummary)
	StatusChanged(o crm.OrderSummary)
}

// CustomerNotifier sends customer-facing progress messages.
// messaging.Notifier is the production implementation.
type CustomerNotifier interface {
	PhotoCaptured(ctx context.Context, phone, orderID string)
	DeliveryCompleted(ctx context.Context, phone, orderID, customerName string)
	KYCCompleted(ctx context.Context, phone, orderID, customerName string)
	StatusChanged(ctx context.Context, phone, orderID, oldStatus, newStatus string)
}

// ItemInput is one requested order line before catalog resolution. Either
// ProductID (API clients) or Name (conversational orders) identifies the
// product; a non-positive quantity is coerced to 1.
type ItemInput struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
}

// OrderService creates orders from resolved catalog items, records agent
// actions, and derives order status. It owns the rule that status is a pure
// function of the recorded actions: every action write re-reads the
// authoritative flags first, and manual status updates are refused once any
// action exists.
type OrderService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Orders is the order repository.
	Orders OrderRepo
	// Products is the catalog repository used for item resolution.
	Products ProductRepo
	// Effects receives order events; may be nil in tests.
	Effects SideEffects
	// Notify sends customer progress messages; may be nil in tests.
	Notify CustomerNotifier
	// Log is the service logger.
	Log zerolog.Logger
}

// Create resolves the requested items against the catalog, freezes unit
// prices, computes the total, and persists the order. On success the
// order-created side effects are dispatched asynchronously; their outcome
// never affects the returned order.
func (s *OrderService) Create(ctx context.Context, userID, customerPhone, customerName string, items []ItemInput) (*domain.Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}

	lines := make([]domain.OrderItem, 0, len(items))
	var total float64
	for _, in := range items {
		p, err := s.resolveProduct(ctx, in)
		if err != nil {
			return nil, err
		}
		qty := in.Quantity
		if qty <= 0 {
			qty = 1
		}
		lineTotal := p.Price * float64(qty)
		total += lineTotal
		lines = append(lines, domain.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    qty,
			UnitPrice:   p.Price,
			LineTotal:   lineTotal,
		})
	}

	o, err := s.Orders.CreateOrder(ctx, s.DB, userID, customerPhone, customerName, total, lines)
	if err != nil {
		return nil, err
	}
	s.Log.Info().Str("order_id", o.ID).Float64("total", o.TotalAmount).
		Int("items", len(o.Items)).Msg("order created")

	if s.Effects != nil {
		s.Effects.OrderCreated(summarize(o))
	}
	return o, nil
}

func (s *OrderService) resolveProduct(ctx context.Context, in ItemInput) (*domain.Product, error) {
	if in.ProductID != "" {
		p, err := s.Products.GetProduct(ctx, s.DB, in.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, &UnknownProductError{Name: in.ProductID, Catalog: s.catalogForError(ctx)}
		}
		return p, err
	}
	if in.Name == "" {
		return nil, ErrMissingPayload
	}
	p, err := s.Products.FindProductByName(ctx, s.DB, in.Name)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, &UnknownProductError{Name: in.Name, Catalog: s.catalogForError(ctx)}
	}
	return p, err
}

// catalogForError loads the catalog for inclusion in UnknownProductError.
// A failed load degrades to an empty suggestion list.
func (s *OrderService) catalogForError(ctx context.Context) []domain.Product {
	products, err := s.Products.ListProducts(ctx, s.DB)
	if err != nil {
		s.Log.Warn().Err(err).Msg("catalog load for error reply failed")
		return nil
	}
	return products
}

// Get fetches one order with its line items.
func (s *OrderService) Get(ctx context.Context, id string) (*domain.Order, error) {
	o, err := s.Orders.GetOrder(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	return o, err
}

// List returns a page of orders, newest first, plus the total count.
// Invalid page/pageSize values fall back to defaults.
func (s *OrderService) List(ctx context.Context, page, pageSize int) ([]domain.Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	total, err := s.Orders.CountOrders(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	out, err := s.Orders.ListOrdersPage(ctx, s.DB, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// RecordPhoto records the delivery photo action. The photo payload itself
// is required but not persisted; only the fact of capture, its timestamp,
// and the resulting derived status are stored.
func (s *OrderService) RecordPhoto(ctx context.Context, orderID, photoData string) (*domain.Order, error) {
	if photoData == "" {
		return nil, ErrMissingPayload
	}
	before, actions, err := s.loadForAction(ctx, orderID)
	if err != nil {
		return nil, err
	}

	actions.PhotoCaptured = true
	status := domain.DeriveStatus(actions)
	if err := s.Orders.MarkPhotoCaptured(ctx, s.DB, orderID, time.Now().UTC(), status); err != nil {
		return nil, err
	}

	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if s.Notify != nil {
		s.Notify.PhotoCaptured(ctx, o.CustomerPhone, o.ID)
	}
	s.dispatchStatusChanged(before.Status, o)
	return o, nil
}

// loadForAction fetches the order (for its pre-action status and customer
// fields) and the authoritative action flags. The flags come from their own
// query so a concurrent agent action that landed after the order read is
// still observed.
func (s *OrderService) loadForAction(ctx context.Context, orderID string) (*domain.Order, domain.AgentActions, error) {
	before, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, domain.AgentActions{}, err
	}
	actions, err := s.Orders.GetAgentActions(ctx, s.DB, orderID)
	if err != nil {
		return nil, domain.AgentActions{}, err
	}
	return before, actions, nil
}

// RecordSignature records the signature action together with the signing
// customer's name, which also becomes the order's customer name.
func (s *OrderService) RecordSignature(ctx context.Context, orderID, signatureData, customerName string) (*domain.Order, error) {
	if signatureData == "" || customerName == "" {
		return nil, ErrMissingPayload
	}
	before, actions, err := s.loadForAction(ctx, orderID)
	if err != nil {
		return nil, err
	}

	actions.SignatureCaptured = true
	status := domain.DeriveStatus(actions)
	if err := s.Orders.MarkSignatureCaptured(ctx, s.DB, orderID, time.Now().UTC(), customerName, status); err != nil {
		return nil, err
	}

	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if s.Notify != nil {
		s.Notify.DeliveryCompleted(ctx, o.CustomerPhone, o.ID, o.CustomerName)
	}
	s.dispatchStatusChanged(before.Status, o)
	return o, nil
}

// RecordKYC records the KYC action together with the serialized submission
// payload.
func (s *OrderService) RecordKYC(ctx context.Context, orderID, kycJSON string) (*domain.Order, error) {
	if kycJSON == "" || kycJSON == "{}" || kycJSON == "null" {
		return nil, ErrMissingPayload
	}
	before, actions, err := s.loadForAction(ctx, orderID)
	if err != nil {
		return nil, err
	}

	actions.KYCCompleted = true
	status := domain.DeriveStatus(actions)
	if err := s.Orders.MarkKYCCompleted(ctx, s.DB, orderID, time.Now().UTC(), kycJSON, status); err != nil {
		return nil, err
	}

	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if s.Notify != nil {
		s.Notify.KYCCompleted(ctx, o.CustomerPhone, o.ID, o.CustomerName)
	}
	s.dispatchStatusChanged(before.Status, o)
	return o, nil
}

// UpdateStatus sets the status of an order that has no recorded agent
// actions. Once any action exists the status is derived and this method
// returns ErrStatusManaged.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, status domain.Status) (*domain.Order, error) {
	if !status.IsManual() {
		return nil, ErrInvalidStatus
	}
	before, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	actions, err := s.Orders.GetAgentActions(ctx, s.DB, orderID)
	if err != nil {
		return nil, err
	}
	if actions.Any() {
		return nil, ErrStatusManaged
	}
	if err := s.Orders.UpdateOrderStatus(ctx, s.DB, orderID, status); err != nil {
		return nil, err
	}

	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if s.Notify != nil {
		s.Notify.StatusChanged(ctx, o.CustomerPhone, o.ID, string(before.Status), string(o.Status))
	}
	s.dispatchStatusChanged(before.Status, o)
	return o, nil
}

// dispatchStatusChanged queues the status-changed side effects, but only
// when the status actually moved; re-recording an action that leaves the
// derived status unchanged stays silent.
func (s *OrderService) dispatchStatusChanged(before domain.Status, o *domain.Order) {
	if s.Effects != nil && o.Status != before {
		s.Effects.StatusChanged(summarize(o))
	}
}

// summarize projects an order into the cross-system summary shared with
// the CRM and webhook subscribers.
func summarize(o *domain.Order) crm.OrderSummary {
	items := make([]crm.ItemSummary, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, crm.ItemSummary{
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			LineTotal:   it.LineTotal,
		})
	}
	return crm.OrderSummary{
		OrderID:       o.ID,
		Total:         o.TotalAmount,
		Items:         items,
		CustomerPhone: o.CustomerPhone,
		CustomerName:  o.CustomerName,
		Status:        o.Status,
		CreatedAt:     o.CreatedAt,
	}
}
