// Package domain defines the persistence models for users, products, orders,
// and order line items. These types are mapped with GORM and form the core
// data layer of the commerce bot backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// User represents an authenticated operator account (delivery agents,
// catalog admins). Conversational customers are not users; they are
// identified by phone number only.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Name: display name.
//   - Email: login identifier, unique.
//   - PasswordHash: bcrypt hash; never serialized.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type User struct {
	ID           string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Name         string    `json:"name"       gorm:"type:varchar(128);not null"`
	Email        string    `json:"email"      gorm:"type:varchar(255);not null;uniqueIndex"`
	PasswordHash string    `json:"-"          gorm:"type:varchar(128);not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Product is a catalog entry that conversational orders resolve against.
//
// Name resolution from chat input is a case-insensitive substring match, so
// names should stay short and distinctive. Overlapping names resolve to the
// first match; the catalog owner is responsible for avoiding collisions.
type Product struct {
	ID          string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Name        string    `json:"name"        gorm:"type:varchar(255);not null;index"`
	Description string    `json:"description" gorm:"type:text"`
	Price       float64   `json:"price"       gorm:"not null"`
	Stock       int       `json:"stock"       gorm:"not null;default:0"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Product.
func (Product) TableName() string { return "products" }

// Order is a purchase created from a conversation or the public API.
//
// TotalAmount is computed once at creation from the resolved line items and
// never recomputed. Status is derived exclusively from the agent action flags
// via DeriveStatus once any action has been recorded; the three *_captured /
// *_completed columns plus Status are always written in a single combined
// update so a reader can never observe a flag without its matching status.
type Order struct {
	ID            string  `json:"id"             gorm:"type:char(36);primaryKey"`
	UserID        string  `json:"user_id"        gorm:"type:varchar(64);not null;index:idx_user_orders"`
	CustomerPhone string  `json:"customer_phone" gorm:"type:varchar(32);index"`
	CustomerName  string  `json:"customer_name"  gorm:"type:varchar(128)"`
	TotalAmount   float64 `json:"total_amount"   gorm:"not null"`
	Status        Status  `json:"status"         gorm:"type:varchar(16);not null;default:'pending';index"`

	PhotoCaptured       bool       `json:"photo_captured"               gorm:"not null;default:false"`
	PhotoCapturedAt     *time.Time `json:"photo_captured_at,omitempty"`
	SignatureCaptured   bool       `json:"signature_captured"           gorm:"not null;default:false"`
	SignatureCapturedAt *time.Time `json:"signature_captured_at,omitempty"`
	KYCCompleted        bool       `json:"kyc_completed"                gorm:"not null;default:false"`
	KYCCompletedAt      *time.Time `json:"kyc_completed_at,omitempty"`
	KYCData             string     `json:"-"                            gorm:"type:text"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Items are the immutable line items captured at creation time.
	Items []OrderItem `json:"items" gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }

// Actions returns the order's agent action flags as a value suitable for
// DeriveStatus. Prefer repo.GetAgentActions when the authoritative current
// flags are needed; this accessor reflects whatever copy the caller holds.
func (o *Order) Actions() AgentActions {
	return AgentActions{
		PhotoCaptured:     o.PhotoCaptured,
		SignatureCaptured: o.SignatureCaptured,
		KYCCompleted:      o.KYCCompleted,
	}
}

// OrderItem is one resolved line of an order. Line items are immutable after
// order creation; LineTotal is UnitPrice times Quantity frozen at that moment,
// so later catalog price changes never affect past orders.
type OrderItem struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	OrderID     string    `json:"order_id"     gorm:"type:char(36);not null;index"`
	ProductID   string    `json:"product_id"   gorm:"type:char(36);not null"`
	ProductName string    `json:"product_name" gorm:"type:varchar(255);not null"`
	Quantity    int       `json:"quantity"     gorm:"not null"`
	UnitPrice   float64   `json:"unit_price"   gorm:"not null"`
	LineTotal   float64   `json:"total_price"  gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for OrderItem.
func (OrderItem) TableName() string { return "order_items" }

// ProcessedEvent records an inbound platform event (keyed by source and the
// platform's message/event id) that has already been handled. The messaging
// platform redelivers webhooks it considers unacknowledged; inserting into
// this table is the dedupe gate, with a unique violation meaning "already
// processed, skip". ExpiresAt bounds table growth via periodic purges.
type ProcessedEvent struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	Source    string    `gorm:"type:varchar(32);not null;uniqueIndex:ux_source_event,priority:1"`
	EventID   string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_source_event,priority:2"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName returns the database table name for ProcessedEvent.
func (ProcessedEvent) TableName() string { return "processed_events" }

// InboundMessage archives one raw inbound chat message. Archiving is
// best-effort: a failed insert is logged and the conversation proceeds.
type InboundMessage struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	UserName  string    `gorm:"type:varchar(64);not null;index"`
	Message   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the database table name for InboundMessage.
func (InboundMessage) TableName() string { return "messages" }
