// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for Orders and
// their line items.
//
// The agent-action writers (MarkPhotoCaptured, MarkSignatureCaptured,
// MarkKYCCompleted) each persist the action flag, its timestamp, and the
// derived status as ONE update statement. A reader can therefore never
// observe a set flag next to a stale status. Callers are responsible for
// re-reading the authoritative flags (GetAgentActions) before deriving the
// status they pass in.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/whatsorder/go-orders-backend/internal/domain"
)

// CreateOrder inserts the order row and its line items in one transaction.
// Items must already be resolved (product id, frozen unit price, line
// total); this function assigns IDs and the parent order id.
func CreateOrder(ctx context.Context, db *gorm.DB, userID, customerPhone, customerName string, total float64, items []domain.OrderItem) (*domain.Order, error) {
	o := &domain.Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		CustomerPhone: customerPhone,
		CustomerName:  customerName,
		TotalAmount:   total,
		Status:        domain.StatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(o).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].ID = uuid.NewString()
			items[i].OrderID = o.ID
			items[i].CreatedAt = o.CreatedAt
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

// GetOrder fetches a single order with its line items, or ErrNotFound.
func GetOrder(ctx context.Context, db *gorm.DB, id string) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CountOrders returns the total number of orders for pagination.
func CountOrders(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Order{}).Count(&total).Error
	return total, err
}

// ListOrdersPage returns a page of orders with their items, newest first.
// Agents see all orders regardless of owner; filtering by assigned agent or
// region belongs to a later iteration.
func ListOrdersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Order, error) {
	var out []domain.Order
	err := db.WithContext(ctx).
		Preload("Items").
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetAgentActions re-reads the authoritative action flags for an order.
// Status derivation must start from these, never from a copy cached before
// another agent's concurrent action might have landed.
func GetAgentActions(ctx context.Context, db *gorm.DB, id string) (domain.AgentActions, error) {
	var o domain.Order
	err := db.WithContext(ctx).
		Select("photo_captured", "signature_captured", "kyc_completed").
		Where("id = ?", id).
		First(&o).Error
	if err != nil {
		return domain.AgentActions{}, err
	}
	return o.Actions(), nil
}

// MarkPhotoCaptured records the delivery photo action: flag, timestamp, and
// derived status in a single update. Returns ErrNotFound when the order
// does not exist.
func MarkPhotoCaptured(ctx context.Context, db *gorm.DB, id string, at time.Time, status domain.Status) error {
	return applyOrderUpdate(ctx, db, id, map[string]any{
		"photo_captured":    true,
		"photo_captured_at": at,
		"status":            status,
	})
}

// MarkSignatureCaptured records the signature action together with the
// signing customer's name.
func MarkSignatureCaptured(ctx context.Context, db *gorm.DB, id string, at time.Time, customerName string, status domain.Status) error {
	return applyOrderUpdate(ctx, db, id, map[string]any{
		"signature_captured":    true,
		"signature_captured_at": at,
		"customer_name":         customerName,
		"status":                status,
	})
}

// MarkKYCCompleted records the KYC action together with the serialized
// submission payload.
func MarkKYCCompleted(ctx context.Context, db *gorm.DB, id string, at time.Time, kycJSON string, status domain.Status) error {
	return applyOrderUpdate(ctx, db, id, map[string]any{
		"kyc_completed":    true,
		"kyc_completed_at": at,
		"kyc_data":         kycJSON,
		"status":           status,
	})
}

// UpdateOrderStatus sets the status column directly. Only valid for orders
// without agent actions; the service layer enforces that rule.
func UpdateOrderStatus(ctx context.Context, db *gorm.DB, id string, status domain.Status) error {
	return applyOrderUpdate(ctx, db, id, map[string]any{"status": status})
}

// applyOrderUpdate issues one combined UPDATE and maps "no rows" to
// ErrNotFound.
func applyOrderUpdate(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
