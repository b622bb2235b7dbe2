// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the
// ProcessedEvent model used to deduplicate redelivered platform webhooks,
// plus best-effort archiving of raw inbound messages.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/whatsorder/go-orders-backend/internal/domain"
)

// MarkEventProcessed claims an inbound event id. The insert doubles as the
// dedupe gate: ErrDuplicate means another delivery of the same event was
// already handled and the caller must skip processing.
func MarkEventProcessed(ctx context.Context, db *gorm.DB, source, eventID string, ttl time.Duration) error {
	now := time.Now().UTC()
	rec := &domain.ProcessedEvent{
		ID:        uuid.NewString(),
		Source:    source,
		EventID:   eventID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// DeleteExpiredEvents purges dedupe records whose retention window has
// lapsed. The platform stops redelivering long before then, so dropping the
// rows is safe; the server runs this periodically to bound table growth.
func DeleteExpiredEvents(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.ProcessedEvent{})
	return res.RowsAffected, res.Error
}

// SaveInboundMessage archives one raw inbound chat message. Callers treat
// failures as log-only; the conversation must not depend on the archive.
func SaveInboundMessage(ctx context.Context, db *gorm.DB, userName, text string) error {
	m := &domain.InboundMessage{
		ID:        uuid.NewString(),
		UserName:  userName,
		Message:   text,
		CreatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).Create(m).Error
}
