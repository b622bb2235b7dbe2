// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Product
// catalog.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a product is not found, functions return ErrNotFound
//     (an alias of gorm.ErrRecordNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/whatsorder/go-orders-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateProduct inserts a new catalog entry. The product ID is a randomly
// generated UUID and CreatedAt is set to UTC.
func CreateProduct(ctx context.Context, db *gorm.DB, name, description string, price float64, stock int) (*domain.Product, error) {
	p := &domain.Product{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Price:       price,
		Stock:       stock,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// ListProducts returns the whole catalog ordered by name. The catalog is
// expected to stay small (it is rendered into chat replies in full).
func ListProducts(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	var out []domain.Product
	err := db.WithContext(ctx).Order("name asc").Find(&out).Error
	return out, err
}

// GetProduct fetches a product by its exact ID, or ErrNotFound.
func GetProduct(ctx context.Context, db *gorm.DB, id string) (*domain.Product, error) {
	var p domain.Product
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// FindProductByName resolves a free-text name to a product using a
// case-insensitive substring match and returns the first match in name
// order, or ErrNotFound. No ranking is applied; with overlapping catalog
// names the first match wins, which is a documented limitation rather than
// something this layer tries to be clever about.
func FindProductByName(ctx context.Context, db *gorm.DB, name string) (*domain.Product, error) {
	var p domain.Product
	pattern := "%" + strings.TrimSpace(name) + "%"
	err := db.WithContext(ctx).
		Where("name LIKE ?", pattern).
		Order("name asc").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}
