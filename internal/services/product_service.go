package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/whatsorder/go-orders-backend/internal/domain"
	"github.com/whatsorder/go-orders-backend/internal/repo"
)

// ProductService manages the catalog that conversational orders resolve
// against.
type ProductService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the catalog repository.
	Repo ProductRepo
}

// Create inserts a catalog entry. Name is required and trimmed; a negative
// price or stock is rejected.
func (s *ProductService) Create(ctx context.Context, name, description string, price float64, stock int) (*domain.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" || price < 0 || stock < 0 {
		return nil, ErrMissingPayload
	}
	return s.Repo.CreateProduct(ctx, s.DB, name, strings.TrimSpace(description), price, stock)
}

// List returns the full catalog ordered by name.
func (s *ProductService) List(ctx context.Context) ([]domain.Product, error) {
	return s.Repo.ListProducts(ctx, s.DB)
}

// Get fetches one product by ID.
func (s *ProductService) Get(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.Repo.GetProduct(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	return p, err
}
