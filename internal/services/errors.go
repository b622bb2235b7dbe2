// Package services implements the business logic for orders, the product
// catalog, operator accounts, and the conversational flow. This file
// centralizes service-level error values so they can be consistently
// returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed
// at the handler layer.
package services

import (
	"errors"
	"fmt"

	"github.com/whatsorder/go-orders-backend/internal/domain"
)

// Order-related errors.
var (
	// ErrOrderNotFound indicates that the requested order does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrProductNotFound indicates that the requested product does not exist.
	ErrProductNotFound = errors.New("product not found")

	// ErrEmptyOrder is returned when an order request resolves to zero line
	// items.
	ErrEmptyOrder = errors.New("order must contain at least one item")

	// ErrInvalidStatus is returned when a manual status update names a value
	// outside the allowed set.
	ErrInvalidStatus = errors.New("invalid status value")

	// ErrStatusManaged is returned when a manual status update targets an
	// order whose status is already derived from recorded agent actions.
	ErrStatusManaged = errors.New("status is derived from agent actions and cannot be set manually")

	// ErrMissingPayload is returned when an agent action request lacks its
	// required payload (photo data, signature data, signer name, KYC body).
	ErrMissingPayload = errors.New("required payload is missing")
)

// Account-related errors.
var (
	// ErrEmailTaken is returned when registration uses an email that already
	// has an account.
	ErrEmailTaken = errors.New("email already registered")

	// ErrBadCredentials is returned for login attempts with an unknown email
	// or a wrong password. Callers get no hint which of the two it was.
	ErrBadCredentials = errors.New("invalid email or password")
)

// UnknownProductError reports which requested name failed catalog
// resolution, so the conversational reply can echo the term back to the
// customer. It unwraps to ErrProductNotFound.
type UnknownProductError struct {
	// Name is the free-text product term that matched nothing.
	Name string
	// Catalog holds the current products, used to suggest alternatives.
	Catalog []domain.Product
}

// Error implements the error interface.
func (e *UnknownProductError) Error() string {
	return fmt.Sprintf("product not found: %s", e.Name)
}

// Unwrap lets errors.Is(err, ErrProductNotFound) match.
func (e *UnknownProductError) Unwrap() error { return ErrProductNotFound }
