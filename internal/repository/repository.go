package repository

import (
	"context"
	"errors"

	"github.com/utafrali/storefront/internal/domain"
)

// ErrStorageUnavailable means the session store could not be reached. Callers
// keep serving the session from memory.
var ErrStorageUnavailable = errors.New("session storage unavailable")

// SessionStore is the durable mirror of live sessions.
type SessionStore interface {
	// Load returns the stored session, or a fresh one when nothing is stored.
	Load(ctx context.Context, id string) (*domain.Session, error)

	// Save overwrites the whole stored record for the session.
	Save(ctx context.Context, session *domain.Session) error

	// Delete removes the stored record.
	Delete(ctx context.Context, id string) error
}

// ProductFilter defines filter criteria for listing products.
type ProductFilter struct {
	Category *string
	Page     int
	PerPage  int
}

// ProductRepository defines the interface for product persistence operations.
type ProductRepository interface {
	// Create inserts a new product into the store.
	Create(ctx context.Context, product *domain.Product) error

	// GetByID retrieves a product by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// GetBySlug retrieves a product by its URL-friendly slug.
	GetBySlug(ctx context.Context, slug string) (*domain.Product, error)

	// List returns products matching the given filter along with the total count.
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error)
}

// CategoryRepository lists the categories products are filed under.
type CategoryRepository interface {
	List(ctx context.Context) ([]domain.Category, error)
}
