package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const sourceCatalog = "catalog"

// CatalogOracle reads stock straight from the product table. It is used when
// no external inventory service is configured.
type CatalogOracle struct {
	products repository.ProductRepository
	timeout  time.Duration
}

// NewCatalogOracle creates an oracle over the product repository.
func NewCatalogOracle(products repository.ProductRepository, timeout time.Duration) *CatalogOracle {
	return &CatalogOracle{products: products, timeout: timeout}
}

// Lookup returns the product with its current count_in_stock.
func (o *CatalogOracle) Lookup(ctx context.Context, productID string) (*domain.Product, error) {
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	p, err := o.products.GetByID(callCtx, productID)
	if errors.Is(err, apperrors.ErrNotFound) {
		err = ErrProductNotFound
	} else if err != nil {
		err = fmt.Errorf("read catalog stock: %w", err)
	}

	outcome, err := classify(ctx, err)
	observe(sourceCatalog, start, outcome)
	if err != nil {
		return nil, err
	}
	return p, nil
}
