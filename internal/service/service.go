package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/oracle"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Domain error kinds surfaced by the storefront services.
var (
	ErrOutOfStock        = errors.New("out of stock")
	ErrOracleUnavailable = errors.New("stock check unavailable")
)

// StockOracle reports the current catalog entry, including its stock count,
// for a product.
type StockOracle interface {
	Lookup(ctx context.Context, productID string) (*domain.Product, error)
}

// EventPublisher publishes storefront domain events.
type EventPublisher interface {
	PublishCartUpdated(ctx context.Context, s *domain.Session, action string) error
	PublishCartCleared(ctx context.Context, sessionID, reason string) error
	PublishOrderPlaced(ctx context.Context, orderID string, s *domain.Session) error
	PublishProductCreated(ctx context.Context, product *domain.Product) error
}

var mutationTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_cart_mutations_total",
		Help: "Cart mutations by operation and outcome.",
	},
	[]string{"operation", "outcome"},
)

func init() {
	prometheus.MustRegister(mutationTotal)
}

func outOfStock(productID string, requested, available int) *apperrors.AppError {
	return apperrors.New("OUT_OF_STOCK",
		fmt.Sprintf("Sorry. Product %s is out of stock (requested %d, available %d)", productID, requested, available),
		http.StatusConflict, ErrOutOfStock)
}

func oracleUnavailable(err error) *apperrors.AppError {
	return apperrors.New("ORACLE_UNAVAILABLE", "stock could not be verified, please retry",
		http.StatusServiceUnavailable, errors.Join(ErrOracleUnavailable, err))
}

// checkStock asks the oracle whether want units of productID can be held.
// A product the catalog no longer knows has no stock. If ctx ends while
// waiting, its error is returned unchanged so the caller can drop the
// mutation.
func checkStock(ctx context.Context, o StockOracle, productID string, want int) (*domain.Product, error) {
	p, err := o.Lookup(ctx, productID)
	switch {
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case err == nil:
		if p.CountInStock < want {
			return nil, outOfStock(productID, want, p.CountInStock)
		}
		return p, nil
	case errors.Is(err, oracle.ErrProductNotFound):
		return nil, outOfStock(productID, want, 0)
	default:
		return nil, oracleUnavailable(err)
	}
}

// outcome labels the result of a mutation for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, ErrOracleUnavailable):
		return "oracle_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "discarded"
	default:
		return "rejected"
	}
}

func requireSession(sessionID string) error {
	if sessionID == "" {
		return apperrors.InvalidInput("session id is required")
	}
	return nil
}
