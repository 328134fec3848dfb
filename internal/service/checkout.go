package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/utafrali/storefront/internal/cartstate"
	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/tracing"
)

// maxConcurrentStockChecks bounds the oracle calls made while placing an order.
const maxConcurrentStockChecks = 4

// stepViews maps each checkout step to the page that completes it.
var stepViews = map[domain.CheckoutStep]string{
	domain.StepLogin:      "/login?redirect=/shipping",
	domain.StepShipping:   "/shipping",
	domain.StepPayment:    "/payment",
	domain.StepPlaceOrder: "/placeorder",
}

// CheckoutProgress reports how far a session has come through checkout.
type CheckoutProgress struct {
	Step     domain.CheckoutStep `json:"step"`
	Label    string              `json:"label"`
	Steps    []string            `json:"steps"`
	NextView string              `json:"next_view"`
}

// OrderConfirmation is returned once an order has been placed.
type OrderConfirmation struct {
	OrderID         string                `json:"order_id"`
	Items           []domain.CartLineItem `json:"items"`
	ItemCount       int                   `json:"item_count"`
	TotalAmount     int64                 `json:"total_amount"`
	ShippingAddress domain.Address        `json:"shipping_address"`
	PaymentMethod   string                `json:"payment_method"`
	PlacedAt        time.Time             `json:"placed_at"`
}

// CheckoutService tracks checkout progress and places orders.
type CheckoutService struct {
	registry  *cartstate.Registry
	oracle    StockOracle
	publisher EventPublisher
	logger    *slog.Logger

	// orders admits one PlaceOrder per session at a time.
	orders *keyedMutex
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(registry *cartstate.Registry, oracle StockOracle, publisher EventPublisher, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		registry:  registry,
		oracle:    oracle,
		publisher: publisher,
		logger:    logger,
		orders:    newKeyedMutex(),
	}
}

// Progress reports the first checkout step whose precondition is missing.
func (s *CheckoutService) Progress(ctx context.Context, sessionID string) (*CheckoutProgress, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	return newProgress(s.registry.Get(ctx, sessionID).State().CheckoutStep()), nil
}

func newProgress(step domain.CheckoutStep) *CheckoutProgress {
	steps := domain.CheckoutSteps()
	labels := make([]string, len(steps))
	for i, st := range steps {
		labels[i] = st.String()
	}
	return &CheckoutProgress{
		Step:     step,
		Label:    step.String(),
		Steps:    labels,
		NextView: stepViews[step],
	}
}

// SaveShippingAddress records the shipping address. The user must be logged in.
func (s *CheckoutService) SaveShippingAddress(ctx context.Context, sessionID string, addr domain.Address) (*CheckoutProgress, error) {
	c, err := s.authenticated(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	state := s.registry.Commit(ctx, c, cartstate.SaveShippingAddress{Address: addr})
	s.logger.InfoContext(ctx, "shipping address saved", slog.String("session_id", sessionID))
	return newProgress(state.CheckoutStep()), nil
}

// SavePaymentMethod records the payment method. A shipping address must have
// been saved first.
func (s *CheckoutService) SavePaymentMethod(ctx context.Context, sessionID, method string) (*CheckoutProgress, error) {
	if !domain.IsValidPaymentMethod(method) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unsupported payment method %q", method))
	}

	c, err := s.authenticated(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if c.State().ShippingAddress == nil {
		return nil, apperrors.Conflict("shipping address is required before choosing a payment method")
	}

	state := s.registry.Commit(ctx, c, cartstate.SavePaymentMethod{Method: method})
	s.logger.InfoContext(ctx, "payment method saved",
		slog.String("session_id", sessionID),
		slog.String("payment_method", method),
	)
	return newProgress(state.CheckoutStep()), nil
}

// PlaceOrder re-checks every cart line against the oracle, announces the
// order and empties the cart. Any line that cannot be verified fails the
// whole order, and so does any change to the session while the lines are
// being checked.
func (s *CheckoutService) PlaceOrder(ctx context.Context, sessionID string) (conf *OrderConfirmation, err error) {
	ctx, span := tracing.Start(ctx, "CheckoutService.PlaceOrder", attribute.String("session.id", sessionID))
	defer func() {
		mutationTotal.WithLabelValues("place_order", outcome(err)).Inc()
		tracing.End(span, err)
	}()

	if err := requireSession(sessionID); err != nil {
		return nil, err
	}

	unlock, err := s.orders.Lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c := s.registry.Get(ctx, sessionID)
	state, version := c.Snapshot()
	if step := state.CheckoutStep(); step != domain.StepPlaceOrder {
		return nil, apperrors.Conflict(fmt.Sprintf("checkout incomplete: %s step required", step))
	}
	if state.Cart.IsEmpty() {
		return nil, apperrors.InvalidInput("cart is empty")
	}

	if err := s.verifyStock(ctx, state.Cart); err != nil {
		s.logger.WarnContext(ctx, "order rejected",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	// The order is announced and the cart cleared in one step, against the
	// exact state that was verified.
	orderID := uuid.New().String()
	_, err = s.registry.CommitIf(ctx, c, version, cartstate.Clear{}, func() error {
		return s.publisher.PublishOrderPlaced(context.WithoutCancel(ctx), orderID, &state)
	})
	switch {
	case errors.Is(err, cartstate.ErrStale):
		s.logger.WarnContext(ctx, "order rejected, session changed during stock check",
			slog.String("session_id", sessionID),
		)
		return nil, apperrors.Conflict("your cart changed while the order was being placed, please review it and retry")
	case err != nil:
		s.logger.ErrorContext(ctx, "failed to publish order.placed event",
			slog.String("session_id", sessionID),
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.ServiceUnavailable("order could not be placed, please retry")
	}

	if err := s.publisher.PublishCartCleared(context.WithoutCancel(ctx), sessionID, "order_placed"); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order placed",
		slog.String("session_id", sessionID),
		slog.String("order_id", orderID),
		slog.Int("item_count", state.Cart.ItemCount()),
		slog.Int64("total_amount", state.Cart.TotalAmount()),
	)

	return &OrderConfirmation{
		OrderID:         orderID,
		Items:           state.Cart.Items,
		ItemCount:       state.Cart.ItemCount(),
		TotalAmount:     state.Cart.TotalAmount(),
		ShippingAddress: *state.ShippingAddress,
		PaymentMethod:   state.PaymentMethod,
		PlacedAt:        time.Now().UTC(),
	}, nil
}

func (s *CheckoutService) verifyStock(ctx context.Context, cart domain.CartState) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentStockChecks)

	for _, item := range cart.Items {
		g.Go(func() error {
			_, err := checkStock(gctx, s.oracle, item.ProductID, item.Quantity)
			return err
		})
	}

	err := g.Wait()
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *CheckoutService) authenticated(ctx context.Context, sessionID string) (*cartstate.Container, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	c := s.registry.Get(ctx, sessionID)
	if !c.State().IsAuthenticated() {
		return nil, apperrors.Unauthorized("login required")
	}
	return c, nil
}
