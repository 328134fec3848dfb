package service

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/storefront/internal/cartstate"
	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/tracing"
)

// MaxQuantityPerItem is the maximum quantity allowed for a single cart line.
const MaxQuantityPerItem = 100

// NextViewCart is where the client goes after a successful cart mutation.
const NextViewCart = "/cart"

// CartView is the cart as returned to clients.
type CartView struct {
	Items       []domain.CartLineItem `json:"items"`
	ItemCount   int                   `json:"item_count"`
	TotalAmount int64                 `json:"total_amount"`
	NextView    string                `json:"next_view,omitempty"`
}

func newCartView(c domain.CartState, nextView string) *CartView {
	items := c.Items
	if items == nil {
		items = []domain.CartLineItem{}
	}
	return &CartView{
		Items:       items,
		ItemCount:   c.ItemCount(),
		TotalAmount: c.TotalAmount(),
		NextView:    nextView,
	}
}

// CartServiceConfig tunes the cart mutation protocol.
type CartServiceConfig struct {
	// SerializeProductMutations makes concurrent mutations of the same
	// product in the same session wait for each other.
	SerializeProductMutations bool
}

// CartService checks stock with the oracle and commits cart mutations to the
// session's container.
type CartService struct {
	registry  *cartstate.Registry
	oracle    StockOracle
	publisher EventPublisher
	guard     *keyedMutex
	logger    *slog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(registry *cartstate.Registry, oracle StockOracle, publisher EventPublisher, cfg CartServiceConfig, logger *slog.Logger) *CartService {
	s := &CartService{
		registry:  registry,
		oracle:    oracle,
		publisher: publisher,
		logger:    logger,
	}
	if cfg.SerializeProductMutations {
		s.guard = newKeyedMutex()
	}
	return s
}

// GetCart returns the session's cart.
func (s *CartService) GetCart(ctx context.Context, sessionID string) (*CartView, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	state := s.registry.Get(ctx, sessionID).State()
	return newCartView(state.Cart, ""), nil
}

// AddItem adds quantity units of productID, merging with any units already
// held. The total must be covered by the oracle's current stock.
func (s *CartService) AddItem(ctx context.Context, sessionID, productID string, quantity int) (view *CartView, err error) {
	ctx, span := tracing.Start(ctx, "CartService.AddItem",
		attribute.String("session.id", sessionID),
		attribute.String("product.id", productID),
		attribute.Int("quantity", quantity),
	)
	defer func() {
		mutationTotal.WithLabelValues("add", outcome(err)).Inc()
		tracing.End(span, err)
	}()

	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 || quantity > MaxQuantityPerItem {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must be between 1 and %d", MaxQuantityPerItem))
	}

	unlock, err := s.lock(ctx, sessionID, productID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c := s.registry.Get(ctx, sessionID)
	existing := c.State().Cart.QuantityOf(productID)
	desired := existing + quantity
	if desired > MaxQuantityPerItem {
		return nil, apperrors.InvalidInput(fmt.Sprintf("combined quantity must not exceed %d", MaxQuantityPerItem))
	}

	product, err := checkStock(ctx, s.oracle, productID, desired)
	if err != nil {
		return nil, s.rejected(ctx, "add", sessionID, productID, err)
	}

	action := cartstate.AddItem{Item: product.LineItem(quantity), Quantity: quantity}
	state := s.registry.Commit(ctx, c, action)
	s.publishUpdated(ctx, &state, action.Kind())

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("session_id", sessionID),
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
		slog.Int("cart_quantity", desired),
	)

	return newCartView(state.Cart, NextViewCart), nil
}

// UpdateQuantity sets the quantity of a product already in the cart. Zero or
// less removes it. Lowering the quantity needs no stock check; raising it
// does.
func (s *CartService) UpdateQuantity(ctx context.Context, sessionID, productID string, quantity int) (view *CartView, err error) {
	ctx, span := tracing.Start(ctx, "CartService.UpdateQuantity",
		attribute.String("session.id", sessionID),
		attribute.String("product.id", productID),
		attribute.Int("quantity", quantity),
	)
	defer func() {
		mutationTotal.WithLabelValues("update", outcome(err)).Inc()
		tracing.End(span, err)
	}()

	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	if quantity > MaxQuantityPerItem {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
	}

	unlock, err := s.lock(ctx, sessionID, productID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c := s.registry.Get(ctx, sessionID)
	cart := c.State().Cart
	i := cart.FindItemIndex(productID)
	if i < 0 {
		return nil, apperrors.NotFound("cart item", productID)
	}
	current := cart.Items[i]

	var action cartstate.Action
	switch {
	case quantity <= 0:
		action = cartstate.RemoveItem{ProductID: productID}
	case quantity <= current.Quantity:
		action = cartstate.SetQuantity{ProductID: productID, Quantity: quantity, CountInStock: current.CountInStock}
	default:
		product, err := checkStock(ctx, s.oracle, productID, quantity)
		if err != nil {
			return nil, s.rejected(ctx, "update", sessionID, productID, err)
		}
		action = cartstate.SetQuantity{ProductID: productID, Quantity: quantity, CountInStock: product.CountInStock}
	}

	state := s.registry.Commit(ctx, c, action)
	s.publishUpdated(ctx, &state, action.Kind())

	s.logger.InfoContext(ctx, "cart item quantity updated",
		slog.String("session_id", sessionID),
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
	)

	return newCartView(state.Cart, NextViewCart), nil
}

// RemoveItem removes a product from the cart. Removing an absent product
// succeeds and changes nothing.
func (s *CartService) RemoveItem(ctx context.Context, sessionID, productID string) (view *CartView, err error) {
	defer func() { mutationTotal.WithLabelValues("remove", outcome(err)).Inc() }()

	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}

	unlock, err := s.lock(ctx, sessionID, productID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c := s.registry.Get(ctx, sessionID)
	if c.State().Cart.FindItemIndex(productID) < 0 {
		return newCartView(c.State().Cart, NextViewCart), nil
	}

	action := cartstate.RemoveItem{ProductID: productID}
	state := s.registry.Commit(ctx, c, action)
	s.publishUpdated(ctx, &state, action.Kind())

	s.logger.InfoContext(ctx, "item removed from cart",
		slog.String("session_id", sessionID),
		slog.String("product_id", productID),
	)

	return newCartView(state.Cart, NextViewCart), nil
}

// Clear empties the cart.
func (s *CartService) Clear(ctx context.Context, sessionID string) (*CartView, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}

	state := s.registry.Commit(ctx, s.registry.Get(ctx, sessionID), cartstate.Clear{})
	mutationTotal.WithLabelValues("clear", "ok").Inc()

	if err := s.publisher.PublishCartCleared(context.WithoutCancel(ctx), sessionID, "user"); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "cart cleared", slog.String("session_id", sessionID))

	return newCartView(state.Cart, NextViewCart), nil
}

func (s *CartService) lock(ctx context.Context, sessionID, productID string) (func(), error) {
	if s.guard == nil {
		return func() {}, nil
	}
	return s.guard.Lock(ctx, sessionID+"/"+productID)
}

// rejected logs a mutation that did not reach the container.
func (s *CartService) rejected(ctx context.Context, op, sessionID, productID string, err error) error {
	attrs := []any{
		slog.String("operation", op),
		slog.String("session_id", sessionID),
		slog.String("product_id", productID),
		slog.String("error", err.Error()),
	}
	switch outcome(err) {
	case "discarded":
		s.logger.DebugContext(ctx, "cart mutation discarded, client went away", attrs...)
	case "oracle_unavailable":
		s.logger.WarnContext(ctx, "cart mutation rejected, stock check failed", attrs...)
	default:
		s.logger.InfoContext(ctx, "cart mutation rejected", attrs...)
	}
	return err
}

func (s *CartService) publishUpdated(ctx context.Context, state *domain.Session, action string) {
	if err := s.publisher.PublishCartUpdated(context.WithoutCancel(ctx), state, action); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("session_id", state.ID),
			slog.String("error", err.Error()),
		)
	}
}
