package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// Kafka topic constants for storefront domain events.
const (
	TopicCartUpdated    = "storefront.cart.updated"
	TopicCartCleared    = "storefront.cart.cleared"
	TopicOrderPlaced    = "storefront.order.placed"
	TopicProductCreated = "storefront.product.created"
)

// Aggregate type constants.
const (
	AggregateTypeSession = "session"
	AggregateTypeProduct = "product"
)

// SourceStorefront identifies events originating from this service.
const SourceStorefront = "storefront"

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	SessionID   string         `json:"session_id"`
	UserID      string         `json:"user_id,omitempty"`
	Action      string         `json:"action"`
	Items       []CartItemData `json:"items"`
	ItemCount   int            `json:"item_count"`
	TotalAmount int64          `json:"total_amount"`
}

// CartItemData is the item payload within cart and order events.
type CartItemData struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

// OrderPlacedData is the payload for an order.placed event.
type OrderPlacedData struct {
	OrderID         string         `json:"order_id"`
	SessionID       string         `json:"session_id"`
	UserID          string         `json:"user_id"`
	Email           string         `json:"email"`
	Items           []CartItemData `json:"items"`
	TotalAmount     int64          `json:"total_amount"`
	ShippingAddress domain.Address `json:"shipping_address"`
	PaymentMethod   string         `json:"payment_method"`
}

// ProductCreatedData is the payload for a product.created event.
type ProductCreatedData struct {
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	Category     string `json:"category"`
	Price        int64  `json:"price"`
	CountInStock int    `json:"count_in_stock"`
	CreatedBy    string `json:"created_by"`
}

// Producer publishes storefront domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the storefront.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, s *domain.Session, action string) error {
	data := CartUpdatedData{
		SessionID:   s.ID,
		Action:      action,
		Items:       itemData(s.Cart),
		ItemCount:   s.Cart.ItemCount(),
		TotalAmount: s.Cart.TotalAmount(),
	}
	if s.UserInfo != nil {
		data.UserID = s.UserInfo.ID
	}

	if err := p.publish(ctx, TopicCartUpdated, s.ID, AggregateTypeSession, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published cart.updated event",
		slog.String("session_id", s.ID),
		slog.Int("item_count", data.ItemCount),
	)
	return nil
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, sessionID, reason string) error {
	return p.publish(ctx, TopicCartCleared, sessionID, AggregateTypeSession, CartClearedData{
		SessionID: sessionID,
		Reason:    reason,
	})
}

// PublishOrderPlaced publishes an order.placed event for the session's cart.
func (p *Producer) PublishOrderPlaced(ctx context.Context, orderID string, s *domain.Session) error {
	data := OrderPlacedData{
		OrderID:       orderID,
		SessionID:     s.ID,
		Items:         itemData(s.Cart),
		TotalAmount:   s.Cart.TotalAmount(),
		PaymentMethod: s.PaymentMethod,
	}
	if s.UserInfo != nil {
		data.UserID = s.UserInfo.ID
		data.Email = s.UserInfo.Email
	}
	if s.ShippingAddress != nil {
		data.ShippingAddress = *s.ShippingAddress
	}

	return p.publish(ctx, TopicOrderPlaced, s.ID, AggregateTypeSession, data)
}

// PublishProductCreated publishes a product.created event.
func (p *Producer) PublishProductCreated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductCreated, product.ID, AggregateTypeProduct, ProductCreatedData{
		ProductID:    product.ID,
		Name:         product.Name,
		Slug:         product.Slug,
		Category:     product.Category,
		Price:        product.Price,
		CountInStock: product.CountInStock,
		CreatedBy:    product.CreatedBy,
	})
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	evt, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}

func itemData(c domain.CartState) []CartItemData {
	items := make([]CartItemData, len(c.Items))
	for i, item := range c.Items {
		items[i] = CartItemData{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
		}
	}
	return items
}
