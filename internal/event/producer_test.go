package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

type recordingWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func newTestProducer(w *recordingWriter) *Producer {
	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewProducer(pkgkafka.NewProducerWithWriter(w, []string{"test:9092"}, l), l)
}

func decodeData[T any](t *testing.T, msg kafka.Message) (*pkgkafka.Event, T) {
	t.Helper()
	evt, err := pkgkafka.UnmarshalEvent(msg.Value)
	require.NoError(t, err)
	var data T
	require.NoError(t, evt.UnmarshalData(&data))
	return evt, data
}

func sessionWithCart() *domain.Session {
	return &domain.Session{
		ID:       "sess-1",
		UserInfo: &domain.UserInfo{ID: "u-1", Email: "ada@example.com", Token: "t"},
		Cart: domain.CartState{Items: []domain.CartLineItem{
			{ProductID: "p-1", Name: "Mug", Price: 1200, Quantity: 2},
		}},
		ShippingAddress: &domain.Address{FullName: "Ada", City: "London"},
		PaymentMethod:   domain.PaymentMethodStripe,
	}
}

func TestPublishCartUpdated(t *testing.T) {
	w := &recordingWriter{}
	p := newTestProducer(w)
	ctx := logger.WithCorrelationID(context.Background(), "corr-1")

	require.NoError(t, p.PublishCartUpdated(ctx, sessionWithCart(), "ADD_ITEM"))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, TopicCartUpdated, msg.Topic)
	assert.Equal(t, "sess-1", string(msg.Key))

	evt, data := decodeData[CartUpdatedData](t, msg)
	assert.Equal(t, "corr-1", evt.CorrelationID)
	assert.Equal(t, SourceStorefront, evt.Source)
	assert.Equal(t, "u-1", data.UserID)
	assert.Equal(t, "ADD_ITEM", data.Action)
	assert.Equal(t, 2, data.ItemCount)
	assert.Equal(t, int64(2400), data.TotalAmount)
}

func TestPublishOrderPlaced(t *testing.T) {
	w := &recordingWriter{}
	p := newTestProducer(w)

	require.NoError(t, p.PublishOrderPlaced(context.Background(), "order-1", sessionWithCart()))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, TopicOrderPlaced, w.msgs[0].Topic)
	_, data := decodeData[OrderPlacedData](t, w.msgs[0])
	assert.Equal(t, "order-1", data.OrderID)
	assert.Equal(t, "ada@example.com", data.Email)
	assert.Equal(t, "Stripe", data.PaymentMethod)
	assert.Equal(t, "London", data.ShippingAddress.City)
	require.Len(t, data.Items, 1)
}

func TestPublishCartClearedAndProductCreated(t *testing.T) {
	w := &recordingWriter{}
	p := newTestProducer(w)

	require.NoError(t, p.PublishCartCleared(context.Background(), "sess-1", "order_placed"))
	require.NoError(t, p.PublishProductCreated(context.Background(), &domain.Product{ID: "p-9", Name: "Lamp", CreatedBy: "admin"}))

	require.Len(t, w.msgs, 2)
	_, cleared := decodeData[CartClearedData](t, w.msgs[0])
	assert.Equal(t, "order_placed", cleared.Reason)

	assert.Equal(t, TopicProductCreated, w.msgs[1].Topic)
	assert.Equal(t, "p-9", string(w.msgs[1].Key))
	_, created := decodeData[ProductCreatedData](t, w.msgs[1])
	assert.Equal(t, "admin", created.CreatedBy)
}

func TestPublish_WriterError(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	p := newTestProducer(w)

	err := p.PublishCartCleared(context.Background(), "sess-1", "manual")
	require.Error(t, err)
	assert.Contains(t, err.Error(), TopicCartCleared)
}
