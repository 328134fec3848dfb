package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/storefront/internal/cartstate"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
)

// --- Mocks ---

type mockSessionStore struct {
	mock.Mock
}

// Load returns a fresh session when the expectation returns nil without error.
func (m *mockSessionStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		if err := args.Error(1); err != nil {
			return nil, err
		}
		s := domain.NewSession(id)
		return &s, nil
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *mockSessionStore) Save(ctx context.Context, s *domain.Session) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockSessionStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockOracle struct {
	mock.Mock
}

func (m *mockOracle) Lookup(ctx context.Context, productID string) (*domain.Product, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishCartUpdated(ctx context.Context, s *domain.Session, action string) error {
	return m.Called(ctx, s, action).Error(0)
}

func (m *mockPublisher) PublishCartCleared(ctx context.Context, sessionID, reason string) error {
	return m.Called(ctx, sessionID, reason).Error(0)
}

func (m *mockPublisher) PublishOrderPlaced(ctx context.Context, orderID string, s *domain.Session) error {
	return m.Called(ctx, orderID, s).Error(0)
}

func (m *mockPublisher) PublishProductCreated(ctx context.Context, p *domain.Product) error {
	return m.Called(ctx, p).Error(0)
}

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) Create(ctx context.Context, p *domain.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

type mockCategoryRepository struct {
	mock.Mock
}

func (m *mockCategoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Category), args.Error(1)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store     *mockSessionStore
	oracle    *mockOracle
	publisher *mockPublisher
	registry  *cartstate.Registry
}

// newFixture wires a registry over a mock store that starts every session
// empty and accepts every save.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     new(mockSessionStore),
		oracle:    new(mockOracle),
		publisher: new(mockPublisher),
	}
	f.store.On("Load", mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	f.publisher.On("PublishCartUpdated", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.publisher.On("PublishCartCleared", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.registry = cartstate.NewRegistry(f.store, time.Minute, newTestLogger())
	return f
}

func (f *fixture) acceptSaves() {
	f.store.On("Save", mock.Anything, mock.Anything).Return(nil)
}

func (f *fixture) cartService(serialize bool) *CartService {
	return NewCartService(f.registry, f.oracle, f.publisher, CartServiceConfig{SerializeProductMutations: serialize}, newTestLogger())
}

func (f *fixture) cart(t *testing.T, sessionID string) domain.CartState {
	t.Helper()
	return f.registry.Get(context.Background(), sessionID).State().Cart
}

func product(id string, stock int) *domain.Product {
	return &domain.Product{
		ID:           id,
		Name:         "Product " + id,
		Slug:         "product-" + id,
		Category:     "Shirts",
		Price:        2500,
		CountInStock: stock,
	}
}
