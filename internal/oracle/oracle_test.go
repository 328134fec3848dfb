package oracle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
)

func newTestOracle(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *HTTPOracle {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	base := httpclient.New(httpclient.Config{
		Timeout:         time.Second,
		MaxRetries:      0,
		RetryWaitMin:    time.Millisecond,
		RetryWaitMax:    2 * time.Millisecond,
		MaxConnsPerHost: 4,
	})
	cb := httpclient.NewCircuitBreakerClient(base, httpclient.DefaultCircuitBreakerConfig("oracle-"+t.Name()),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewHTTPOracle(cb, srv.URL+"/", timeout)
}

func TestHTTPOracle_Lookup(t *testing.T) {
	var gotPath string
	o := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"data":{"id":"p-1","name":"Mug","slug":"mug","price":1200,"count_in_stock":5}}`)
	}, time.Second)

	p, err := o.Lookup(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/products/p-1", gotPath)
	assert.Equal(t, "Mug", p.Name)
	assert.Equal(t, 5, p.CountInStock)
}

func TestHTTPOracle_NegativeStockIsZero(t *testing.T) {
	o := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"name":"Mug","count_in_stock":-2}}`)
	}, time.Second)

	p, err := o.Lookup(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", p.ID)
	assert.Zero(t, p.CountInStock)
}

func TestHTTPOracle_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			want: ErrProductNotFound,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			want: ErrUnavailable,
		},
		{
			name: "bad request",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"error":{"code":"INVALID_INPUT","message":"bad id"}}`)
			},
			want: ErrUnavailable,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"data":`)
			},
			want: ErrUnavailable,
		},
		{
			name: "missing data",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{}`)
			},
			want: ErrUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOracle(t, tt.handler, time.Second)
			_, err := o.Lookup(context.Background(), "p-1")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestHTTPOracle_TimeoutIsUnavailable(t *testing.T) {
	o := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}, 20*time.Millisecond)

	_, err := o.Lookup(context.Background(), "p-1")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestHTTPOracle_CallerCancellation(t *testing.T) {
	started := make(chan struct{})
	o := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := o.Lookup(ctx, "p-1")
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, ErrUnavailable))
}

// fakeProducts implements repository.ProductRepository for the catalog oracle.
type fakeProducts struct {
	product *domain.Product
	err     error
}

func (f *fakeProducts) Create(context.Context, *domain.Product) error { return nil }

func (f *fakeProducts) GetByID(context.Context, string) (*domain.Product, error) {
	return f.product, f.err
}

func (f *fakeProducts) GetBySlug(context.Context, string) (*domain.Product, error) {
	return f.product, f.err
}

func (f *fakeProducts) List(context.Context, repository.ProductFilter) ([]domain.Product, int, error) {
	return nil, 0, nil
}

func TestCatalogOracle_Lookup(t *testing.T) {
	o := NewCatalogOracle(&fakeProducts{product: &domain.Product{ID: "p-1", CountInStock: 3}}, time.Second)

	p, err := o.Lookup(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.CountInStock)
}

func TestCatalogOracle_Errors(t *testing.T) {
	notFound := NewCatalogOracle(&fakeProducts{err: apperrors.NotFound("product", "p-1")}, time.Second)
	_, err := notFound.Lookup(context.Background(), "p-1")
	assert.True(t, errors.Is(err, ErrProductNotFound))

	broken := NewCatalogOracle(&fakeProducts{err: errors.New("connection refused")}, time.Second)
	_, err = broken.Lookup(context.Background(), "p-1")
	assert.True(t, errors.Is(err, ErrUnavailable))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = broken.Lookup(ctx, "p-1")
	assert.True(t, errors.Is(err, context.Canceled))
}
