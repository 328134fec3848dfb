package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/httpclient"
)

const sourceHTTP = "http"

// HTTPOracle reads stock from a catalog service that answers
// GET /api/v1/products/{id} with the {"data": product} envelope.
type HTTPOracle struct {
	client  *httpclient.CircuitBreakerClient
	baseURL string
	timeout time.Duration
}

// NewHTTPOracle creates an oracle calling baseURL through client. Each lookup
// is bounded by timeout.
func NewHTTPOracle(client *httpclient.CircuitBreakerClient, baseURL string, timeout time.Duration) *HTTPOracle {
	return &HTTPOracle{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
}

// Lookup returns the product with its current count_in_stock.
func (o *HTTPOracle) Lookup(ctx context.Context, productID string) (*domain.Product, error) {
	start := time.Now()
	p, err := o.lookup(ctx, productID)
	outcome, err := classify(ctx, err)
	observe(sourceHTTP, start, outcome)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (o *HTTPOracle) lookup(ctx context.Context, productID string) (*domain.Product, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.Get(callCtx, o.baseURL+"/api/v1/products/"+url.PathEscape(productID))
	if err != nil {
		return nil, fmt.Errorf("call inventory oracle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, ErrProductNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "inventory-oracle")
	}

	var envelope struct {
		Data *domain.Product `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode oracle response: %w", err)
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("oracle response for %s has no data", productID)
	}

	p := envelope.Data
	if p.ID == "" {
		p.ID = productID
	}
	if p.CountInStock < 0 {
		p.CountInStock = 0
	}
	return p, nil
}
