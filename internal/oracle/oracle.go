// Package oracle answers "how many units of this product exist right now".
// Lookups are made at mutation time, so every error is classified: a product
// that is gone, a dependency that failed, or a caller that stopped waiting.
package oracle

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrProductNotFound means the product no longer exists in the catalog.
	ErrProductNotFound = errors.New("product not found")

	// ErrUnavailable means the stock could not be determined.
	ErrUnavailable = errors.New("inventory oracle unavailable")
)

var (
	lookupTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_oracle_lookups_total",
			Help: "Stock lookups by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	lookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_oracle_lookup_duration_seconds",
			Help:    "Stock lookup latency by source.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(lookupTotal, lookupDuration)
}

// classify maps err onto the package errors. parent is the caller's context:
// if it is done the caller has gone away and its error is returned as is.
func classify(parent context.Context, err error) (string, error) {
	switch {
	case err == nil:
		return "ok", nil
	case parent.Err() != nil:
		return "cancelled", parent.Err()
	case errors.Is(err, ErrProductNotFound):
		return "not_found", err
	default:
		return "unavailable", errors.Join(ErrUnavailable, err)
	}
}

func observe(source string, start time.Time, outcome string) {
	lookupTotal.WithLabelValues(source, outcome).Inc()
	lookupDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
}
