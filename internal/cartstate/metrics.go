package cartstate

import "github.com/prometheus/client_golang/prometheus"

var (
	dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_dispatch_total",
			Help: "Transitions applied to live session containers.",
		},
		[]string{"action"},
	)

	storageDegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_session_storage_degraded_total",
			Help: "Session store operations that failed and fell back to memory-only state.",
		},
		[]string{"operation"},
	)

	liveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_live_sessions",
			Help: "Session containers currently held in memory.",
		},
	)
)

func init() {
	prometheus.MustRegister(dispatchTotal, storageDegradedTotal, liveSessions)
}
