package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// Services groups the application services the router exposes.
type Services struct {
	Cart     *service.CartService
	Session  *service.SessionService
	Checkout *service.CheckoutService
	Catalog  *service.CatalogService
	Admin    *service.AdminService
}

// RouterConfig holds the HTTP-level settings of the router.
type RouterConfig struct {
	Logger         *slog.Logger
	CORS           middleware.CORSConfig
	PprofCIDRs     []string
	CookieSecure   bool
	SessionTTL     time.Duration
	CartLimiter    *middleware.KeyedLimiter
	ValidateToken  middleware.TokenValidator
	MaxUploadBytes int64
	// Media serves uploaded images when they are kept in process memory.
	Media http.Handler
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(svc Services, healthHandler *health.Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("storefront"))
	r.Use(middleware.Tracing("storefront"))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	if cfg.Media != nil {
		r.Handle("/media/*", cfg.Media)
	}

	catalogHandler := NewCatalogHandler(svc.Catalog, logger)
	sessionHandler := NewSessionHandler(svc.Session, logger)
	cartHandler := NewCartHandler(svc.Cart, logger)
	checkoutHandler := NewCheckoutHandler(svc.Checkout, logger)
	adminHandler := NewAdminHandler(svc.Admin, cfg.MaxUploadBytes, logger)

	r.Route("/api/v1", func(r chi.Router) {
		// Catalog reads are shared by every browser.
		r.Group(func(r chi.Router) {
			r.Use(middleware.CacheControl(30))

			r.Get("/products", catalogHandler.ListProducts)
			r.Get("/products/{id}", catalogHandler.GetProduct)
			r.Get("/products/slug/{slug}", catalogHandler.GetProductBySlug)
			r.Get("/categories", catalogHandler.ListCategories)
		})

		// Per-browser state.
		r.Group(func(r chi.Router) {
			r.Use(Session(cfg.CookieSecure, cfg.SessionTTL))
			r.Use(middleware.NoStore)

			r.Route("/session", func(r chi.Router) {
				r.Get("/", sessionHandler.GetSession)
				r.Delete("/", sessionHandler.DestroySession)
				r.Put("/theme", sessionHandler.SetTheme)
				r.Post("/login", sessionHandler.Login)
				r.Post("/logout", sessionHandler.Logout)
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RateLimit(cfg.CartLimiter, sessionKey, logger))

					r.Delete("/", cartHandler.ClearCart)
					r.Post("/items", cartHandler.AddItem)
					r.Put("/items/{productId}", cartHandler.UpdateQuantity)
					r.Delete("/items/{productId}", cartHandler.RemoveItem)
				})
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/progress", checkoutHandler.Progress)
				r.Put("/shipping", checkoutHandler.SaveShipping)
				r.Put("/payment", checkoutHandler.SavePayment)
				r.Post("/place-order", checkoutHandler.PlaceOrder)
			})
		})

		// Admin product intake requires an admin bearer token.
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.NoStore)
			r.Use(middleware.Auth(cfg.ValidateToken))
			r.Use(middleware.RequireRole(auth.RoleAdmin))

			r.Get("/products", adminHandler.ListProducts)
			r.Post("/products", adminHandler.CreateProduct)
			r.Post("/uploads", adminHandler.UploadImage)
		})
	})

	return r
}
