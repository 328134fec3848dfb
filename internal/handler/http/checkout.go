package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

// CheckoutHandler handles HTTP requests for checkout endpoints.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		logger:  logger,
	}
}

// PaymentMethodRequest is the JSON request body for choosing a payment method.
type PaymentMethodRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,oneof=PayPal Stripe Cash"`
}

// Progress handles GET /api/v1/checkout/progress
func (h *CheckoutHandler) Progress(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Progress(r.Context(), sessionIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, p)
}

// SaveShipping handles PUT /api/v1/checkout/shipping
func (h *CheckoutHandler) SaveShipping(w http.ResponseWriter, r *http.Request) {
	var req domain.Address
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	p, err := h.service.SaveShippingAddress(r.Context(), sessionIDFromContext(r.Context()), req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, p)
}

// SavePayment handles PUT /api/v1/checkout/payment
func (h *CheckoutHandler) SavePayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentMethodRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	p, err := h.service.SavePaymentMethod(r.Context(), sessionIDFromContext(r.Context()), req.PaymentMethod)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, p)
}

// PlaceOrder handles POST /api/v1/checkout/place-order
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	conf, err := h.service.PlaceOrder(r.Context(), sessionIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, conf)
}
