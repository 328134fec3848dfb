package domain

import "time"

// UserInfo is the authenticated half of a session.
type UserInfo struct {
	Token   string `json:"token"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

// Address is the shipping address captured during checkout.
type Address struct {
	FullName   string `json:"full_name" validate:"required,min=2,max=200"`
	Address    string `json:"address" validate:"required,min=3,max=500"`
	City       string `json:"city" validate:"required,max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,max=100"`
}

// Payment methods offered at checkout.
const (
	PaymentMethodPayPal = "PayPal"
	PaymentMethodStripe = "Stripe"
	PaymentMethodCash   = "Cash"
)

// IsValidPaymentMethod checks whether method is one the storefront accepts.
func IsValidPaymentMethod(method string) bool {
	switch method {
	case PaymentMethodPayPal, PaymentMethodStripe, PaymentMethodCash:
		return true
	}
	return false
}

// Session is everything the storefront remembers about one browser.
type Session struct {
	ID              string    `json:"id"`
	DarkMode        bool      `json:"dark_mode"`
	UserInfo        *UserInfo `json:"user_info,omitempty"`
	Cart            CartState `json:"cart"`
	ShippingAddress *Address  `json:"shipping_address,omitempty"`
	PaymentMethod   string    `json:"payment_method,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewSession returns the state of a first visit.
func NewSession(id string) Session {
	return Session{ID: id}
}

// IsAuthenticated reports whether a user is logged in.
func (s Session) IsAuthenticated() bool {
	return s.UserInfo != nil && s.UserInfo.Token != ""
}

// Clone returns a deep copy of the session.
func (s Session) Clone() Session {
	out := s
	out.Cart = s.Cart.Clone()
	if s.UserInfo != nil {
		u := *s.UserInfo
		out.UserInfo = &u
	}
	if s.ShippingAddress != nil {
		a := *s.ShippingAddress
		out.ShippingAddress = &a
	}
	return out
}

// CheckoutStep returns the step this session has reached.
func (s Session) CheckoutStep() CheckoutStep {
	return DeriveCheckoutStep(s.IsAuthenticated(), s.ShippingAddress != nil, s.PaymentMethod != "")
}
