package cartstate

import "github.com/utafrali/storefront/internal/domain"

// Action is a transition accepted by Reduce.
type Action interface {
	// Kind names the transition for logs and metrics.
	Kind() string
}

// AddItem merges Quantity units of Item into the cart. Item.Quantity is ignored.
type AddItem struct {
	Item     domain.CartLineItem
	Quantity int
}

// RemoveItem drops the line item for ProductID if present.
type RemoveItem struct {
	ProductID string
}

// SetQuantity replaces the quantity of an existing line item and records the
// stock snapshot it was checked against. Quantity <= 0 removes the item.
type SetQuantity struct {
	ProductID    string
	Quantity     int
	CountInStock int
}

// Clear empties the cart.
type Clear struct{}

// Login attaches an authenticated user to the session.
type Login struct {
	UserInfo domain.UserInfo
}

// Logout drops the authenticated user and the checkout inputs tied to them.
type Logout struct {
	ClearCart bool
}

// SetTheme sets the dark mode preference.
type SetTheme struct {
	Dark bool
}

// SaveShippingAddress records the checkout shipping address.
type SaveShippingAddress struct {
	Address domain.Address
}

// SavePaymentMethod records the checkout payment method.
type SavePaymentMethod struct {
	Method string
}

func (AddItem) Kind() string             { return "ADD_ITEM" }
func (RemoveItem) Kind() string          { return "REMOVE_ITEM" }
func (SetQuantity) Kind() string         { return "SET_QUANTITY" }
func (Clear) Kind() string               { return "CLEAR" }
func (Login) Kind() string               { return "LOGIN" }
func (Logout) Kind() string              { return "LOGOUT" }
func (SetTheme) Kind() string            { return "SET_THEME" }
func (SaveShippingAddress) Kind() string { return "SAVE_SHIPPING_ADDRESS" }
func (SavePaymentMethod) Kind() string   { return "SAVE_PAYMENT_METHOD" }
