package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCartState_Totals(t *testing.T) {
	cart := CartState{Items: []CartLineItem{
		{ProductID: "p1", Price: 1999, Quantity: 2},
		{ProductID: "p2", Price: 500, Quantity: 3},
	}}

	assert.Equal(t, 5, cart.ItemCount())
	assert.Equal(t, int64(1999*2+500*3), cart.TotalAmount())
	assert.Equal(t, 1, cart.FindItemIndex("p2"))
	assert.Equal(t, -1, cart.FindItemIndex("p3"))
	assert.Equal(t, 3, cart.QuantityOf("p2"))
	assert.Equal(t, 0, cart.QuantityOf("p3"))
	assert.False(t, cart.IsEmpty())
	assert.True(t, CartState{}.IsEmpty())
}

func TestCartState_CloneDoesNotAlias(t *testing.T) {
	orig := CartState{Items: []CartLineItem{{ProductID: "p1", Quantity: 1}}}
	clone := orig.Clone()
	clone.Items[0].Quantity = 9

	assert.Equal(t, 1, orig.Items[0].Quantity)
	assert.Nil(t, CartState{}.Clone().Items)
}

func TestSession_CloneDeepCopiesPointers(t *testing.T) {
	s := Session{
		ID:              "s1",
		UserInfo:        &UserInfo{Token: "t", Name: "Ada"},
		ShippingAddress: &Address{City: "Izmir"},
	}
	c := s.Clone()
	c.UserInfo.Name = "Grace"
	c.ShippingAddress.City = "Ankara"

	assert.Equal(t, "Ada", s.UserInfo.Name)
	assert.Equal(t, "Izmir", s.ShippingAddress.City)
}

func TestDeriveCheckoutStep(t *testing.T) {
	tests := []struct {
		auth, shipping, payment bool
		want                    CheckoutStep
	}{
		{false, false, false, StepLogin},
		{false, true, true, StepLogin},
		{true, false, false, StepShipping},
		{true, false, true, StepShipping},
		{true, true, false, StepPayment},
		{true, true, true, StepPlaceOrder},
	}

	for _, tt := range tests {
		got := DeriveCheckoutStep(tt.auth, tt.shipping, tt.payment)
		assert.Equal(t, tt.want, got, "auth=%v shipping=%v payment=%v", tt.auth, tt.shipping, tt.payment)
	}
}

func TestCheckoutStep_Labels(t *testing.T) {
	assert.Equal(t, 0, int(StepLogin))
	assert.Equal(t, 3, int(StepPlaceOrder))
	assert.Equal(t, "Shipping Address", StepShipping.String())
	assert.Equal(t, "Unknown", CheckoutStep(7).String())
	assert.Len(t, CheckoutSteps(), 4)
}

func TestSession_CheckoutStep(t *testing.T) {
	s := NewSession("s1")
	assert.Equal(t, StepLogin, s.CheckoutStep())

	s.UserInfo = &UserInfo{Token: "tok"}
	s.ShippingAddress = &Address{FullName: "Ada"}
	s.PaymentMethod = PaymentMethodPayPal
	assert.Equal(t, StepPlaceOrder, s.CheckoutStep())
}

func TestProduct_LineItem(t *testing.T) {
	p := &Product{ID: "p1", Name: "Mug", Slug: "mug", Price: 1200, CountInStock: 4, Category: "Kitchen"}
	item := p.LineItem(2)

	assert.Equal(t, "p1", item.ProductID)
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, 4, item.CountInStock)
	assert.Equal(t, int64(2400), item.Subtotal())
	assert.True(t, p.InStock())
}

func TestIsValidPaymentMethod(t *testing.T) {
	assert.True(t, IsValidPaymentMethod("PayPal"))
	assert.True(t, IsValidPaymentMethod("Cash"))
	assert.False(t, IsValidPaymentMethod("Bitcoin"))
}
