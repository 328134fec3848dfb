package domain

// CheckoutStep is the position in the linear checkout flow.
type CheckoutStep int

const (
	StepLogin CheckoutStep = iota
	StepShipping
	StepPayment
	StepPlaceOrder
)

var stepLabels = [...]string{"Login", "Shipping Address", "Payment Method", "Place Order"}

// String returns the label shown by a step indicator.
func (s CheckoutStep) String() string {
	if s < StepLogin || s > StepPlaceOrder {
		return "Unknown"
	}
	return stepLabels[s]
}

// CheckoutSteps lists every step in order.
func CheckoutSteps() []CheckoutStep {
	return []CheckoutStep{StepLogin, StepShipping, StepPayment, StepPlaceOrder}
}

// DeriveCheckoutStep reports the first step whose precondition is still
// missing. Each step counts only once all earlier ones are satisfied, so a
// payment method without a shipping address still lands on SHIPPING.
func DeriveCheckoutStep(authPresent, shippingPresent, paymentPresent bool) CheckoutStep {
	switch {
	case !authPresent:
		return StepLogin
	case !shippingPresent:
		return StepShipping
	case !paymentPresent:
		return StepPayment
	default:
		return StepPlaceOrder
	}
}
