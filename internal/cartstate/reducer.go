package cartstate

import "github.com/utafrali/storefront/internal/domain"

// Reduce returns the session that results from applying a to s. It never
// fails and never modifies s; unknown actions return an equal copy.
func Reduce(s domain.Session, a Action) domain.Session {
	out := s.Clone()

	switch act := a.(type) {
	case AddItem:
		if act.Quantity <= 0 {
			return out
		}
		if i := out.Cart.FindItemIndex(act.Item.ProductID); i >= 0 {
			merged := act.Item
			merged.Quantity = out.Cart.Items[i].Quantity + act.Quantity
			out.Cart.Items[i] = merged
			return out
		}
		item := act.Item
		item.Quantity = act.Quantity
		out.Cart.Items = append(out.Cart.Items, item)

	case RemoveItem:
		out.Cart = removeItem(out.Cart, act.ProductID)

	case SetQuantity:
		if act.Quantity <= 0 {
			out.Cart = removeItem(out.Cart, act.ProductID)
			return out
		}
		if i := out.Cart.FindItemIndex(act.ProductID); i >= 0 {
			out.Cart.Items[i].Quantity = act.Quantity
			out.Cart.Items[i].CountInStock = act.CountInStock
		}

	case Clear:
		out.Cart = domain.CartState{}

	case Login:
		u := act.UserInfo
		out.UserInfo = &u

	case Logout:
		out.UserInfo = nil
		out.ShippingAddress = nil
		out.PaymentMethod = ""
		if act.ClearCart {
			out.Cart = domain.CartState{}
		}

	case SetTheme:
		out.DarkMode = act.Dark

	case SaveShippingAddress:
		addr := act.Address
		out.ShippingAddress = &addr

	case SavePaymentMethod:
		out.PaymentMethod = act.Method
	}

	return out
}

func removeItem(c domain.CartState, productID string) domain.CartState {
	i := c.FindItemIndex(productID)
	if i < 0 {
		return c
	}
	items := make([]domain.CartLineItem, 0, len(c.Items)-1)
	items = append(items, c.Items[:i]...)
	items = append(items, c.Items[i+1:]...)
	if len(items) == 0 {
		items = nil
	}
	return domain.CartState{Items: items}
}
