package domain

// CartLineItem is one product entry in a session's cart. CountInStock is the
// stock observed by the oracle at the item's last successful mutation.
type CartLineItem struct {
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	Price        int64  `json:"price"`
	Image        string `json:"image,omitempty"`
	Category     string `json:"category,omitempty"`
	Quantity     int    `json:"quantity"`
	CountInStock int    `json:"count_in_stock"`
}

// Subtotal returns price times quantity in cents.
func (i CartLineItem) Subtotal() int64 {
	return i.Price * int64(i.Quantity)
}

// CartState is the ordered list of line items, oldest first.
type CartState struct {
	Items []CartLineItem `json:"items"`
}

// FindItemIndex returns the index of the item for productID, or -1.
func (c CartState) FindItemIndex(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// QuantityOf returns the quantity held for productID (0 when absent).
func (c CartState) QuantityOf(productID string) int {
	if i := c.FindItemIndex(productID); i >= 0 {
		return c.Items[i].Quantity
	}
	return 0
}

// ItemCount returns the total number of units in the cart.
func (c CartState) ItemCount() int {
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// TotalAmount calculates the total price of all items in the cart (in cents).
func (c CartState) TotalAmount() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.Subtotal()
	}
	return total
}

// IsEmpty reports whether the cart holds no items.
func (c CartState) IsEmpty() bool {
	return len(c.Items) == 0
}

// Clone returns a deep copy so callers can never alias a container's slice.
// An empty cart always clones to a nil slice.
func (c CartState) Clone() CartState {
	if len(c.Items) == 0 {
		return CartState{}
	}
	items := make([]CartLineItem, len(c.Items))
	copy(items, c.Items)
	return CartState{Items: items}
}
