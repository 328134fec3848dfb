package domain

import "time"

// Product is a catalog entry.
type Product struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Category     string    `json:"category"`
	Image        string    `json:"image"`
	Price        int64     `json:"price"`
	Brand        string    `json:"brand"`
	Rating       float64   `json:"rating"`
	NumReviews   int       `json:"num_reviews"`
	CountInStock int       `json:"count_in_stock"`
	Description  string    `json:"description"`
	CreatedBy    string    `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// InStock reports whether at least one unit is available.
func (p *Product) InStock() bool {
	return p.CountInStock > 0
}

// LineItem builds the cart entry for qty units of p.
func (p *Product) LineItem(qty int) CartLineItem {
	return CartLineItem{
		ProductID:    p.ID,
		Name:         p.Name,
		Slug:         p.Slug,
		Price:        p.Price,
		Image:        p.Image,
		Category:     p.Category,
		Quantity:     qty,
		CountInStock: p.CountInStock,
	}
}

// Category groups products by their category name.
type Category struct {
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	ProductCount int    `json:"product_count"`
}
