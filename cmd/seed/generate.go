package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/slug"
)

// productNamespace keeps generated ids stable across runs.
var productNamespace = uuid.MustParse("6f1c2a8e-1d4b-4a51-9d0a-3f6a7b1c0000")

type categoryDef struct {
	Name   string
	Weight float64
	Types  []string
}

var categories = []categoryDef{
	{Name: "Shirts", Weight: 0.30, Types: []string{"Oxford Shirt", "Linen Shirt", "Polo", "Flannel Shirt", "Denim Shirt"}},
	{Name: "Pants", Weight: 0.25, Types: []string{"Chinos", "Jeans", "Cargo Pants", "Joggers", "Trousers"}},
	{Name: "Jackets", Weight: 0.15, Types: []string{"Bomber", "Parka", "Blazer", "Rain Jacket"}},
	{Name: "Shoes", Weight: 0.15, Types: []string{"Sneakers", "Loafers", "Boots", "Sandals"}},
	{Name: "Accessories", Weight: 0.15, Types: []string{"Belt", "Cap", "Scarf", "Backpack", "Watch"}},
}

var (
	prefixes = []string{"Classic", "Slim", "Relaxed", "Premium", "Everyday", "Vintage", "Essential", "Urban"}
	colors   = []string{"Black", "Navy", "Olive", "Stone", "White", "Burgundy", "Grey", "Sand"}
	brands   = []string{"Nike", "Adidas", "Raymond", "Oliver", "Zara", "Casely", "Uniqlo", "Levis"}

	descriptionTemplates = []string{
		"A wardrobe staple: this %s pairs with anything.",
		"Comfortable %s cut from durable fabric for daily wear.",
		"Our best-selling %s, refreshed for this season.",
		"Lightweight %s designed to move with you.",
	}
)

// generateProducts builds n catalog entries. The same rng seed always yields
// the same products, so re-running the seed is idempotent.
func generateProducts(rng *rand.Rand, n int, now time.Time) []domain.Product {
	products := make([]domain.Product, 0, n)

	remaining := n
	for ci, cat := range categories {
		count := int(float64(n) * cat.Weight)
		if ci == len(categories)-1 {
			count = remaining
		}
		remaining -= count

		for j := 0; j < count; j++ {
			idx := len(products)
			productType := cat.Types[rng.Intn(len(cat.Types))]
			color := colors[rng.Intn(len(colors))]
			name := fmt.Sprintf("%s %s - %s", prefixes[rng.Intn(len(prefixes))], productType, color)

			// Price between 19.00 and 499.00, rounded to whole units.
			price := int64(1900+rng.Intn(48000)) / 100 * 100
			createdAt := now.Add(-time.Duration(rng.Intn(90*24*60)) * time.Minute)

			products = append(products, domain.Product{
				ID:           uuid.NewSHA1(productNamespace, []byte(fmt.Sprintf("product:%d", idx))).String(),
				Name:         name,
				Slug:         slug.WithSuffix(slug.Generate(name), fmt.Sprint(idx)),
				Category:     cat.Name,
				Image:        fmt.Sprintf("/images/%s-%d.jpg", slug.Generate(cat.Name), idx%6+1),
				Price:        price,
				Brand:        brands[idx%len(brands)],
				Rating:       float64(30+rng.Intn(21)) / 10,
				NumReviews:   rng.Intn(500),
				CountInStock: rng.Intn(50),
				Description:  fmt.Sprintf(descriptionTemplates[rng.Intn(len(descriptionTemplates))], productType),
				CreatedBy:    "seed",
				CreatedAt:    createdAt,
				UpdatedAt:    createdAt,
			})
		}
	}

	return products
}
