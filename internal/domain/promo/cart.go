package promo

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Category is a normalized product category identifier. Matching against
// allow/deny lists is set membership over normalized values, so casing or
// stray whitespace in caller data never causes a silent mismatch.
type Category string

// NormalizeCategory trims and lower-cases a raw category string.
func NormalizeCategory(raw string) Category {
	return Category(strings.ToLower(strings.TrimSpace(raw)))
}

// ProductID is a normalized product identifier.
type ProductID string

// NormalizeProductID trims and lower-cases a raw product identifier.
func NormalizeProductID(raw string) ProductID {
	return ProductID(strings.ToLower(strings.TrimSpace(raw)))
}

func normalizeCategories(in []Category) []Category {
	out := make([]Category, 0, len(in))
	for _, c := range in {
		n := NormalizeCategory(string(c))
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

func normalizeProducts(in []ProductID) []ProductID {
	out := make([]ProductID, 0, len(in))
	for _, p := range in {
		n := NormalizeProductID(string(p))
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// CartItem is one line of the cart under validation. Quantity and price are
// assumed non-negative; defending against malformed carts is the caller's job.
type CartItem struct {
	ProductID ProductID
	Category  Category
	Quantity  int
	UnitPrice decimal.Decimal
}

// CartSnapshot is the read-only view of cart contents passed into validation.
// Subtotal is pre-discount and pre-shipping.
type CartSnapshot struct {
	Subtotal decimal.Decimal
	Items    []CartItem
}
