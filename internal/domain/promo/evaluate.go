package promo

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Evaluation is the outcome of checking a promo code against a cart. Business
// rejections are carried as Valid=false with a human-readable Message; they
// are never errors.
type Evaluation struct {
	Valid        bool
	Discount     decimal.Decimal
	FreeShipping bool
	Message      string
}

func rejected(msg string) Evaluation {
	return Evaluation{Valid: false, Discount: decimal.Zero, Message: msg}
}

// Evaluate runs the ordered redemption checks against a cart snapshot. The
// first failing check determines the rejection reason; later checks are not
// evaluated. The caller supplies the user's prior redemption count for this
// code and the user's confirmed-order count; the evaluation itself reads no
// state and mutates nothing.
func (p *PromoCode) Evaluate(cart CartSnapshot, userUsageCount, userOrderCount int64, now time.Time) Evaluation {
	switch p.Status(now) {
	case StatusExpired:
		if now.Before(p.attrs.ValidFrom) {
			return rejected("promo code is not active yet")
		}
		return rejected("promo code has expired")
	case StatusExhausted:
		return rejected("promo code has reached its usage limit")
	case StatusInactive:
		return rejected("promo code is no longer active")
	}

	if p.attrs.MinPurchase != nil && cart.Subtotal.LessThan(*p.attrs.MinPurchase) {
		return rejected(fmt.Sprintf("minimum purchase of %s required", p.attrs.MinPurchase.StringFixed(2)))
	}

	if userUsageCount >= int64(p.attrs.MaxUsesPerUser) {
		return rejected("promo code already used the maximum number of times")
	}

	if p.attrs.FirstPurchaseOnly && userOrderCount > 0 {
		return rejected("promo code is valid only on your first purchase")
	}

	if len(p.attrs.Categories) > 0 && !anyItemInCategories(cart.Items, p.attrs.Categories) {
		return rejected("promo code is not applicable to the items in your cart")
	}

	if len(p.attrs.ExcludedCategories) > 0 && anyItemInCategories(cart.Items, p.attrs.ExcludedCategories) {
		return rejected("promo code cannot be applied to some items in your cart")
	}

	if len(p.attrs.ExcludedProducts) > 0 && anyItemInProducts(cart.Items, p.attrs.ExcludedProducts) {
		return rejected("promo code cannot be applied to some items in your cart")
	}

	var discount decimal.Decimal
	switch p.attrs.Kind {
	case KindPercentage:
		discount = cart.Subtotal.Mul(p.attrs.Value).Div(hundred)
		if p.attrs.MaxDiscount != nil && discount.GreaterThan(*p.attrs.MaxDiscount) {
			discount = *p.attrs.MaxDiscount
		}
	case KindFixedAmount:
		discount = p.attrs.Value
		if discount.GreaterThan(cart.Subtotal) {
			discount = cart.Subtotal
		}
	case KindFreeShipping:
		discount = decimal.Zero
	case KindBuyXGetY:
		// Declared in the schema but the redemption semantics were never
		// defined. Rejecting beats handing a customer a code that applies
		// but grants nothing.
		return rejected("this promo code type is not supported")
	}

	// Currency rounding: half-up to cents.
	discount = discount.Round(2)

	freeShipping := p.attrs.FreeShipping || p.attrs.Kind == KindFreeShipping

	msg := fmt.Sprintf("promo code applied: %s off", discount.StringFixed(2))
	if freeShipping && discount.IsZero() {
		msg = "promo code applied: free shipping"
	}

	return Evaluation{
		Valid:        true,
		Discount:     discount,
		FreeShipping: freeShipping,
		Message:      msg,
	}
}

func anyItemInCategories(items []CartItem, categories []Category) bool {
	set := make(map[Category]struct{}, len(categories))
	for _, c := range categories {
		set[c] = struct{}{}
	}
	for _, it := range items {
		if _, ok := set[it.Category]; ok {
			return true
		}
	}
	return false
}

func anyItemInProducts(items []CartItem, products []ProductID) bool {
	set := make(map[ProductID]struct{}, len(products))
	for _, p := range products {
		set[p] = struct{}{}
	}
	for _, it := range items {
		if _, ok := set[it.ProductID]; ok {
			return true
		}
	}
	return false
}
