package promo

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind represents the discount type of a promo code.
type Kind string

const (
	KindPercentage   Kind = "percentage"
	KindFixedAmount  Kind = "fixed_amount"
	KindFreeShipping Kind = "free_shipping"
	KindBuyXGetY     Kind = "buy_x_get_y"
)

// IsValid reports whether k is an accepted discount kind. KindBuyXGetY is
// accepted at the schema level but rejected at redemption time.
func (k Kind) IsValid() bool {
	switch k {
	case KindPercentage, KindFixedAmount, KindFreeShipping, KindBuyXGetY:
		return true
	}
	return false
}

// Status is the derived validity state of a promo code. It is computed from
// the validity window, usage counters, and the active flag; it is never stored.
type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusExhausted Status = "exhausted"
	StatusInactive  Status = "inactive"
)

// UnlimitedUses marks a promo code without a global redemption ceiling.
const UnlimitedUses = -1

var hundred = decimal.NewFromInt(100)

// Attributes is the full state of a promo code, used to construct and to
// rebuild the aggregate from persistence.
type Attributes struct {
	ID                 uuid.UUID
	Code               string
	Kind               Kind
	Value              decimal.Decimal
	MaxDiscount        *decimal.Decimal
	MinPurchase        *decimal.Decimal
	FreeShipping       bool
	MaxUses            int
	MaxUsesPerUser     int
	ValidFrom          time.Time
	ValidTo            time.Time
	Categories         []Category
	ExcludedCategories []Category
	ExcludedProducts   []ProductID
	FirstPurchaseOnly  bool
	CurrentUses        int
	TotalOrders        int
	TotalRevenue       decimal.Decimal
	IsActive           bool
	CreatedBy          uuid.UUID
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// PromoCode is the aggregate root for promotional discount codes.
type PromoCode struct {
	attrs Attributes
}

// NewPromoCode creates an active promo code from admin input, enforcing the
// schema invariants. The code string is canonicalized to upper case.
func NewPromoCode(attrs Attributes) (*PromoCode, error) {
	attrs.Code = CanonicalCode(attrs.Code)
	if attrs.Code == "" {
		return nil, fmt.Errorf("promo code is required")
	}
	if err := checkRules(attrs); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	attrs.ID = uuid.New()
	attrs.Categories = normalizeCategories(attrs.Categories)
	attrs.ExcludedCategories = normalizeCategories(attrs.ExcludedCategories)
	attrs.ExcludedProducts = normalizeProducts(attrs.ExcludedProducts)
	attrs.CurrentUses = 0
	attrs.TotalOrders = 0
	attrs.TotalRevenue = decimal.Zero
	attrs.IsActive = true
	attrs.CreatedAt = now
	attrs.UpdatedAt = now
	return &PromoCode{attrs: attrs}, nil
}

// checkRules enforces the discount and limit invariants shared by creation
// and amendment.
func checkRules(attrs Attributes) error {
	if !attrs.Kind.IsValid() {
		return fmt.Errorf("invalid discount kind: %s", attrs.Kind)
	}
	switch attrs.Kind {
	case KindPercentage:
		if attrs.Value.LessThanOrEqual(decimal.Zero) || attrs.Value.GreaterThan(hundred) {
			return fmt.Errorf("percentage discount must be within (0, 100]")
		}
	case KindFixedAmount:
		if attrs.Value.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("fixed discount must be positive")
		}
	}
	if attrs.MaxDiscount != nil && attrs.MaxDiscount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("max discount must be positive")
	}
	if attrs.MinPurchase != nil && attrs.MinPurchase.LessThan(decimal.Zero) {
		return fmt.Errorf("minimum purchase cannot be negative")
	}
	if attrs.MaxUses != UnlimitedUses && attrs.MaxUses <= 0 {
		return fmt.Errorf("max uses must be positive or -1 for unlimited")
	}
	if attrs.MaxUsesPerUser < 1 {
		return fmt.Errorf("max uses per user must be at least 1")
	}
	if !attrs.ValidTo.After(attrs.ValidFrom) {
		return fmt.Errorf("valid_to must be after valid_from")
	}
	return nil
}

// Reconstruct rebuilds a PromoCode from persisted state without validation.
func Reconstruct(attrs Attributes) *PromoCode {
	return &PromoCode{attrs: attrs}
}

// CanonicalCode normalizes a user-supplied code for lookup and storage.
func CanonicalCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Status derives the current validity state. The checks are ordered so the
// most specific rejection wins: window first, then the global ceiling, then
// the active flag.
func (p *PromoCode) Status(now time.Time) Status {
	if now.Before(p.attrs.ValidFrom) || now.After(p.attrs.ValidTo) {
		return StatusExpired
	}
	if p.attrs.MaxUses != UnlimitedUses && p.attrs.CurrentUses >= p.attrs.MaxUses {
		return StatusExhausted
	}
	if !p.attrs.IsActive {
		return StatusInactive
	}
	return StatusActive
}

// Deactivate turns the code off. Deactivation is idempotent.
func (p *PromoCode) Deactivate() {
	p.attrs.IsActive = false
	p.touch()
}

// Activate turns the code back on.
func (p *PromoCode) Activate() {
	p.attrs.IsActive = true
	p.touch()
}

// Amendment carries the admin-updatable fields of a promo code. Nil pointers
// leave the current value untouched; the code string and the redemption
// counters can never be amended.
type Amendment struct {
	Kind               *Kind
	Value              *decimal.Decimal
	MaxDiscount        *decimal.Decimal
	ClearMaxDiscount   bool
	MinPurchase        *decimal.Decimal
	ClearMinPurchase   bool
	FreeShipping       *bool
	MaxUses            *int
	MaxUsesPerUser     *int
	ValidFrom          *time.Time
	ValidTo            *time.Time
	Categories         []Category
	ExcludedCategories []Category
	ExcludedProducts   []ProductID
	FirstPurchaseOnly  *bool
	IsActive           *bool
}

// Amend applies an admin update, re-checking the same invariants as creation.
func (p *PromoCode) Amend(a Amendment) error {
	next := p.attrs
	if a.Kind != nil {
		next.Kind = *a.Kind
	}
	if a.Value != nil {
		next.Value = *a.Value
	}
	if a.ClearMaxDiscount {
		next.MaxDiscount = nil
	} else if a.MaxDiscount != nil {
		next.MaxDiscount = a.MaxDiscount
	}
	if a.ClearMinPurchase {
		next.MinPurchase = nil
	} else if a.MinPurchase != nil {
		next.MinPurchase = a.MinPurchase
	}
	if a.FreeShipping != nil {
		next.FreeShipping = *a.FreeShipping
	}
	if a.MaxUses != nil {
		next.MaxUses = *a.MaxUses
	}
	if a.MaxUsesPerUser != nil {
		next.MaxUsesPerUser = *a.MaxUsesPerUser
	}
	if a.ValidFrom != nil {
		next.ValidFrom = *a.ValidFrom
	}
	if a.ValidTo != nil {
		next.ValidTo = *a.ValidTo
	}
	if a.Categories != nil {
		next.Categories = normalizeCategories(a.Categories)
	}
	if a.ExcludedCategories != nil {
		next.ExcludedCategories = normalizeCategories(a.ExcludedCategories)
	}
	if a.ExcludedProducts != nil {
		next.ExcludedProducts = normalizeProducts(a.ExcludedProducts)
	}
	if a.FirstPurchaseOnly != nil {
		next.FirstPurchaseOnly = *a.FirstPurchaseOnly
	}
	if a.IsActive != nil {
		next.IsActive = *a.IsActive
	}

	if err := checkRules(next); err != nil {
		return err
	}

	p.attrs = next
	p.touch()
	return nil
}

// RegisterRedemption updates the aggregate counters after a confirmed order.
// Persistence performs the equivalent increment conditionally; this keeps an
// in-memory aggregate consistent for callers that hold one.
func (p *PromoCode) RegisterRedemption(orderTotal decimal.Decimal) {
	p.attrs.CurrentUses++
	p.attrs.TotalOrders++
	p.attrs.TotalRevenue = p.attrs.TotalRevenue.Add(orderTotal)
	p.touch()
}

func (p *PromoCode) touch() {
	p.attrs.UpdatedAt = time.Now().UTC()
}

// Getters.
func (p *PromoCode) ID() uuid.UUID                  { return p.attrs.ID }
func (p *PromoCode) Code() string                   { return p.attrs.Code }
func (p *PromoCode) Kind() Kind                     { return p.attrs.Kind }
func (p *PromoCode) Value() decimal.Decimal         { return p.attrs.Value }
func (p *PromoCode) MaxDiscount() *decimal.Decimal  { return p.attrs.MaxDiscount }
func (p *PromoCode) MinPurchase() *decimal.Decimal  { return p.attrs.MinPurchase }
func (p *PromoCode) FreeShipping() bool             { return p.attrs.FreeShipping }
func (p *PromoCode) MaxUses() int                   { return p.attrs.MaxUses }
func (p *PromoCode) MaxUsesPerUser() int            { return p.attrs.MaxUsesPerUser }
func (p *PromoCode) ValidFrom() time.Time           { return p.attrs.ValidFrom }
func (p *PromoCode) ValidTo() time.Time             { return p.attrs.ValidTo }
func (p *PromoCode) Categories() []Category         { return p.attrs.Categories }
func (p *PromoCode) ExcludedCategories() []Category { return p.attrs.ExcludedCategories }
func (p *PromoCode) ExcludedProducts() []ProductID  { return p.attrs.ExcludedProducts }
func (p *PromoCode) FirstPurchaseOnly() bool        { return p.attrs.FirstPurchaseOnly }
func (p *PromoCode) CurrentUses() int               { return p.attrs.CurrentUses }
func (p *PromoCode) TotalOrders() int               { return p.attrs.TotalOrders }
func (p *PromoCode) TotalRevenue() decimal.Decimal  { return p.attrs.TotalRevenue }
func (p *PromoCode) IsActive() bool                 { return p.attrs.IsActive }
func (p *PromoCode) CreatedBy() uuid.UUID           { return p.attrs.CreatedBy }
func (p *PromoCode) CreatedAt() time.Time           { return p.attrs.CreatedAt }
func (p *PromoCode) UpdatedAt() time.Time           { return p.attrs.UpdatedAt }
