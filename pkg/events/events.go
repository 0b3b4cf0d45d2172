package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Topics shared with the other storefront services.
const (
	TopicOrderEvents = "order.events"
	TopicPromoEvents = "promo.events"
)

// Event types.
const (
	OrderConfirmed = "order.confirmed"
	OrderCancelled = "order.cancelled"
	PromoRedeemed  = "promo.redeemed"
)

// OrderConfirmedEvent is published by the checkout service once payment has
// been captured and the order is final. PromoCodeID is set only when a promo
// code was applied at checkout.
type OrderConfirmedEvent struct {
	OrderID         uuid.UUID       `json:"order_id"`
	UserID          uuid.UUID       `json:"user_id"`
	OrderTotal      decimal.Decimal `json:"order_total"`
	PromoCodeID     *uuid.UUID      `json:"promo_code_id,omitempty"`
	DiscountApplied decimal.Decimal `json:"discount_applied"`
	IPAddress       string          `json:"ip_address,omitempty"`
	UserAgent       string          `json:"user_agent,omitempty"`
	ConfirmedAt     time.Time       `json:"confirmed_at"`
	OccurredAt      time.Time       `json:"occurred_at"`
}

// OrderCancelledEvent is published when a confirmed order is cancelled.
type OrderCancelledEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	UserID     uuid.UUID `json:"user_id"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PromoRedeemedEvent announces a recorded redemption for analytics consumers.
type PromoRedeemedEvent struct {
	UsageID     uuid.UUID       `json:"usage_id"`
	PromoCodeID uuid.UUID       `json:"promo_code_id"`
	UserID      uuid.UUID       `json:"user_id"`
	OrderID     uuid.UUID       `json:"order_id"`
	Discount    decimal.Decimal `json:"discount"`
	OrderTotal  decimal.Decimal `json:"order_total"`
	OccurredAt  time.Time       `json:"occurred_at"`
}
