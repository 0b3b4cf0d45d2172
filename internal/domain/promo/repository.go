package promo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrUsageLimitReached is returned by RecordRedemption when the conditional
// counter increment finds the global ceiling already reached. The whole
// redemption rolls back in that case.
var ErrUsageLimitReached = errors.New("promo code usage limit reached")

// PromoRepository defines persistence operations for promo codes and their
// redemption records.
type PromoRepository interface {
	Save(ctx context.Context, p *PromoCode) error
	Update(ctx context.Context, p *PromoCode) error
	FindByCode(ctx context.Context, code string) (*PromoCode, error)
	FindByID(ctx context.Context, id uuid.UUID) (*PromoCode, error)
	FindActive(ctx context.Context, now time.Time) ([]*PromoCode, error)
	List(ctx context.Context, page, limit int) ([]*PromoCode, int64, error)

	// CountUsage returns how many times the user has redeemed the code.
	CountUsage(ctx context.Context, promoID, userID uuid.UUID) (int64, error)

	// RecordRedemption inserts the usage record and increments the code's
	// counters (uses, orders, revenue) in one transaction. The increment is
	// conditional on the global ceiling; ErrUsageLimitReached rolls the
	// insert back too.
	RecordRedemption(ctx context.Context, usage *Usage) error

	// ListUsage returns the redemption records for a code, newest first.
	ListUsage(ctx context.Context, promoID uuid.UUID, page, limit int) ([]*Usage, int64, error)
}

// OrderHistory is the per-customer confirmed-order projection maintained from
// order events. It backs the first-purchase-only check.
type OrderHistory interface {
	CountConfirmedOrders(ctx context.Context, userID uuid.UUID) (int64, error)
	RecordConfirmedOrder(ctx context.Context, userID, orderID uuid.UUID, placedAt time.Time) error
}

// Usage is one immutable redemption fact: a promo code applied to a finalized
// order. Created once per confirmed checkout; never mutated or deleted.
type Usage struct {
	ID         uuid.UUID
	PromoID    uuid.UUID
	UserID     uuid.UUID
	OrderID    uuid.UUID
	Discount   decimal.Decimal
	OrderTotal decimal.Decimal
	IPAddress  string
	UserAgent  string
	UsedAt     time.Time
}
