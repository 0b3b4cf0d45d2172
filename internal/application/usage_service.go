package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	promoDomain "github.com/beleza-commerce/service-promo/internal/domain/promo"
	"github.com/beleza-commerce/service-promo/pkg/events"
	"github.com/beleza-commerce/service-promo/pkg/kafka"
)

// RecordUsageInput carries the facts of one confirmed redemption.
type RecordUsageInput struct {
	PromoCodeID uuid.UUID
	UserID      uuid.UUID
	OrderID     uuid.UUID
	Discount    decimal.Decimal
	OrderTotal  decimal.Decimal
	IPAddress   string
	UserAgent   string
}

// UsageService records promo redemptions after order confirmation.
type UsageService struct {
	repo     promoDomain.PromoRepository
	producer *kafka.Producer
	logger   *zap.Logger
}

// NewUsageService creates a new UsageService.
func NewUsageService(repo promoDomain.PromoRepository, producer *kafka.Producer, logger *zap.Logger) *UsageService {
	return &UsageService{repo: repo, producer: producer, logger: logger}
}

// RecordUsage appends the immutable usage record and bumps the code's
// counters in a single transaction, then announces the redemption. The event
// publish is best-effort: the redemption is already durable and promo
// analytics consumers tolerate gaps.
func (s *UsageService) RecordUsage(ctx context.Context, in RecordUsageInput) error {
	usage := &promoDomain.Usage{
		ID:         uuid.New(),
		PromoID:    in.PromoCodeID,
		UserID:     in.UserID,
		OrderID:    in.OrderID,
		Discount:   in.Discount,
		OrderTotal: in.OrderTotal,
		IPAddress:  in.IPAddress,
		UserAgent:  in.UserAgent,
		UsedAt:     time.Now().UTC(),
	}

	if err := s.repo.RecordRedemption(ctx, usage); err != nil {
		return err
	}

	s.logger.Info("promo usage recorded",
		zap.String("promo_id", in.PromoCodeID.String()),
		zap.String("order_id", in.OrderID.String()),
		zap.String("discount", in.Discount.StringFixed(2)),
	)

	event := events.PromoRedeemedEvent{
		UsageID:     usage.ID,
		PromoCodeID: in.PromoCodeID,
		UserID:      in.UserID,
		OrderID:     in.OrderID,
		Discount:    in.Discount,
		OrderTotal:  in.OrderTotal,
		OccurredAt:  usage.UsedAt,
	}
	ce, err := kafka.NewCloudEvent("service-promo", events.PromoRedeemed, event)
	if err != nil {
		s.logger.Error("failed to build promo.redeemed event", zap.Error(err))
		return nil
	}
	if err := s.producer.PublishEvent(ctx, events.TopicPromoEvents, ce); err != nil {
		s.logger.Error("failed to publish promo.redeemed event", zap.Error(err))
	}
	return nil
}
