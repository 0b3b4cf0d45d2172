package events

import (
	"context"
	"errors"
	"strings"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/beleza-commerce/service-promo/internal/application"
	promoDomain "github.com/beleza-commerce/service-promo/internal/domain/promo"
	"github.com/beleza-commerce/service-promo/pkg/domain"
	"github.com/beleza-commerce/service-promo/pkg/events"
	"github.com/beleza-commerce/service-promo/pkg/kafka"
)

// OrderEventConsumer listens to checkout order events. Confirmed orders feed
// the customer-order projection and, when a promo code was applied, trigger
// usage recording.
type OrderEventConsumer struct {
	consumer     *kafka.Consumer
	usageService *application.UsageService
	orderHistory promoDomain.OrderHistory
	logger       *zap.Logger
}

// NewOrderEventConsumer creates a new consumer for order events.
func NewOrderEventConsumer(
	brokers []string,
	groupID string,
	usageService *application.UsageService,
	orderHistory promoDomain.OrderHistory,
	logger *zap.Logger,
) *OrderEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, events.TopicOrderEvents, logger)
	return &OrderEventConsumer{
		consumer:     consumer,
		usageService: usageService,
		orderHistory: orderHistory,
		logger:       logger,
	}
}

// Start begins consuming order events. It blocks until the context is cancelled.
func (c *OrderEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// handleMessage routes incoming Kafka messages to the appropriate handler.
func (c *OrderEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from order topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return err
	}

	switch {
	case strings.EqualFold(cloudEvent.Type, events.OrderConfirmed):
		return c.handleOrderConfirmed(ctx, cloudEvent)

	case strings.EqualFold(cloudEvent.Type, events.OrderCancelled):
		// Redemptions stay recorded on cancellation: refunds do not return
		// use slots in the reference behavior.
		return nil

	default:
		c.logger.Debug("ignoring unhandled order event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

// handleOrderConfirmed processes an OrderConfirmedEvent.
func (c *OrderEventConsumer) handleOrderConfirmed(ctx context.Context, ce kafka.CloudEvent) error {
	var event events.OrderConfirmedEvent
	if err := ce.ParseData(&event); err != nil {
		c.logger.Error("failed to parse OrderConfirmedEvent data", zap.Error(err))
		return err
	}

	c.logger.Info("order confirmed",
		zap.String("order_id", event.OrderID.String()),
		zap.String("user_id", event.UserID.String()),
		zap.Bool("promo_applied", event.PromoCodeID != nil),
	)

	if err := c.orderHistory.RecordConfirmedOrder(ctx, event.UserID, event.OrderID, event.ConfirmedAt); err != nil {
		return err
	}

	if event.PromoCodeID == nil {
		return nil
	}

	err := c.usageService.RecordUsage(ctx, application.RecordUsageInput{
		PromoCodeID: *event.PromoCodeID,
		UserID:      event.UserID,
		OrderID:     event.OrderID,
		Discount:    event.DiscountApplied,
		OrderTotal:  event.OrderTotal,
		IPAddress:   event.IPAddress,
		UserAgent:   event.UserAgent,
	})
	if err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			// Redelivered event; the redemption is already recorded.
			return nil
		}
		if errors.Is(err, promoDomain.ErrUsageLimitReached) {
			// The cap was hit between validation and confirmation. Keep the
			// order; just log that this redemption exceeded the ceiling.
			c.logger.Warn("promo usage limit reached at confirmation time",
				zap.String("promo_id", event.PromoCodeID.String()),
				zap.String("order_id", event.OrderID.String()),
			)
			return nil
		}
		return err
	}
	return nil
}

// Close closes the underlying Kafka consumer.
func (c *OrderEventConsumer) Close() error {
	return c.consumer.Close()
}
