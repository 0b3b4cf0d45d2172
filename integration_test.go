//go:build integration

package main_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beleza-commerce/service-promo/internal/repository"
	"github.com/beleza-commerce/service-promo/pkg/events"
)

// TestOrderConfirmed_RecordsUsage verifies that when an OrderConfirmedEvent
// carrying a promo code is published to order.events, the promo service
// records the usage, bumps the code's counters, and publishes a
// PromoRedeemedEvent.
func TestOrderConfirmed_RecordsUsage(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupPromoStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()
	defer func() { _ = stack.Consumer.Close() }()

	promoID := seedPromoCode(t, infra.DB, "BELEZA10", 100)
	userID := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = stack.Consumer.Start(ctx) }()
	time.Sleep(3 * time.Second) // Wait for consumer group join.

	evt := orderConfirmed(userID, &promoID, "40.00", "4.00")
	publishTestEvent(t, infra.KafkaBrokers, events.TopicOrderEvents,
		"service-checkout", events.OrderConfirmed, evt)

	// Assert: usage row written.
	waitForUsageCount(t, infra.DB, promoID, 1, 15*time.Second)

	var usage repository.PromoUsageModel
	require.NoError(t, infra.DB.Where("promo_id = ?", promoID).First(&usage).Error)
	assert.Equal(t, userID, usage.UserID)
	assert.Equal(t, evt.OrderID, usage.OrderID)
	assert.True(t, usage.Discount.Equal(decimal.RequireFromString("4.00")))

	// Assert: counters bumped in the same transaction.
	var model repository.PromoCodeModel
	require.NoError(t, infra.DB.Where("id = ?", promoID).First(&model).Error)
	assert.Equal(t, 1, model.CurrentUses)
	assert.Equal(t, 1, model.TotalOrders)
	assert.True(t, model.TotalRevenue.Equal(decimal.RequireFromString("40.00")))

	// Assert: projection row for the first-purchase check.
	var orderCount int64
	require.NoError(t, infra.DB.Model(&repository.CustomerOrderModel{}).
		Where("user_id = ?", userID).Count(&orderCount).Error)
	assert.Equal(t, int64(1), orderCount)

	// Assert: PromoRedeemedEvent on promo.events.
	ce := consumeOneEvent(t, infra.KafkaBrokers, events.TopicPromoEvents,
		events.PromoRedeemed, 15*time.Second)

	var redeemed events.PromoRedeemedEvent
	require.NoError(t, ce.ParseData(&redeemed))
	assert.Equal(t, promoID, redeemed.PromoCodeID)
	assert.Equal(t, userID, redeemed.UserID)
	assert.Equal(t, evt.OrderID, redeemed.OrderID)
	assert.True(t, redeemed.Discount.Equal(decimal.RequireFromString("4.00")))
}

// TestOrderConfirmed_RedeliveryIsIdempotent verifies that the same event
// delivered twice produces exactly one usage row and one counter bump.
func TestOrderConfirmed_RedeliveryIsIdempotent(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupPromoStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()
	defer func() { _ = stack.Consumer.Close() }()

	promoID := seedPromoCode(t, infra.DB, "REPETIDO", 100)
	userID := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = stack.Consumer.Start(ctx) }()
	time.Sleep(3 * time.Second)

	evt := orderConfirmed(userID, &promoID, "60.00", "6.00")
	publishTestEvent(t, infra.KafkaBrokers, events.TopicOrderEvents,
		"service-checkout", events.OrderConfirmed, evt)
	publishTestEvent(t, infra.KafkaBrokers, events.TopicOrderEvents,
		"service-checkout", events.OrderConfirmed, evt)

	waitForUsageCount(t, infra.DB, promoID, 1, 15*time.Second)

	// Give the duplicate time to be consumed, then re-check nothing changed.
	time.Sleep(3 * time.Second)

	var count int64
	require.NoError(t, infra.DB.Model(&repository.PromoUsageModel{}).
		Where("promo_id = ?", promoID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var model repository.PromoCodeModel
	require.NoError(t, infra.DB.Where("id = ?", promoID).First(&model).Error)
	assert.Equal(t, 1, model.CurrentUses)
}

// TestOrderConfirmed_UsageCeilingHolds verifies that a code at its global
// ceiling refuses further redemptions atomically: the usage insert rolls
// back with the counter untouched.
func TestOrderConfirmed_UsageCeilingHolds(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupPromoStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()
	defer func() { _ = stack.Consumer.Close() }()

	promoID := seedPromoCode(t, infra.DB, "ESGOTADO", 1)
	userA := uuid.New()
	userB := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = stack.Consumer.Start(ctx) }()
	time.Sleep(3 * time.Second)

	publishTestEvent(t, infra.KafkaBrokers, events.TopicOrderEvents,
		"service-checkout", events.OrderConfirmed, orderConfirmed(userA, &promoID, "30.00", "3.00"))

	waitForUsageCount(t, infra.DB, promoID, 1, 15*time.Second)

	// Second redemption against a ceiling of one.
	publishTestEvent(t, infra.KafkaBrokers, events.TopicOrderEvents,
		"service-checkout", events.OrderConfirmed, orderConfirmed(userB, &promoID, "50.00", "5.00"))

	time.Sleep(5 * time.Second)

	var count int64
	require.NoError(t, infra.DB.Model(&repository.PromoUsageModel{}).
		Where("promo_id = ?", promoID).Count(&count).Error)
	assert.Equal(t, int64(1), count, "second redemption must roll back entirely")

	var model repository.PromoCodeModel
	require.NoError(t, infra.DB.Where("id = ?", promoID).First(&model).Error)
	assert.Equal(t, 1, model.CurrentUses)
	assert.Equal(t, 1, model.MaxUses)

	// The projection still records both confirmed orders.
	var orders int64
	require.NoError(t, infra.DB.Model(&repository.CustomerOrderModel{}).Count(&orders).Error)
	assert.Equal(t, int64(2), orders)
}

// TestOrderConfirmed_WithoutPromo_OnlyProjects verifies that a confirmed
// order without a promo code only feeds the customer-order projection.
func TestOrderConfirmed_WithoutPromo_OnlyProjects(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupPromoStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()
	defer func() { _ = stack.Consumer.Close() }()

	userID := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = stack.Consumer.Start(ctx) }()
	time.Sleep(3 * time.Second)

	publishTestEvent(t, infra.KafkaBrokers, events.TopicOrderEvents,
		"service-checkout", events.OrderConfirmed, orderConfirmed(userID, nil, "25.00", "0.00"))

	require.Eventually(t, func() bool {
		var n int64
		if err := infra.DB.Model(&repository.CustomerOrderModel{}).
			Where("user_id = ?", userID).Count(&n).Error; err != nil {
			return false
		}
		return n == 1
	}, 15*time.Second, 200*time.Millisecond, "projection row not written")

	var usages int64
	require.NoError(t, infra.DB.Model(&repository.PromoUsageModel{}).Count(&usages).Error)
	assert.Equal(t, int64(0), usages)
}
