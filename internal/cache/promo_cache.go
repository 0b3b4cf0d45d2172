package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	promoDomain "github.com/beleza-commerce/service-promo/internal/domain/promo"
)

// lookupTTL keeps cached codes fresh enough that counter drift between
// replicas stays within one validation round-trip.
const lookupTTL = 30 * time.Second

// CachedPromoRepository decorates a promo repository with a Redis
// read-through cache on code lookup. Writes pass through and invalidate.
type CachedPromoRepository struct {
	promoDomain.PromoRepository
	client *redis.Client
	logger *zap.Logger
}

// NewCachedPromoRepository wraps inner with Redis caching.
func NewCachedPromoRepository(inner promoDomain.PromoRepository, client *redis.Client, logger *zap.Logger) *CachedPromoRepository {
	return &CachedPromoRepository{PromoRepository: inner, client: client, logger: logger}
}

func cacheKey(code string) string {
	return "promo:code:" + promoDomain.CanonicalCode(code)
}

// FindByCode serves lookups from Redis when possible. Cache failures are
// logged and fall through to the database; the cache is an optimization,
// never a dependency.
func (r *CachedPromoRepository) FindByCode(ctx context.Context, code string) (*promoDomain.PromoCode, error) {
	key := cacheKey(code)

	raw, err := r.client.Get(ctx, key).Bytes()
	if err == nil {
		var attrs promoDomain.Attributes
		if err := json.Unmarshal(raw, &attrs); err == nil {
			return promoDomain.Reconstruct(attrs), nil
		}
		r.logger.Warn("corrupt promo cache entry, dropping", zap.String("key", key))
		r.client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		r.logger.Warn("promo cache read failed", zap.Error(err))
	}

	p, err := r.PromoRepository.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(snapshot(p)); err == nil {
		if err := r.client.Set(ctx, key, raw, lookupTTL).Err(); err != nil {
			r.logger.Warn("promo cache write failed", zap.Error(err))
		}
	}
	return p, nil
}

// Update writes through and drops the cached entry.
func (r *CachedPromoRepository) Update(ctx context.Context, p *promoDomain.PromoCode) error {
	if err := r.PromoRepository.Update(ctx, p); err != nil {
		return err
	}
	r.invalidate(ctx, p.Code())
	return nil
}

// RecordRedemption passes through and drops the cached entry so the next
// lookup sees the new counters.
func (r *CachedPromoRepository) RecordRedemption(ctx context.Context, usage *promoDomain.Usage) error {
	if err := r.PromoRepository.RecordRedemption(ctx, usage); err != nil {
		return err
	}
	if p, err := r.PromoRepository.FindByID(ctx, usage.PromoID); err == nil {
		r.invalidate(ctx, p.Code())
	}
	return nil
}

func (r *CachedPromoRepository) invalidate(ctx context.Context, code string) {
	if err := r.client.Del(ctx, cacheKey(code)).Err(); err != nil {
		r.logger.Warn("promo cache invalidation failed",
			zap.String("code", code),
			zap.Error(err),
		)
	}
}

// snapshot copies the aggregate state into its serializable attributes.
func snapshot(p *promoDomain.PromoCode) promoDomain.Attributes {
	return promoDomain.Attributes{
		ID:                 p.ID(),
		Code:               p.Code(),
		Kind:               p.Kind(),
		Value:              p.Value(),
		MaxDiscount:        p.MaxDiscount(),
		MinPurchase:        p.MinPurchase(),
		FreeShipping:       p.FreeShipping(),
		MaxUses:            p.MaxUses(),
		MaxUsesPerUser:     p.MaxUsesPerUser(),
		ValidFrom:          p.ValidFrom(),
		ValidTo:            p.ValidTo(),
		Categories:         p.Categories(),
		ExcludedCategories: p.ExcludedCategories(),
		ExcludedProducts:   p.ExcludedProducts(),
		FirstPurchaseOnly:  p.FirstPurchaseOnly(),
		CurrentUses:        p.CurrentUses(),
		TotalOrders:        p.TotalOrders(),
		TotalRevenue:       p.TotalRevenue(),
		IsActive:           p.IsActive(),
		CreatedBy:          p.CreatedBy(),
		CreatedAt:          p.CreatedAt(),
		UpdatedAt:          p.UpdatedAt(),
	}
}

var _ promoDomain.PromoRepository = (*CachedPromoRepository)(nil)

// NewRedisClient creates the service's Redis client and verifies connectivity.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}
