package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	promoDomain "github.com/beleza-commerce/service-promo/internal/domain/promo"
	"github.com/beleza-commerce/service-promo/pkg/domain"
)

// PromoCodeModel is the GORM model for the promo_codes table.
type PromoCodeModel struct {
	ID                 uuid.UUID        `gorm:"type:uuid;primaryKey"`
	Code               string           `gorm:"type:varchar(50);uniqueIndex;not null"`
	Kind               string           `gorm:"type:varchar(20);not null"`
	Value              decimal.Decimal  `gorm:"type:numeric(12,2);not null"`
	MaxDiscount        *decimal.Decimal `gorm:"type:numeric(12,2)"`
	MinPurchase        *decimal.Decimal `gorm:"type:numeric(12,2)"`
	FreeShipping       bool             `gorm:"not null;default:false"`
	MaxUses            int              `gorm:"not null;default:-1"`
	MaxUsesPerUser     int              `gorm:"not null;default:1"`
	ValidFrom          time.Time        `gorm:"type:timestamptz;not null"`
	ValidTo            time.Time        `gorm:"type:timestamptz;not null"`
	Categories         pq.StringArray   `gorm:"type:text[]"`
	ExcludedCategories pq.StringArray   `gorm:"type:text[]"`
	ExcludedProducts   pq.StringArray   `gorm:"type:text[]"`
	FirstPurchaseOnly  bool             `gorm:"not null;default:false"`
	CurrentUses        int              `gorm:"not null;default:0"`
	TotalOrders        int              `gorm:"not null;default:0"`
	TotalRevenue       decimal.Decimal  `gorm:"type:numeric(14,2);not null;default:0"`
	IsActive           bool             `gorm:"not null;default:true"`
	CreatedBy          uuid.UUID        `gorm:"type:uuid;not null"`
	CreatedAt          time.Time        `gorm:"type:timestamptz;not null"`
	UpdatedAt          time.Time        `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (PromoCodeModel) TableName() string { return "promo_codes" }

// PromoUsageModel is the GORM model for the promo_usages table.
type PromoUsageModel struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	PromoID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_promo_usages_promo_user"`
	UserID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_promo_usages_promo_user"`
	OrderID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	Discount   decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	OrderTotal decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	IPAddress  string          `gorm:"type:varchar(45)"`
	UserAgent  string          `gorm:"type:text"`
	UsedAt     time.Time       `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (PromoUsageModel) TableName() string { return "promo_usages" }

// CustomerOrderModel is the confirmed-order projection fed from order events.
// One row per confirmed order keeps replays idempotent.
type CustomerOrderModel struct {
	OrderID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index"`
	PlacedAt time.Time `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (CustomerOrderModel) TableName() string { return "customer_orders" }

// GormPromoRepository implements promo.PromoRepository using GORM.
type GormPromoRepository struct {
	db *gorm.DB
}

// NewGormPromoRepository creates a new GormPromoRepository.
func NewGormPromoRepository(db *gorm.DB) *GormPromoRepository {
	return &GormPromoRepository{db: db}
}

// Save persists a new promo code. A duplicate code surfaces as a conflict.
func (r *GormPromoRepository) Save(ctx context.Context, p *promoDomain.PromoCode) error {
	model := toPromoModel(p)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("PromoCode", p.Code())
		}
		return err
	}
	return nil
}

// Update persists the aggregate's current state.
func (r *GormPromoRepository) Update(ctx context.Context, p *promoDomain.PromoCode) error {
	model := toPromoModel(p)
	return r.db.WithContext(ctx).Save(&model).Error
}

// FindByCode returns a promo code by its canonicalized code string.
func (r *GormPromoRepository) FindByCode(ctx context.Context, code string) (*promoDomain.PromoCode, error) {
	var model PromoCodeModel
	canonical := promoDomain.CanonicalCode(code)
	if err := r.db.WithContext(ctx).Where("code = ?", canonical).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("PromoCode", canonical)
		}
		return nil, err
	}
	return toPromoDomain(&model), nil
}

// FindByID returns a promo code by ID.
func (r *GormPromoRepository) FindByID(ctx context.Context, id uuid.UUID) (*promoDomain.PromoCode, error) {
	var model PromoCodeModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("PromoCode", id.String())
		}
		return nil, err
	}
	return toPromoDomain(&model), nil
}

// FindActive returns codes redeemable at the given instant.
func (r *GormPromoRepository) FindActive(ctx context.Context, now time.Time) ([]*promoDomain.PromoCode, error) {
	var models []PromoCodeModel
	if err := r.db.WithContext(ctx).
		Where("is_active = true").
		Where("valid_from <= ? AND valid_to >= ?", now, now).
		Where("max_uses = ? OR current_uses < max_uses", promoDomain.UnlimitedUses).
		Order("valid_to ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	promos := make([]*promoDomain.PromoCode, len(models))
	for i, m := range models {
		promos[i] = toPromoDomain(&m)
	}
	return promos, nil
}

// List returns a page of all promo codes, newest first.
func (r *GormPromoRepository) List(ctx context.Context, page, limit int) ([]*promoDomain.PromoCode, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&PromoCodeModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []PromoCodeModel
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}

	promos := make([]*promoDomain.PromoCode, len(models))
	for i, m := range models {
		promos[i] = toPromoDomain(&m)
	}
	return promos, total, nil
}

// CountUsage returns how many times the user has redeemed the code.
func (r *GormPromoRepository) CountUsage(ctx context.Context, promoID, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&PromoUsageModel{}).
		Where("promo_id = ? AND user_id = ?", promoID, userID).
		Count(&count).Error
	return count, err
}

// RecordRedemption inserts the usage record and bumps the code's counters in
// one transaction. The counter update only matches while the global ceiling
// has not been reached, so two concurrent redemptions cannot push a capped
// code past max_uses; the loser's insert rolls back with ErrUsageLimitReached.
func (r *GormPromoRepository) RecordRedemption(ctx context.Context, usage *promoDomain.Usage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := PromoUsageModel{
			ID:         usage.ID,
			PromoID:    usage.PromoID,
			UserID:     usage.UserID,
			OrderID:    usage.OrderID,
			Discount:   usage.Discount,
			OrderTotal: usage.OrderTotal,
			IPAddress:  usage.IPAddress,
			UserAgent:  usage.UserAgent,
			UsedAt:     usage.UsedAt,
		}
		if err := tx.Create(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.NewConflictError("PromoUsage", usage.OrderID.String())
			}
			return err
		}

		res := tx.Model(&PromoCodeModel{}).
			Where("id = ?", usage.PromoID).
			Where("max_uses = ? OR current_uses < max_uses", promoDomain.UnlimitedUses).
			Updates(map[string]interface{}{
				"current_uses":  gorm.Expr("current_uses + 1"),
				"total_orders":  gorm.Expr("total_orders + 1"),
				"total_revenue": gorm.Expr("total_revenue + ?", usage.OrderTotal),
				"updated_at":    time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return promoDomain.ErrUsageLimitReached
		}
		return nil
	})
}

// ListUsage returns redemption records for a code, newest first.
func (r *GormPromoRepository) ListUsage(ctx context.Context, promoID uuid.UUID, page, limit int) ([]*promoDomain.Usage, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&PromoUsageModel{}).
		Where("promo_id = ?", promoID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []PromoUsageModel
	if err := r.db.WithContext(ctx).
		Where("promo_id = ?", promoID).
		Order("used_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}

	usages := make([]*promoDomain.Usage, len(models))
	for i, m := range models {
		usages[i] = &promoDomain.Usage{
			ID:         m.ID,
			PromoID:    m.PromoID,
			UserID:     m.UserID,
			OrderID:    m.OrderID,
			Discount:   m.Discount,
			OrderTotal: m.OrderTotal,
			IPAddress:  m.IPAddress,
			UserAgent:  m.UserAgent,
			UsedAt:     m.UsedAt,
		}
	}
	return usages, total, nil
}

// GormOrderHistory implements promo.OrderHistory over the customer_orders
// projection.
type GormOrderHistory struct {
	db *gorm.DB
}

// NewGormOrderHistory creates a new GormOrderHistory.
func NewGormOrderHistory(db *gorm.DB) *GormOrderHistory {
	return &GormOrderHistory{db: db}
}

// CountConfirmedOrders returns the user's confirmed-order count.
func (r *GormOrderHistory) CountConfirmedOrders(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&CustomerOrderModel{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// RecordConfirmedOrder upserts one projection row. Replayed events hit the
// primary key and are ignored.
func (r *GormOrderHistory) RecordConfirmedOrder(ctx context.Context, userID, orderID uuid.UUID, placedAt time.Time) error {
	model := CustomerOrderModel{OrderID: orderID, UserID: userID, PlacedAt: placedAt}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model).Error
}

func toPromoModel(p *promoDomain.PromoCode) PromoCodeModel {
	return PromoCodeModel{
		ID:                 p.ID(),
		Code:               p.Code(),
		Kind:               string(p.Kind()),
		Value:              p.Value(),
		MaxDiscount:        p.MaxDiscount(),
		MinPurchase:        p.MinPurchase(),
		FreeShipping:       p.FreeShipping(),
		MaxUses:            p.MaxUses(),
		MaxUsesPerUser:     p.MaxUsesPerUser(),
		ValidFrom:          p.ValidFrom(),
		ValidTo:            p.ValidTo(),
		Categories:         categoriesToStrings(p.Categories()),
		ExcludedCategories: categoriesToStrings(p.ExcludedCategories()),
		ExcludedProducts:   productsToStrings(p.ExcludedProducts()),
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

func toPromoDomain(m *PromoCodeModel) *promoDomain.PromoCode {
	return promoDomain.Reconstruct(promoDomain.Attributes{
		ID:                 m.ID,
		Code:               m.Code,
		Kind:               promoDomain.Kind(m.Kind),
		Value:              m.Value,
		MaxDiscount:        m.MaxDiscount,
		MinPurchase:        m.MinPurchase,
		FreeShipping:       m.FreeShipping,
		MaxUses:            m.MaxUses,
		MaxUsesPerUser:     m.MaxUsesPerUser,
		ValidFrom:          m.ValidFrom,
		ValidTo:            m.ValidTo,
		Categories:         stringsToCategories(m.Categories),
		ExcludedCategories: stringsToCategories(m.ExcludedCategories),
		ExcludedProducts:   stringsToProducts(m.ExcludedProducts),
		FirstPurchaseOnly:  m.FirstPurchaseOnly,
		CurrentUses:        m.CurrentUses,
		TotalOrders:        m.TotalOrders,
		TotalRevenue:       m.TotalRevenue,
		IsActive:           m.IsActive,
		CreatedBy:          m.CreatedBy,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	})
}

func categoriesToStrings(in []promoDomain.Category) pq.StringArray {
	out := make(pq.StringArray, len(in))
	for i, c := range in {
		out[i] = string(c)
	}
	return out
}

func stringsToCategories(in pq.StringArray) []promoDomain.Category {
	out := make([]promoDomain.Category, len(in))
	for i, s := range in {
		out[i] = promoDomain.Category(s)
	}
	return out
}

func productsToStrings(in []promoDomain.ProductID) pq.StringArray {
	out := make(pq.StringArray, len(in))
	for i, p := range in {
		out[i] = string(p)
	}
	return out
}

func stringsToProducts(in pq.StringArray) []promoDomain.ProductID {
	out := make([]promoDomain.ProductID, len(in))
	for i, s := range in {
		out[i] = promoDomain.ProductID(s)
	}
	return out
}
