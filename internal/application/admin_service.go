package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	promoDomain "github.com/beleza-commerce/service-promo/internal/domain/promo"
	"github.com/beleza-commerce/service-promo/pkg/domain"
)

// CreatePromoRequest holds admin data to create a promo code.
type CreatePromoRequest struct {
	Code               string           `json:"code" binding:"required"`
	Kind               string           `json:"kind" binding:"required"`
	Value              decimal.Decimal  `json:"value"`
	MaxDiscount        *decimal.Decimal `json:"max_discount"`
	MinPurchase        *decimal.Decimal `json:"min_purchase"`
	FreeShipping       bool             `json:"free_shipping"`
	MaxUses            int              `json:"max_uses"`
	MaxUsesPerUser     int              `json:"max_uses_per_user"`
	ValidFrom          string           `json:"valid_from" binding:"required"`
	ValidTo            string           `json:"valid_to" binding:"required"`
	Categories         []string         `json:"categories"`
	ExcludedCategories []string         `json:"excluded_categories"`
	ExcludedProducts   []string         `json:"excluded_products"`
	FirstPurchaseOnly  bool             `json:"first_purchase_only"`
}

// UpdatePromoRequest holds admin data to amend a promo code. Nil fields are
// left unchanged.
type UpdatePromoRequest struct {
	Kind               *string          `json:"kind"`
	Value              *decimal.Decimal `json:"value"`
	MaxDiscount        *decimal.Decimal `json:"max_discount"`
	ClearMaxDiscount   bool             `json:"clear_max_discount"`
	MinPurchase        *decimal.Decimal `json:"min_purchase"`
	ClearMinPurchase   bool             `json:"clear_min_purchase"`
	FreeShipping       *bool            `json:"free_shipping"`
	MaxUses            *int             `json:"max_uses"`
	MaxUsesPerUser     *int             `json:"max_uses_per_user"`
	ValidFrom          *string          `json:"valid_from"`
	ValidTo            *string          `json:"valid_to"`
	Categories         []string         `json:"categories"`
	ExcludedCategories []string         `json:"excluded_categories"`
	ExcludedProducts   []string         `json:"excluded_products"`
	FirstPurchaseOnly  *bool            `json:"first_purchase_only"`
	IsActive           *bool            `json:"is_active"`
}

// PromoStatsDTO summarizes a code's redemption activity.
type PromoStatsDTO struct {
	Code         string `json:"code"`
	CurrentUses  int    `json:"current_uses"`
	MaxUses      int    `json:"max_uses"`
	TotalOrders  int    `json:"total_orders"`
	TotalRevenue string `json:"total_revenue"`
	Status       string `json:"status"`
}

// UsageDTO is the API representation of one redemption record.
type UsageDTO struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	OrderID    uuid.UUID `json:"order_id"`
	Discount   string    `json:"discount"`
	OrderTotal string    `json:"order_total"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	UsedAt     time.Time `json:"used_at"`
}

// AdminService handles promo code administration use cases.
type AdminService struct {
	repo   promoDomain.PromoRepository
	logger *zap.Logger
}

// NewAdminService creates a new AdminService.
func NewAdminService(repo promoDomain.PromoRepository, logger *zap.Logger) *AdminService {
	return &AdminService{repo: repo, logger: logger}
}

// CreatePromo creates a new promo code.
func (s *AdminService) CreatePromo(ctx context.Context, createdBy uuid.UUID, req CreatePromoRequest) (*PromoDTO, error) {
	validFrom, err := time.Parse(time.RFC3339, req.ValidFrom)
	if err != nil {
		return nil, domain.NewValidationError("valid_from", "must be RFC3339")
	}
	validTo, err := time.Parse(time.RFC3339, req.ValidTo)
	if err != nil {
		return nil, domain.NewValidationError("valid_to", "must be RFC3339")
	}

	maxUses := req.MaxUses
	if maxUses == 0 {
		maxUses = promoDomain.UnlimitedUses
	}
	maxUsesPerUser := req.MaxUsesPerUser
	if maxUsesPerUser == 0 {
		maxUsesPerUser = 1
	}

	p, err := promoDomain.NewPromoCode(promoDomain.Attributes{
		Code:               req.Code,
		Kind:               promoDomain.Kind(req.Kind),
		Value:              req.Value,
		MaxDiscount:        req.MaxDiscount,
		MinPurchase:        req.MinPurchase,
		FreeShipping:       req.FreeShipping,
		MaxUses:            maxUses,
		MaxUsesPerUser:     maxUsesPerUser,
		ValidFrom:          validFrom,
		ValidTo:            validTo,
		Categories:         toCategories(req.Categories),
		ExcludedCategories: toCategories(req.ExcludedCategories),
		ExcludedProducts:   toProducts(req.ExcludedProducts),
		FirstPurchaseOnly:  req.FirstPurchaseOnly,
		CreatedBy:          createdBy,
	})
	if err != nil {
		return nil, domain.NewValidationError("promo_code", err.Error())
	}

	if err := s.repo.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save promo code: %w", err)
	}

	s.logger.Info("promo code created",
		zap.String("code", p.Code()),
		zap.String("kind", string(p.Kind())),
		zap.String("created_by", createdBy.String()),
	)
	return toPromoDTO(p), nil
}

// ListPromos returns a page of all codes.
func (s *AdminService) ListPromos(ctx context.Context, page, limit int) ([]*PromoDTO, int64, error) {
	promos, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}
	dtos := make([]*PromoDTO, len(promos))
	for i, p := range promos {
		dtos[i] = toPromoDTO(p)
	}
	return dtos, total, nil
}

// GetPromo returns one code by its code string.
func (s *AdminService) GetPromo(ctx context.Context, code string) (*PromoDTO, error) {
	p, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return toPromoDTO(p), nil
}

// UpdatePromo amends an existing code. The code string and counters are
// immutable.
func (s *AdminService) UpdatePromo(ctx context.Context, code string, req UpdatePromoRequest) (*PromoDTO, error) {
	p, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	amendment := promoDomain.Amendment{
		Value:              req.Value,
		MaxDiscount:        req.MaxDiscount,
		ClearMaxDiscount:   req.ClearMaxDiscount,
		MinPurchase:        req.MinPurchase,
		ClearMinPurchase:   req.ClearMinPurchase,
		FreeShipping:       req.FreeShipping,
		MaxUses:            req.MaxUses,
		MaxUsesPerUser:     req.MaxUsesPerUser,
		FirstPurchaseOnly:  req.FirstPurchaseOnly,
		IsActive:           req.IsActive,
		Categories:         toCategories(req.Categories),
		ExcludedCategories: toCategories(req.ExcludedCategories),
		ExcludedProducts:   toProducts(req.ExcludedProducts),
	}
	if req.Kind != nil {
		k := promoDomain.Kind(*req.Kind)
		amendment.Kind = &k
	}
	if req.ValidFrom != nil {
		t, err := time.Parse(time.RFC3339, *req.ValidFrom)
		if err != nil {
			return nil, domain.NewValidationError("valid_from", "must be RFC3339")
		}
		amendment.ValidFrom = &t
	}
	if req.ValidTo != nil {
		t, err := time.Parse(time.RFC3339, *req.ValidTo)
		if err != nil {
			return nil, domain.NewValidationError("valid_to", "must be RFC3339")
		}
		amendment.ValidTo = &t
	}

	if err := p.Amend(amendment); err != nil {
		return nil, domain.NewValidationError("promo_code", err.Error())
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update promo code: %w", err)
	}

	s.logger.Info("promo code updated", zap.String("code", p.Code()))
	return toPromoDTO(p), nil
}

// DeactivatePromo turns a code off.
func (s *AdminService) DeactivatePromo(ctx context.Context, code string) error {
	p, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return err
	}
	p.Deactivate()
	if err := s.repo.Update(ctx, p); err != nil {
		return fmt.Errorf("deactivate promo code: %w", err)
	}
	s.logger.Info("promo code deactivated", zap.String("code", p.Code()))
	return nil
}

// GetPromoStats summarizes a code's redemption activity.
func (s *AdminService) GetPromoStats(ctx context.Context, code string) (*PromoStatsDTO, error) {
	p, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return &PromoStatsDTO{
		Code:         p.Code(),
		CurrentUses:  p.CurrentUses(),
		MaxUses:      p.MaxUses(),
		TotalOrders:  p.TotalOrders(),
		TotalRevenue: p.TotalRevenue().StringFixed(2),
		Status:       string(p.Status(time.Now().UTC())),
	}, nil
}

// ListUsage returns a page of redemption records for a code, newest first.
func (s *AdminService) ListUsage(ctx context.Context, code string, page, limit int) ([]*UsageDTO, int64, error) {
	p, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, 0, err
	}

	usages, total, err := s.repo.ListUsage(ctx, p.ID(), page, limit)
	if err != nil {
		return nil, 0, err
	}

	dtos := make([]*UsageDTO, len(usages))
	for i, u := range usages {
		dtos[i] = &UsageDTO{
			ID:         u.ID,
			UserID:     u.UserID,
			OrderID:    u.OrderID,
			Discount:   u.Discount.StringFixed(2),
			OrderTotal: u.OrderTotal.StringFixed(2),
			IPAddress:  u.IPAddress,
			UserAgent:  u.UserAgent,
			UsedAt:     u.UsedAt,
		}
	}
	return dtos, total, nil
}

func toCategories(in []string) []promoDomain.Category {
	if in == nil {
		return nil
	}
	out := make([]promoDomain.Category, len(in))
	for i, s := range in {
		out[i] = promoDomain.Category(s)
	}
	return out
}

func toProducts(in []string) []promoDomain.ProductID {
	if in == nil {
		return nil
	}
	out := make([]promoDomain.ProductID, len(in))
	for i, s := range in {
		out[i] = promoDomain.ProductID(s)
	}
	return out
}
