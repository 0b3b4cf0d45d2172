package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	promoDomain "github.com/beleza-commerce/service-promo/internal/domain/promo"
	"github.com/beleza-commerce/service-promo/pkg/domain"
)

// CartItemDTO is one cart line in a validation request.
type CartItemDTO struct {
	ProductID string          `json:"product_id" binding:"required"`
	Category  string          `json:"category"`
	Quantity  int             `json:"quantity" binding:"required,gt=0"`
	Price     decimal.Decimal `json:"price"`
}

// ValidatePromoRequest holds data to validate a promo code against a cart.
type ValidatePromoRequest struct {
	Code         string          `json:"code" binding:"required"`
	CartSubtotal decimal.Decimal `json:"cart_subtotal"`
	CartItems    []CartItemDTO   `json:"cart_items"`
}

// PromoValidationDTO is the result of validating a promo code.
type PromoValidationDTO struct {
	Valid        bool       `json:"valid"`
	Code         string     `json:"code"`
	Discount     string     `json:"discount"`
	FreeShipping bool       `json:"free_shipping"`
	Message      string     `json:"message"`
	PromoCodeID  *uuid.UUID `json:"promo_code_id,omitempty"`
}

// PromoDTO is the API representation of a promo code.
type PromoDTO struct {
	ID                 uuid.UUID  `json:"id"`
	Code               string     `json:"code"`
	Kind               string     `json:"kind"`
	Value              string     `json:"value"`
	MaxDiscount        *string    `json:"max_discount,omitempty"`
	MinPurchase        *string    `json:"min_purchase,omitempty"`
	FreeShipping       bool       `json:"free_shipping"`
	MaxUses            int        `json:"max_uses"`
	MaxUsesPerUser     int        `json:"max_uses_per_user"`
	ValidFrom          time.Time  `json:"valid_from"`
	ValidTo            time.Time  `json:"valid_to"`
	Categories         []string   `json:"categories,omitempty"`
	ExcludedCategories []string   `json:"excluded_categories,omitempty"`
	ExcludedProducts   []string   `json:"excluded_products,omitempty"`
	FirstPurchaseOnly  bool       `json:"first_purchase_only"`
	CurrentUses        int        `json:"current_uses"`
	Status             string     `json:"status"`
	IsActive           bool       `json:"is_active"`
	CreatedAt          time.Time  `json:"created_at"`
}

// PromoService handles storefront promo code use cases.
type PromoService struct {
	repo   promoDomain.PromoRepository
	orders promoDomain.OrderHistory
	logger *zap.Logger
}

// NewPromoService creates a new PromoService.
func NewPromoService(repo promoDomain.PromoRepository, orders promoDomain.OrderHistory, logger *zap.Logger) *PromoService {
	return &PromoService{repo: repo, orders: orders, logger: logger}
}

// ValidatePromo decides whether the code may be redeemed for this user and
// cart, and computes the discount. It mutates nothing: counters move only
// when the order is confirmed.
func (s *PromoService) ValidatePromo(ctx context.Context, userID uuid.UUID, req ValidatePromoRequest) (*PromoValidationDTO, error) {
	code := promoDomain.CanonicalCode(req.Code)

	p, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return &PromoValidationDTO{
				Valid:    false,
				Code:     code,
				Discount: "0.00",
				Message:  "invalid promo code",
			}, nil
		}
		return nil, err
	}

	usageCount, err := s.repo.CountUsage(ctx, p.ID(), userID)
	if err != nil {
		return nil, err
	}

	var orderCount int64
	if p.FirstPurchaseOnly() {
		orderCount, err = s.orders.CountConfirmedOrders(ctx, userID)
		if err != nil {
			return nil, err
		}
	}

	cart := toCartSnapshot(req)
	eval := p.Evaluate(cart, usageCount, orderCount, time.Now().UTC())

	dto := &PromoValidationDTO{
		Valid:        eval.Valid,
		Code:         p.Code(),
		Discount:     eval.Discount.StringFixed(2),
		FreeShipping: eval.FreeShipping,
		Message:      eval.Message,
	}
	if eval.Valid {
		id := p.ID()
		dto.PromoCodeID = &id
		s.logger.Info("promo code validated",
			zap.String("code", p.Code()),
			zap.String("user_id", userID.String()),
			zap.String("discount", dto.Discount),
		)
	}
	return dto, nil
}

// GetActivePromos returns codes currently redeemable, for storefront display.
func (s *PromoService) GetActivePromos(ctx context.Context) ([]*PromoDTO, error) {
	promos, err := s.repo.FindActive(ctx, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	dtos := make([]*PromoDTO, len(promos))
	for i, p := range promos {
		dtos[i] = toPromoDTO(p)
	}
	return dtos, nil
}

func toCartSnapshot(req ValidatePromoRequest) promoDomain.CartSnapshot {
	items := make([]promoDomain.CartItem, len(req.CartItems))
	for i, it := range req.CartItems {
		items[i] = promoDomain.CartItem{
			ProductID: promoDomain.NormalizeProductID(it.ProductID),
			Category:  promoDomain.NormalizeCategory(it.Category),
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
		}
	}
	return promoDomain.CartSnapshot{
		Subtotal: req.CartSubtotal,
		Items:    items,
	}
}

func toPromoDTO(p *promoDomain.PromoCode) *PromoDTO {
	dto := &PromoDTO{
		ID:                p.ID(),
		Code:              p.Code(),
		Kind:              string(p.Kind()),
		Value:             p.Value().StringFixed(2),
		FreeShipping:      p.FreeShipping(),
		MaxUses:           p.MaxUses(),
		MaxUsesPerUser:    p.MaxUsesPerUser(),
		ValidFrom:         p.ValidFrom(),
		ValidTo:           p.ValidTo(),
		FirstPurchaseOnly: p.FirstPurchaseOnly(),
		CurrentUses:       p.CurrentUses(),
		Status:            string(p.Status(time.Now().UTC())),
		IsActive:          p.IsActive(),
		CreatedAt:         p.CreatedAt(),
	}
	if md := p.MaxDiscount(); md != nil {
		s := md.StringFixed(2)
		dto.MaxDiscount = &s
	}
	if mp := p.MinPurchase(); mp != nil {
		s := mp.StringFixed(2)
		dto.MinPurchase = &s
	}
	for _, c := range p.Categories() {
		dto.Categories = append(dto.Categories, string(c))
	}
	for _, c := range p.ExcludedCategories() {
		dto.ExcludedCategories = append(dto.ExcludedCategories, string(c))
	}
	for _, pr := range p.ExcludedProducts() {
		dto.ExcludedProducts = append(dto.ExcludedProducts, string(pr))
	}
	return dto
}
