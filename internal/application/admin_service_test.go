package application

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/google/uuid"

	promoDomain "github.com/beleza-commerce/service-promo/internal/domain/promo"
	"github.com/beleza-commerce/service-promo/pkg/domain"
)

func createRequest() CreatePromoRequest {
	return CreatePromoRequest{
		Code:      "LANCAMENTO20",
		Kind:      "percentage",
		Value:     decimal.NewFromInt(20),
		ValidFrom: time.Now().UTC().Add(-time.Hour).Format(time.RFC3339),
		ValidTo:   time.Now().UTC().Add(72 * time.Hour).Format(time.RFC3339),
	}
}

func TestCreatePromo_AppliesDefaults(t *testing.T) {
	repo := newFakePromoRepo()
	svc := NewAdminService(repo, zap.NewNop())

	dto, err := svc.CreatePromo(context.Background(), uuid.New(), createRequest())
	require.NoError(t, err)
	assert.Equal(t, "LANCAMENTO20", dto.Code)
	assert.Equal(t, promoDomain.UnlimitedUses, dto.MaxUses, "zero max_uses means unlimited")
	assert.Equal(t, 1, dto.MaxUsesPerUser)
	assert.Equal(t, "active", dto.Status)
}

func TestCreatePromo_RejectsBadInput(t *testing.T) {
	repo := newFakePromoRepo()
	svc := NewAdminService(repo, zap.NewNop())

	t.Run("bad timestamp", func(t *testing.T) {
		req := createRequest()
		req.ValidFrom = "yesterday"
		_, err := svc.CreatePromo(context.Background(), uuid.New(), req)
		var vErr *domain.ValidationError
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("domain rule violation", func(t *testing.T) {
		req := createRequest()
		req.Value = decimal.NewFromInt(120)
		_, err := svc.CreatePromo(context.Background(), uuid.New(), req)
		var vErr *domain.ValidationError
		require.ErrorAs(t, err, &vErr)
	})
}

func TestCreatePromo_DuplicateCode(t *testing.T) {
	repo := newFakePromoRepo()
	svc := NewAdminService(repo, zap.NewNop())

	_, err := svc.CreatePromo(context.Background(), uuid.New(), createRequest())
	require.NoError(t, err)

	_, err = svc.CreatePromo(context.Background(), uuid.New(), createRequest())
	var cErr *domain.ConflictError
	require.ErrorAs(t, err, &cErr)
}

func TestUpdatePromo_AmendsAndPersists(t *testing.T) {
	repo := newFakePromoRepo()
	seedPromo(t, repo, nil)
	svc := NewAdminService(repo, zap.NewNop())

	newValue := decimal.NewFromInt(15)
	active := false
	dto, err := svc.UpdatePromo(context.Background(), "beleza10", UpdatePromoRequest{
		Value:    &newValue,
		IsActive: &active,
	})
	require.NoError(t, err)
	assert.Equal(t, "15.00", dto.Value)
	assert.False(t, dto.IsActive)
	assert.Equal(t, "inactive", dto.Status)
}

func TestUpdatePromo_RejectsRuleViolation(t *testing.T) {
	repo := newFakePromoRepo()
	seedPromo(t, repo, nil)
	svc := NewAdminService(repo, zap.NewNop())

	bad := decimal.NewFromInt(-5)
	_, err := svc.UpdatePromo(context.Background(), "BELEZA10", UpdatePromoRequest{Value: &bad})
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestUpdatePromo_UnknownCode(t *testing.T) {
	repo := newFakePromoRepo()
	svc := NewAdminService(repo, zap.NewNop())

	_, err := svc.UpdatePromo(context.Background(), "MISSING", UpdatePromoRequest{})
	var nfErr *domain.NotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestDeactivatePromo(t *testing.T) {
	repo := newFakePromoRepo()
	p := seedPromo(t, repo, nil)
	svc := NewAdminService(repo, zap.NewNop())

	require.NoError(t, svc.DeactivatePromo(context.Background(), "BELEZA10"))
	assert.False(t, p.IsActive())
}

func TestGetPromoStats(t *testing.T) {
	repo := newFakePromoRepo()
	seedPromo(t, repo, func(a *promoDomain.Attributes) {
		a.MaxUses = 100
	})
	p, err := repo.FindByCode(context.Background(), "BELEZA10")
	require.NoError(t, err)
	p.RegisterRedemption(decimal.RequireFromString("99.90"))

	svc := NewAdminService(repo, zap.NewNop())

	stats, err := svc.GetPromoStats(context.Background(), "BELEZA10")
	require.NoError(t, err)
	assert.Equal(t, "BELEZA10", stats.Code)
	assert.Equal(t, 1, stats.CurrentUses)
	assert.Equal(t, 100, stats.MaxUses)
	assert.Equal(t, 1, stats.TotalOrders)
	assert.Equal(t, "99.90", stats.TotalRevenue)
	assert.Equal(t, "active", stats.Status)
}

func TestListUsage_ReturnsRecordsForCode(t *testing.T) {
	repo := newFakePromoRepo()
	p := seedPromo(t, repo, nil)
	require.NoError(t, repo.RecordRedemption(context.Background(), &promoDomain.Usage{
		ID:         uuid.New(),
		PromoID:    p.ID(),
		UserID:     uuid.New(),
		OrderID:    uuid.New(),
		Discount:   decimal.RequireFromString("4.00"),
		OrderTotal: decimal.RequireFromString("40.00"),
		UsedAt:     time.Now().UTC(),
	}))

	svc := NewAdminService(repo, zap.NewNop())

	usages, total, err := svc.ListUsage(context.Background(), "BELEZA10", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, usages, 1)
	assert.Equal(t, "4.00", usages[0].Discount)
}
