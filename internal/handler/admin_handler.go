package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/beleza-commerce/service-promo/internal/application"
	"github.com/beleza-commerce/service-promo/pkg/auth"
	"github.com/beleza-commerce/service-promo/pkg/middleware"
	"github.com/beleza-commerce/service-promo/pkg/response"
)

// AdminPromoHandler handles admin HTTP requests for promo code management.
type AdminPromoHandler struct {
	service *application.AdminService
}

// NewAdminPromoHandler creates a new AdminPromoHandler.
func NewAdminPromoHandler(service *application.AdminService) *AdminPromoHandler {
	return &AdminPromoHandler{service: service}
}

// RegisterRoutes registers admin promo routes.
func (h *AdminPromoHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/admin/promos")
	admin.Use(authMW, adminRole)
	{
		admin.POST("", h.CreatePromo)
		admin.GET("", h.ListPromos)
		admin.GET("/:code", h.GetPromo)
		admin.PATCH("/:code", h.UpdatePromo)
		admin.DELETE("/:code", h.DeactivatePromo)
		admin.GET("/:code/stats", h.PromoStats)
		admin.GET("/:code/usage", h.ListUsage)
	}
}

// CreatePromo handles POST /api/v1/admin/promos.
func (h *AdminPromoHandler) CreatePromo(c *gin.Context) {
	adminID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.CreatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.CreatePromo(c.Request.Context(), adminID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto)
}

// ListPromos handles GET /api/v1/admin/promos.
func (h *AdminPromoHandler) ListPromos(c *gin.Context) {
	page, limit := pagination(c)

	promos, total, err := h.service.ListPromos(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, promos, total, page, limit)
}

// GetPromo handles GET /api/v1/admin/promos/:code.
func (h *AdminPromoHandler) GetPromo(c *gin.Context) {
	dto, err := h.service.GetPromo(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// UpdatePromo handles PATCH /api/v1/admin/promos/:code.
func (h *AdminPromoHandler) UpdatePromo(c *gin.Context) {
	var req application.UpdatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.UpdatePromo(c.Request.Context(), c.Param("code"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// DeactivatePromo handles DELETE /api/v1/admin/promos/:code.
func (h *AdminPromoHandler) DeactivatePromo(c *gin.Context) {
	if err := h.service.DeactivatePromo(c.Request.Context(), c.Param("code")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"deactivated": true})
}

// PromoStats handles GET /api/v1/admin/promos/:code/stats.
func (h *AdminPromoHandler) PromoStats(c *gin.Context) {
	stats, err := h.service.GetPromoStats(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// ListUsage handles GET /api/v1/admin/promos/:code/usage.
func (h *AdminPromoHandler) ListUsage(c *gin.Context) {
	page, limit := pagination(c)

	usages, total, err := h.service.ListUsage(c.Request.Context(), c.Param("code"), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, usages, total, page, limit)
}

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
