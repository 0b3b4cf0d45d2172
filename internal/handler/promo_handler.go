package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/beleza-commerce/service-promo/internal/application"
	"github.com/beleza-commerce/service-promo/pkg/auth"
	"github.com/beleza-commerce/service-promo/pkg/middleware"
	"github.com/beleza-commerce/service-promo/pkg/response"
)

// PromoHandler handles storefront HTTP requests for promo codes.
type PromoHandler struct {
	service *application.PromoService
}

// NewPromoHandler creates a new PromoHandler.
func NewPromoHandler(service *application.PromoService) *PromoHandler {
	return &PromoHandler{service: service}
}

// RegisterRoutes registers storefront promo routes on the given router group.
func (h *PromoHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	promos := r.Group("/promos")
	promos.Use(middleware.AuthMiddleware(jwtManager))
	{
		promos.POST("/validate", h.ValidatePromo)
		promos.GET("/active", h.ListActivePromos)
	}
}

// ValidatePromo handles POST /api/v1/promos/validate
func (h *PromoHandler) ValidatePromo(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.ValidatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.ValidatePromo(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// ListActivePromos handles GET /api/v1/promos/active
func (h *PromoHandler) ListActivePromos(c *gin.Context) {
	promos, err := h.service.GetActivePromos(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, promos)
}
