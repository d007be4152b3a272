package pricing

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rapidcare/billing-api/internal/model"
	"github.com/rapidcare/billing-api/internal/service/pricing"
	apperrors "github.com/rapidcare/billing-api/pkg/errors"
	"github.com/rapidcare/billing-api/pkg/httputil"
)

type Handler struct {
	service *pricing.Service
}

func NewHandler(service *pricing.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) UpsertPricing(c *gin.Context) {
	var req model.UpsertPricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.InvalidInput(err.Error(), err))
		return
	}

	created, err := h.service.UpsertPricing(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, created)
}

func (h *Handler) GetRate(c *gin.Context) {
	hospitalID, err := uuid.Parse(c.Param("hospitalID"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidInput("invalid hospital ID", err))
		return
	}

	rate, err := h.service.ResolveRate(c.Request.Context(), hospitalID, model.ResourceType(c.Param("resourceType")))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, rate)
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	routes := r.Group("/pricing")
	{
		routes.POST("", h.UpsertPricing)
		routes.GET("/:hospitalID/:resourceType", h.GetRate)
	}
}
