package reconciliation

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rapidcare/billing-api/internal/service/reconciliation"
	apperrors "github.com/rapidcare/billing-api/pkg/errors"
	"github.com/rapidcare/billing-api/pkg/httputil"
)

type Handler struct {
	service *reconciliation.Service
}

func NewHandler(service *reconciliation.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) ReconcileAccount(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("accountID"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidInput("invalid account ID", err))
		return
	}

	report, err := h.service.Reconcile(c.Request.Context(), accountID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, report)
}

func (h *Handler) ReconcileAll(c *gin.Context) {
	reports, err := h.service.ReconcileAll(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, reports)
}

func (h *Handler) VerifyLedger(c *gin.Context) {
	if err := h.service.VerifyLedger(c.Request.Context()); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, gin.H{"balanced": true})
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	routes := r.Group("/reconciliation")
	{
		routes.POST("", h.ReconcileAll)
		routes.POST("/:accountID", h.ReconcileAccount)
		routes.GET("/ledger", h.VerifyLedger)
	}
}
