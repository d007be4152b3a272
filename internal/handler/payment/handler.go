package payment

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rapidcare/billing-api/internal/model"
	"github.com/rapidcare/billing-api/internal/service/billing"
	apperrors "github.com/rapidcare/billing-api/pkg/errors"
	"github.com/rapidcare/billing-api/pkg/httputil"
)

type Handler struct {
	service *billing.Service
}

func NewHandler(service *billing.Service) *Handler {
	return &Handler{service: service}
}

// SubmitPayment applies a confirmed payment to the ledger. Authorization is
// assumed to have happened upstream; the amount must match the booking total.
func (h *Handler) SubmitPayment(c *gin.Context) {
	var req model.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.InvalidInput(err.Error(), err))
		return
	}

	result, err := h.service.ApplyPayment(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, result)
}

func (h *Handler) RefundPayment(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("bookingID"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidInput("invalid booking ID", err))
		return
	}

	result, err := h.service.Refund(c.Request.Context(), bookingID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, result)
}

func (h *Handler) GetPayment(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("bookingID"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidInput("invalid booking ID", err))
		return
	}

	payment, err := h.service.GetPayment(c.Request.Context(), bookingID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, payment)
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	payments := r.Group("/payments")
	{
		payments.POST("", h.SubmitPayment)
		payments.GET("/:bookingID", h.GetPayment)
		payments.POST("/:bookingID/refund", h.RefundPayment)
	}
}
