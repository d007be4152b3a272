package account

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rapidcare/billing-api/internal/repository"
	apperrors "github.com/rapidcare/billing-api/pkg/errors"
	"github.com/rapidcare/billing-api/pkg/httputil"
)

// Handler serves the read-only revenue dashboard endpoints for hospital
// authorities and the platform admin.
type Handler struct {
	ledgerRepo repository.LedgerRepository
}

func NewHandler(ledgerRepo repository.LedgerRepository) *Handler {
	return &Handler{ledgerRepo: ledgerRepo}
}

func (h *Handler) GetBalance(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidInput("invalid account ID", err))
		return
	}

	balance, err := h.ledgerRepo.GetBalance(c.Request.Context(), accountID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, balance)
}

func (h *Handler) ListTransactions(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidInput("invalid account ID", err))
		return
	}

	transactions, err := h.ledgerRepo.ListTransactions(c.Request.Context(), accountID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, transactions)
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	accounts := r.Group("/accounts")
	{
		accounts.GET("/:id/balance", h.GetBalance)
		accounts.GET("/:id/transactions", h.ListTransactions)
	}
}
