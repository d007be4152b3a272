package booking

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rapidcare/billing-api/internal/model"
	"github.com/rapidcare/billing-api/internal/service/booking"
	apperrors "github.com/rapidcare/billing-api/pkg/errors"
	"github.com/rapidcare/billing-api/pkg/httputil"
)

type Handler struct {
	service *booking.Service
}

func NewHandler(service *booking.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) CreateBooking(c *gin.Context) {
	var req model.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.InvalidInput(err.Error(), err))
		return
	}

	created, err := h.service.CreateBooking(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, created)
}

func (h *Handler) GetBooking(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidInput("invalid booking ID", err))
		return
	}

	found, err := h.service.GetBooking(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, found)
}

func (h *Handler) ListBookings(c *gin.Context) {
	filters := &model.BookingFilters{}

	if id := c.Query("hospital_id"); id != "" {
		hospitalID, err := uuid.Parse(id)
		if err != nil {
			httputil.RespondWithError(c, apperrors.InvalidInput("invalid hospital ID", err))
			return
		}
		filters.HospitalID = hospitalID
	}

	if id := c.Query("user_id"); id != "" {
		userID, err := uuid.Parse(id)
		if err != nil {
			httputil.RespondWithError(c, apperrors.InvalidInput("invalid user ID", err))
			return
		}
		filters.UserID = userID
	}

	if status := c.Query("status"); status != "" {
		filters.Status = model.BookingStatus(status)
	}

	bookings, err := h.service.ListBookings(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, bookings)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidInput("invalid booking ID", err))
		return
	}

	var req model.UpdateBookingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.InvalidInput(err.Error(), err))
		return
	}

	updated, err := h.service.UpdateStatus(c.Request.Context(), id, model.BookingStatus(req.Status))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, updated)
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	bookings := r.Group("/bookings")
	{
		bookings.POST("", h.CreateBooking)
		bookings.GET("", h.ListBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.PATCH("/:id/status", h.UpdateStatus)
	}
}
