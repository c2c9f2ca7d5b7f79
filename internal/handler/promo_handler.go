package handler

import (
	"net/http"

	"github.com/ccc-cruise/service-promo/internal/application"
	"github.com/gin-gonic/gin"
)

// PromoHandler exposes the reservation engine to the booking flow.
type PromoHandler struct {
	service *application.ReservationService
}

// NewPromoHandler creates a new PromoHandler.
func NewPromoHandler(service *application.ReservationService) *PromoHandler {
	return &PromoHandler{service: service}
}

// RegisterRoutes registers the booking-flow promo routes.
func (h *PromoHandler) RegisterRoutes(r *gin.RouterGroup) {
	promos := r.Group("/promos")
	{
		promos.POST("/validate", h.Validate)
		promos.POST("/apply", h.Apply)
		promos.POST("/remove", h.Remove)
	}
}

// validateRequest is the payload for POST /promos/validate.
type validateRequest struct {
	Codes []string `json:"codes" binding:"required"`
}

// Validate handles POST /api/v1/promos/validate. Classification failures
// are per-item results, not errors: partial success is the common case.
func (h *PromoHandler) Validate(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, application.ValidateBatch(req.Codes))
}

// applyRequest is the payload for POST /promos/apply.
type applyRequest struct {
	BookingRef  string `json:"booking_ref" binding:"required"`
	TravelerIdx *int   `json:"traveler_idx" binding:"required"`
	Code        string `json:"code" binding:"required"`
	Category    string `json:"category" binding:"required"`
}

// Apply handles POST /api/v1/promos/apply.
func (h *PromoHandler) Apply(c *gin.Context) {
	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	if err := h.service.Apply(c.Request.Context(), req.Code, req.BookingRef, *req.TravelerIdx, req.Category); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"applied": true})
}

// removeRequest is the payload for POST /promos/remove.
type removeRequest struct {
	BookingRef  string `json:"booking_ref" binding:"required"`
	TravelerIdx *int   `json:"traveler_idx" binding:"required"`
}

// Remove handles POST /api/v1/promos/remove.
func (h *PromoHandler) Remove(c *gin.Context) {
	var req removeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	if err := h.service.Remove(c.Request.Context(), req.BookingRef, *req.TravelerIdx); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": true})
}
