package handler

import (
	"net/http"
	"strconv"

	"github.com/ccc-cruise/service-promo/internal/application"
	"github.com/ccc-cruise/service-promo/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler exposes the administrative promo surface.
type AdminHandler struct {
	service *application.AdminService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service *application.AdminService) *AdminHandler {
	return &AdminHandler{service: service}
}

// RegisterRoutes registers admin routes behind the admin JWT gate.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	admin := r.Group("/admin/promos")
	admin.Use(auth.RequireAdmin(jwtManager))
	{
		admin.POST("/generate", h.Generate)
		admin.PATCH("/:id/status", h.SetStatus)
		admin.GET("", h.List)
		admin.GET("/stats", h.Stats)
	}
}

// Generate handles POST /api/v1/admin/promos/generate.
func (h *AdminHandler) Generate(c *gin.Context) {
	var req application.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	codes, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"count": len(codes), "codes": codes})
}

// setStatusRequest is the payload for PATCH /admin/promos/:id/status.
type setStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active archived"`
}

// SetStatus handles PATCH /api/v1/admin/promos/:id/status.
func (h *AdminHandler) SetStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "invalid promo code id")
		return
	}

	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	if err := h.service.SetStatus(c.Request.Context(), id, req.Status); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}

// List handles GET /api/v1/admin/promos.
func (h *AdminHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}

	codes, total, err := h.service.List(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  codes,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// Stats handles GET /api/v1/admin/promos/stats.
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
