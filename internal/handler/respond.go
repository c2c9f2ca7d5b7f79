package handler

import (
	"net/http"

	"github.com/ccc-cruise/service-promo/internal/domain"
	"github.com/gin-gonic/gin"
)

// Error codes exposed to the booking flow. CAPACITY_EXHAUSTED is kept
// distinct from CONFLICT so the UI can message it specifically.
const (
	codeInvalidPayload    = "INVALID_PAYLOAD"
	codeNotFound          = "NOT_FOUND"
	codeConflict          = "CONFLICT"
	codeCapacityExhausted = "CAPACITY_EXHAUSTED"
	codeInternal          = "INTERNAL"
)

// respondError maps a domain error kind to its HTTP status and error code.
func respondError(c *gin.Context, err error) {
	switch domain.KindOf(err) {
	case domain.KindInvalidInput:
		c.JSON(http.StatusBadRequest, gin.H{"code": codeInvalidPayload, "error": err.Error()})
	case domain.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"code": codeNotFound, "error": err.Error()})
	case domain.KindConflict, domain.KindInvalidState:
		c.JSON(http.StatusConflict, gin.H{"code": codeConflict, "error": err.Error()})
	case domain.KindCapacityExhausted:
		c.JSON(http.StatusConflict, gin.H{"code": codeCapacityExhausted, "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"code": codeInternal, "error": "internal server error"})
	}
}

// respondBadRequest reports a binding failure.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"code": codeInvalidPayload, "error": message})
}
