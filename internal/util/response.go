package util

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"commentengine/internal/apperr"
)

// SuccessResponse sends a standard success envelope
func SuccessResponse(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"message": message,
		"data":    data,
	})
}

// ErrorResponse sends a standard error envelope
func ErrorResponse(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{
		"success": false,
		"message": message,
		"data":    data,
	})
}

// BadRequest sends a 400 error response
func BadRequest(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusBadRequest, message, nil)
}

// Unauthorized sends a 401 error response
func Unauthorized(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusUnauthorized, message, nil)
}

// Forbidden sends a 403 error response
func Forbidden(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusForbidden, message, nil)
}

// NotFound sends a 404 error response
func NotFound(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusNotFound, message, nil)
}

// FromError maps a service error to the matching HTTP response. Forbidden
// deliberately reuses the not-found wording so authorization failures do not
// reveal whether the target exists.
func FromError(c *gin.Context, err error) {
	switch {
	case apperr.Is(err, apperr.ErrValidation):
		BadRequest(c, err.Error())
	case apperr.Is(err, apperr.ErrUnauthorized):
		Unauthorized(c, "authentication required")
	case apperr.Is(err, apperr.ErrForbidden), apperr.Is(err, apperr.ErrNotFound):
		NotFound(c, "resource not found")
	case apperr.Is(err, apperr.ErrDuplicateReport):
		ErrorResponse(c, http.StatusConflict, "you already have an open report on this comment", nil)
	case apperr.Is(err, apperr.ErrInvalidTarget):
		BadRequest(c, "comment cannot be reported")
	case apperr.Is(err, apperr.ErrDepthExceeded):
		BadRequest(c, "maximum reply depth reached")
	case apperr.Is(err, apperr.ErrConflict):
		ErrorResponse(c, http.StatusConflict, "the resource was modified concurrently, please retry", nil)
	default:
		ErrorResponse(c, http.StatusInternalServerError, "internal error", nil)
	}
}
