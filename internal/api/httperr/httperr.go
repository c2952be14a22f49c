package httperr

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/askdesk/internal/domain"
)

// Status maps a service error to an HTTP status code
func Status(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsValidation(err),
		errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrNoTextExtracted):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Write responds with the mapped status and an error body
func Write(c *gin.Context, err error) {
	c.JSON(Status(err), gin.H{"error": err.Error()})
}
