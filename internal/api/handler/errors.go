package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/shopmedia/internal/domain"
	"github.com/timmy/shopmedia/internal/shopify"
)

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidCredential),
		errors.Is(err, domain.ErrInvalidURL),
		errors.Is(err, domain.ErrInvalidImage),
		errors.Is(err, domain.ErrInvalidCategory):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrResourceNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrMissingLocator):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotImplemented):
		return http.StatusNotImplemented
	}
	var upstream *shopify.UpstreamError
	if errors.As(err, &upstream) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": message + err} with the mapped status and
// records err on the gin context for the request logger.
func respondError(c *gin.Context, message string, err error) {
	_ = c.Error(err)
	c.JSON(statusFor(err), gin.H{
		"error": message + ": " + err.Error(),
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": message,
	})
}
