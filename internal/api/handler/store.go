package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/shopmedia/internal/service"
)

// StoreHandler handles store information endpoints.
type StoreHandler struct {
	storeService *service.StoreService
}

// NewStoreHandler creates a new store handler.
func NewStoreHandler(storeService *service.StoreService) *StoreHandler {
	return &StoreHandler{storeService: storeService}
}

// Info handles POST /api/store and returns the shop document as-is.
func (h *StoreHandler) Info(c *gin.Context) {
	var req CredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing accessToken or shop")
		return
	}

	info, err := h.storeService.Info(c.Request.Context(), req.credential())
	if err != nil {
		respondError(c, "Failed to fetch store info", err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// ValidateToken handles POST /api/validate-token. A rejected token is a
// normal answer ({"valid": false}), not an error status.
func (h *StoreHandler) ValidateToken(c *gin.Context) {
	var req CredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Missing shop or accessToken",
			"valid": false,
		})
		return
	}

	valid, info, err := h.storeService.ValidateToken(c.Request.Context(), req.credential())
	switch {
	case err != nil:
		_ = c.Error(err)
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": "Token validation failed"})
	case !valid:
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": "Invalid or expired token"})
	default:
		c.JSON(http.StatusOK, gin.H{"valid": true, "shop": info})
	}
}
