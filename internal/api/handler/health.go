package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	environment string
	apiKey      string
}

// NewHealthHandler creates a new health handler.
// Parameters:
//   - environment: deployment environment reported to probes.
//   - apiKey: public app key; only its presence is reported by Health.
// Returns:
//   - *HealthHandler: initialized handler.
func NewHealthHandler(environment, apiKey string) *HealthHandler {
	return &HealthHandler{environment: environment, apiKey: apiKey}
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	keyState := "missing"
	if h.apiKey != "" {
		keyState = "configured"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"environment":     h.environment,
		"shopify_api_key": keyState,
	})
}

// Config handles GET /api/config. The app key is public; the secret never leaves the server.
func (h *HealthHandler) Config(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"apiKey": h.apiKey,
	})
}
