package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/shopmedia/internal/domain"
	"github.com/timmy/shopmedia/internal/service"
)

// CredentialRequest identifies the store a request acts on.
type CredentialRequest struct {
	Shop        string `json:"shop" form:"shop" binding:"required"`
	AccessToken string `json:"accessToken" form:"accessToken" binding:"required"`
}

func (r CredentialRequest) credential() domain.Credential {
	return domain.Credential{Shop: r.Shop, AccessToken: r.AccessToken}
}

// AnalyzeRequest is the body of POST /api/media/analyze.
type AnalyzeRequest struct {
	CredentialRequest
	Images []domain.ImageRecord `json:"images" binding:"required"`
}

// OptimizeRequest is the body of POST /api/media/optimize.
type OptimizeRequest struct {
	Images []service.AnalyzedImage `json:"images" binding:"required"`
}

// MediaHandler handles media listing, analysis and replacement endpoints.
type MediaHandler struct {
	mediaService   *service.MediaService
	analyzeService *service.AnalyzeService
	replaceService *service.ReplaceService
	maxUpload      int64
}

// NewMediaHandler creates a new media handler.
// Parameters:
//   - mediaService: aggregates images across sources.
//   - analyzeService: measures downloaded images.
//   - replaceService: swaps an image in its owning resource.
//   - maxUpload: largest accepted replacement file in bytes.
// Returns:
//   - *MediaHandler: initialized handler.
func NewMediaHandler(
	mediaService *service.MediaService,
	analyzeService *service.AnalyzeService,
	replaceService *service.ReplaceService,
	maxUpload int64,
) *MediaHandler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &MediaHandler{
		mediaService:   mediaService,
		analyzeService: analyzeService,
		replaceService: replaceService,
		maxUpload:      maxUpload,
	}
}

// Aggregate handles POST /api/media and /api/media/fetch.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *MediaHandler) Aggregate(c *gin.Context) {
	var req CredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing accessToken or shop")
		return
	}

	result, err := h.mediaService.Aggregate(c.Request.Context(), req.credential())
	if err != nil {
		respondError(c, "Failed to fetch media", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"images":  result.Images,
		"skipped": result.Skipped,
		"stats":   result.Stats,
	})
}

// Analyze handles POST /api/media/analyze.
// Images that cannot be downloaded come back with zero size; the request
// itself only fails on bad input.
func (h *MediaHandler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing accessToken, shop, or images")
		return
	}

	analyzed := h.analyzeService.Analyze(c.Request.Context(), req.Images)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"images":  analyzed,
	})
}

// Optimize handles POST /api/media/optimize.
func (h *MediaHandler) Optimize(c *gin.Context) {
	var req OptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	report := service.Optimize(req.Images)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"images":  report.Images,
		"summary": report.Summary,
	})
}

// Replace handles POST /api/media/replace (multipart/form-data).
// Form fields: shop, accessToken, originalUrl, category, alt, the side data
// identifiers, and the new image as "image".
func (h *MediaHandler) Replace(c *gin.Context) {
	var cred CredentialRequest
	if err := c.ShouldBind(&cred); err != nil {
		badRequest(c, "Missing required fields: accessToken, shop, originalUrl, or image file")
		return
	}
	originalURL := c.PostForm("originalUrl")
	if originalURL == "" {
		badRequest(c, "Missing required fields: accessToken, shop, originalUrl, or image file")
		return
	}

	var category domain.Category
	if raw := c.PostForm("category"); raw != "" {
		parsed, err := domain.ParseCategory(raw)
		if err != nil {
			respondError(c, "Invalid category", err)
			return
		}
		category = parsed
	}

	var side domain.SideData
	if err := c.ShouldBind(&side); err != nil {
		badRequest(c, "Invalid side data: "+err.Error())
		return
	}

	data, problem := h.readImage(c)
	if problem != "" {
		badRequest(c, problem)
		return
	}

	result, err := h.replaceService.ResolveAndReplace(c.Request.Context(), service.ReplaceRequest{
		Credential:  cred.credential(),
		OriginalURL: originalURL,
		Category:    category,
		Side:        side,
		Image:       data,
		Alt:         c.PostForm("alt"),
	})
	if err != nil {
		respondError(c, "Failed to replace image", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"newUrl":       result.NewURL,
		"resourceId":   result.ResourceID,
		"imageType":    result.ImageType,
		"size":         result.Size,
		"originalSize": len(data),
		"width":        result.Width,
		"height":       result.Height,
		"optimized":    false,
		"savings":      0,
		"backupKey":    result.BackupKey,
		"backupUrl":    result.BackupURL,
		"message":      fmt.Sprintf("%s image replaced successfully", result.ImageType),
	})
}

// readImage returns the uploaded file, or a client-facing message when it
// is missing or too large.
func (h *MediaHandler) readImage(c *gin.Context) ([]byte, string) {
	const missing = "Missing required fields: accessToken, shop, originalUrl, or image file"
	tooLarge := fmt.Sprintf("Image exceeds the %d MB upload limit", h.maxUpload>>20)

	header, err := c.FormFile("image")
	if err != nil {
		return nil, missing
	}
	if header.Size > h.maxUpload {
		return nil, tooLarge
	}
	f, err := header.Open()
	if err != nil {
		return nil, "Failed to read image: " + err.Error()
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
	if err != nil {
		return nil, "Failed to read image: " + err.Error()
	}
	if int64(len(data)) > h.maxUpload {
		return nil, tooLarge
	}
	return data, ""
}
