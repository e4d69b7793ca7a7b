package api

import (
	"github.com/gin-gonic/gin"

	"github.com/timmy/shopmedia/internal/api/handler"
	"github.com/timmy/shopmedia/internal/api/middleware"
	"github.com/timmy/shopmedia/internal/config"
	"github.com/timmy/shopmedia/internal/logger"
	"github.com/timmy/shopmedia/internal/service"
)

// Services bundles what the handlers call into.
type Services struct {
	Media   *service.MediaService
	Analyze *service.AnalyzeService
	Replace *service.ReplaceService
	Store   *service.StoreService
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(svc Services, cfg *config.Config, log *logger.Logger) *gin.Engine {
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	maxUpload := int64(cfg.Server.MaxUploadMB) << 20

	r := gin.New()
	r.MaxMultipartMemory = maxUpload

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	}))

	healthHandler := handler.NewHealthHandler(cfg.Server.Environment, cfg.Shopify.APIKey)
	mediaHandler := handler.NewMediaHandler(svc.Media, svc.Analyze, svc.Replace, maxUpload)
	storeHandler := handler.NewStoreHandler(svc.Store)

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")
	{
		api.GET("/health", healthHandler.Health)
		api.GET("/config", healthHandler.Config)

		// Media
		api.POST("/media", mediaHandler.Aggregate)
		api.POST("/media/fetch", mediaHandler.Aggregate)
		api.POST("/media/analyze", mediaHandler.Analyze)
		api.POST("/media/optimize", mediaHandler.Optimize)
		api.POST("/media/replace", mediaHandler.Replace)

		// Store
		api.POST("/store", storeHandler.Info)
		api.POST("/validate-token", storeHandler.ValidateToken)
	}

	return r
}
