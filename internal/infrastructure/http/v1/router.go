// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"grnflow/internal/core/appcontext"
	"grnflow/internal/domain/grn"
	"grnflow/internal/domain/sap"
	"grnflow/internal/infrastructure/http/v1/handlers"
	"grnflow/internal/infrastructure/http/v1/middleware"
	"grnflow/internal/infrastructure/storage/postgres"
	"grnflow/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Pool is the database connection pool (for health checks).
	Pool *postgres.Pool

	// Logger for request logging.
	Logger *logger.Logger

	// JWTValidator for token validation.
	JWTValidator middleware.JWTValidator

	// GRNService drives the batch workflow.
	GRNService *grn.Service

	// Query serves ERP reference-data lookups.
	Query sap.QueryFacade
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	baseHandler := handlers.NewBaseHandler()
	batchHandler := handlers.NewBatchHandler(baseHandler, cfg.GRNService)
	lineHandler := handlers.NewLineHandler(baseHandler, cfg.GRNService)
	lookupHandler := handlers.NewLookupHandler(baseHandler, cfg.Query)

	// API v1 - everything behind JWT auth
	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTValidator))
	{
		// ERP reference-data lookups backing the creation wizard
		lookups := api.Group("/lookups")
		{
			lookups.GET("/business-partners", lookupHandler.BusinessPartners)
			lookups.GET("/series", lookupHandler.DocumentSeries)
			lookups.GET("/series/:seriesId/card-codes", lookupHandler.CardCodes)
			lookups.GET("/open-pos", lookupHandler.OpenPOs)
			lookups.GET("/open-lines", lookupHandler.OpenLines)
			lookups.GET("/items/:code", lookupHandler.ValidateItem)
		}

		// Batch workflow. Ownership and role checks live in the domain
		// service; the permission gate here mirrors the front door.
		batches := api.Group("/batches")
		{
			batches.POST("", middleware.RequirePermission(appcontext.PermMultipleGRN), batchHandler.Create)
			batches.GET("", batchHandler.List)
			batches.GET("/:id", batchHandler.Get)
			batches.DELETE("/:id", batchHandler.Delete)

			batches.POST("/:id/purchase-orders", batchHandler.SelectPOs)
			batches.POST("/:id/submit", batchHandler.Submit)
			batches.POST("/:id/qc-approve", batchHandler.Approve)
			batches.POST("/:id/qc-reject", batchHandler.Reject)
			batches.POST("/:id/reset", batchHandler.Reset)
			batches.POST("/:id/post", batchHandler.Post)
			batches.POST("/:id/retry", batchHandler.Retry)
		}

		// QC review queue
		qc := api.Group("/qc")
		qc.Use(middleware.RequireRole(appcontext.RoleQC, appcontext.RoleAdmin))
		{
			qc.GET("/pending", batchHandler.PendingQC)
		}

		// PO links and line selections
		poLinks := api.Group("/po-links")
		{
			poLinks.POST("/:id/lines", lineHandler.SelectLines)
			poLinks.POST("/:id/manual-items", lineHandler.AddManualItem)
		}

		lines := api.Group("/lines")
		{
			lines.PATCH("/:id", lineHandler.Update)
			lines.PUT("/:id/batch-details", lineHandler.SetBatchDetails)
			lines.PUT("/:id/serial-details", lineHandler.SetSerialDetails)
			lines.PUT("/:id/pack-details", lineHandler.SetPackDetails)
			lines.POST("/:id/complete", lineHandler.Complete)
			lines.GET("/:id/labels", lineHandler.Labels)
		}
	}

	return router
}
