// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"shopfloor/internal/app"
	"shopfloor/internal/core/idempotency"
	"shopfloor/internal/infrastructure/http/v1/handlers"
	"shopfloor/internal/infrastructure/http/v1/middleware"
	"shopfloor/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	Logger       *logger.Logger
	JWTValidator middleware.JWTValidator
	Services     *app.Services

	// Health is optional; a probe without dependency checks is used when nil.
	Health *handlers.HealthHandler

	// Idempotency is optional; nil disables X-Idempotency-Key handling.
	Idempotency idempotency.Store

	Development bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.Health == nil {
		cfg.Health = handlers.NewHealthHandler("unknown", nil)
	}

	router := gin.New()

	// Recovery sits inside ErrorHandler so a panic is still rendered as JSON.
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	health := router.Group("/health")
	{
		health.GET("/live", cfg.Health.Live)
		health.GET("/ready", cfg.Health.Ready)
	}

	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTValidator))
	if cfg.Idempotency != nil {
		api.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()
	svc := cfg.Services

	orderH := handlers.NewOrderHandler(base, svc.Orders, svc.Stages, svc.Progress)
	ordersGroup := api.Group("/orders")
	{
		ordersGroup.POST("", adminOnly, orderH.Create)
		ordersGroup.DELETE("/:id", adminOnly, orderH.Delete)
		ordersGroup.POST("/:id/stages", adminOnly, orderH.CreateStage)
		readRoutes(ordersGroup, map[string]gin.HandlerFunc{
			"":              orderH.List,
			"/:id":          orderH.Get,
			"/:id/stages":   orderH.ListStages,
			"/:id/progress": orderH.Progress,
		})
	}

	stageH := handlers.NewStageHandler(base, svc.Stages, svc.Store, svc.Allocator, svc.Adjustment)
	stagesGroup := api.Group("/stages")
	{
		stagesGroup.POST("/:id/archive", adminOnly, stageH.Archive)
		stagesGroup.POST("/:id/adjustments", adminOnly, stageH.Adjust)
		stagesGroup.POST("/:id/allocation-draft", anyRole, stageH.AllocationDraft)
		readRoutes(stagesGroup, map[string]gin.HandlerFunc{
			"/:id":     stageH.Get,
			"/:id/wip": stageH.WIP,
		})
	}

	reportH := handlers.NewReportHandler(base, svc.Submission, svc.Store, svc.Approval)
	reportsGroup := api.Group("/reports")
	{
		reportsGroup.POST("", anyRole, reportH.Submit)
		reportsGroup.PUT("/:id", anyRole, reportH.Edit)
		reportsGroup.POST("/:id/approve", approverOnly, reportH.Approve)
		reportsGroup.POST("/:id/reject", approverOnly, reportH.Reject)
		readRoutes(reportsGroup, map[string]gin.HandlerFunc{
			"":     reportH.List,
			"/:id": reportH.Get,
		})
	}

	registerH := handlers.NewRegisterHandler(base, svc.FinishedGoods, svc.Scrap)
	readRoutes(api, map[string]gin.HandlerFunc{
		"/finished-goods":            registerH.ListFinishedGoods,
		"/finished-goods/:productId": registerH.GetFinishedGoods,
		"/scrap":                     registerH.ListScrap,
	})

	return router
}
