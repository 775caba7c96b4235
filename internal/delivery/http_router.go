package delivery

import (
	"time"

	"leadsync/internal/delivery/middleware"
	"leadsync/pkg/logger"
	"leadsync/pkg/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type HTTPRouter struct {
	handlers *HTTPHandlers
	logger   *logger.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration
}

func NewHTTPRouter(handlers *HTTPHandlers, logger *logger.Logger, metrics *metrics.Metrics, timeout time.Duration) *HTTPRouter {
	return &HTTPRouter{
		handlers: handlers,
		logger:   logger,
		metrics:  metrics,
		timeout:  timeout,
	}
}

func (r *HTTPRouter) SetupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(r.logger))
	router.Use(middleware.Recovery(r.logger))
	router.Use(middleware.Metrics(r.metrics))
	router.Use(middleware.Timeout(r.timeout))

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Content-Type", "X-Request-ID", resetTokenHeader}
	config.ExposeHeaders = []string{"X-Request-ID"}

	router.Use(cors.New(config))

	router.GET("/health", r.handlers.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/", r.handlers.GetAPIInfo)
		v1.GET("", r.handlers.GetAPIInfo)

		sync := v1.Group("/sync")
		{
			sync.POST("/run", r.handlers.SyncRun)
		}

		runs := v1.Group("/runs/:id")
		{
			runs.GET("/records", r.handlers.RunRecords)
			runs.GET("/summary", r.handlers.RunSummary)
			runs.POST("/aux", r.handlers.AttachAux)
			runs.POST("/publish", r.handlers.PublishRun)
		}

		tables := v1.Group("/tables")
		{
			tables.POST("/:table/reset", r.handlers.ResetTable)
		}
	}

	router.GET("/metrics", middleware.PrometheusHandler())

	return router
}
