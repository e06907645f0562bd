package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/gabrie-lhilarion/spacemania/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

// HealthReporter returns component details for /health and whether every
// component is usable.
type HealthReporter func(ctx context.Context) (gin.H, bool)

// RouterConfig carries the transport settings taken from config.
type RouterConfig struct {
	JWTSecret      string
	RequestTimeout time.Duration
	Health         HealthReporter
}

// InitRoutes builds the API router. queueHandler is nil when no task queue
// is configured.
func InitRoutes(cfg RouterConfig, bookingHandler *BookingHandler, workspaceHandler *WorkspaceHandler, queueHandler *QueueHandler) *gin.Engine {

	router := gin.New()

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(cfg.RequestTimeout))

	auth := middleware.Auth(cfg.JWTSecret)

	// API routes
	api := router.Group("/api/v1")
	{
		// Workspace routes
		workspaces := api.Group("/workspaces")
		{
			workspaces.GET("", workspaceHandler.ListWorkspaces)
			workspaces.GET("/:id", workspaceHandler.GetWorkspace)
			workspaces.GET("/:id/availability", bookingHandler.CheckAvailability)
		}

		// Booking routes
		bookings := api.Group("/bookings", auth)
		{
			bookings.POST("", bookingHandler.CreateBooking)
			bookings.GET("", bookingHandler.GetUserBookings)
			bookings.DELETE("/:id", bookingHandler.CancelBooking)
		}

		// Admin routes
		admin := api.Group("/admin", auth, middleware.RequireRole(middleware.RoleAdmin))
		{
			admin.POST("/workspaces", workspaceHandler.CreateWorkspace)
			admin.DELETE("/workspaces/:id", workspaceHandler.DeactivateWorkspace)

			if queueHandler != nil {
				admin.GET("/queue/failed", queueHandler.ListFailed)
				admin.POST("/queue/failed/:id/requeue", queueHandler.Requeue)
				admin.GET("/queue/stats", queueHandler.Stats)
			}
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		}
		status := http.StatusOK

		if cfg.Health != nil {
			components, healthy := cfg.Health(c.Request.Context())
			body["components"] = components
			if !healthy {
				body["status"] = "degraded"
				status = http.StatusServiceUnavailable
			}
		}

		c.JSON(status, body)
	})

	return router
}
