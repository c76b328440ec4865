package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"greendrake/dunning/internal/api/handlers"
	"greendrake/dunning/internal/api/middleware"
	"greendrake/dunning/internal/config"
	"greendrake/dunning/internal/metrics"
)

const (
	serviceAPIRatePerSecond = 5
	serviceAPIBurst         = 20
)

// SetupServiceRouter configures and returns the service Gin engine: health,
// Prometheus metrics, the POST /api method dispatch and the admin audit route.
// ctx bounds the rate limiter's background cleanup.
func SetupServiceRouter(ctx context.Context, cfg *config.Config, jsonApiHandler *handlers.JsonApiHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), metrics.GinMiddleware())

	rateLimiter := middleware.NewRateLimiterMiddleware(ctx, serviceAPIRatePerSecond, serviceAPIBurst)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/api", rateLimiter.Limit(), jsonApiHandler.HandleRequest)

	v1 := r.Group("/v1")
	{
		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		adminRequired := v1.Group("/admin")
		adminRequired.Use(rateLimiter.Limit(), middleware.AuthMiddleware(cfg.JwtSecret), middleware.AdminMiddleware())
		{
			adminRequired.GET("/invoice/:id/events", jsonApiHandler.InvoiceEvents)
		}
	}

	return r
}
