package routes

import (
	"net/http"
	"time"

	"villagestay/config"
	"villagestay/handlers"
	"villagestay/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterBecknRoutes registers the negotiation endpoints.
func RegisterBecknRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/beckn")
	{
		api.POST("/search", hb.SearchHandler)
		api.POST("/quote", hb.QuoteHandler)
	}
}

// RegisterBookingRoutes sets up booking, rating and verification endpoints.
func RegisterBookingRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api")
	{
		api.POST("/book", hb.BookHandler)
		api.POST("/rating", hb.RatingHandler)
		api.GET("/verify/:bookingId", hb.VerifyHandler)
		api.POST("/ledger/verify", hb.LedgerVerifyHandler)
		api.GET("/archive/:address", hb.ArchiveHandler)
	}
}

// RegisterHealthRoute reports the last dependency health snapshot.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		status := utils.GetHealthStatus()
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"message":   "VillageStay booking service",
			"services":  status.Services,
			"checkedAt": status.CheckedAt,
		})
	})
}

// RegisterMetricsRoute exposes the Prometheus registry.
func RegisterMetricsRoute(r *gin.Engine, gatherer prometheus.Gatherer) {
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle, gatherer prometheus.Gatherer) {
	origins := []string{"*"}
	if config.AppConfig.FrontendURL != "" {
		origins = []string{config.AppConfig.FrontendURL}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterBecknRoutes(r, hb)
	RegisterBookingRoutes(r, hb)
	RegisterHealthRoute(r)
	RegisterMetricsRoute(r, gatherer)

	r.NoRoute(func(c *gin.Context) {
		utils.JSONError(c, http.StatusNotFound, "Route not found", "NotFound", nil)
	})
}
