package handler

import (
	"net/http"
	"time"

	"github.com/CharlyTlelo/abc-exprezo-contratos/config"
	"github.com/CharlyTlelo/abc-exprezo-contratos/middleware"
	"github.com/CharlyTlelo/abc-exprezo-contratos/service"
	"github.com/gin-gonic/gin"
)

// NewRouter wires the middleware chain and every route of the API.
func NewRouter(cfg *config.Config, workflow *service.Workflow) *gin.Engine {
	authHandler := NewAuthHandler(cfg)
	contractHandler := NewContractHandler(workflow)
	documentHandler := NewDocumentHandler(workflow)
	reviewHandler := NewReviewHandler(workflow)

	router := gin.New()
	router.MaxMultipartMemory = MaxUploadSize

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(corsMiddleware())
	router.Use(noCacheMiddleware())
	router.Use(middleware.RateLimit(cfg.RateLimit.Requests, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api")
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)

		protected.GET("/contratos", contractHandler.List)
		protected.POST("/contratos", contractHandler.Create)
		protected.GET("/contratos/:folio", contractHandler.Get)
		protected.PATCH("/contratos/:folio", contractHandler.Update)
		protected.DELETE("/contratos/:folio", contractHandler.Delete)
		protected.POST("/contratos/:folio/rename", contractHandler.Rename)
		protected.GET("/contratos/:folio/progress", contractHandler.Progress)
		protected.GET("/contratos/:folio/export", contractHandler.Export)

		protected.GET("/contratos/:folio/documents", documentHandler.List)
		protected.POST("/contratos/:folio/sections/:section/documents", documentHandler.Upload)
		protected.PUT("/contratos/:folio/documents/:id", documentHandler.Replace)
		protected.PATCH("/contratos/:folio/documents/:id/ready", documentHandler.SetReady)
		protected.DELETE("/contratos/:folio/documents/:id", documentHandler.Delete)
		protected.GET("/contratos/:folio/documents/:id/content", documentHandler.Content)

		protected.GET("/contratos/:folio/reviews", reviewHandler.List)
		protected.POST("/contratos/:folio/reviews", middleware.RequireRole(config.RoleReviewer), reviewHandler.Submit)
		protected.GET("/contratos/:folio/drafts/:id", reviewHandler.GetDraft)
		protected.PUT("/contratos/:folio/drafts/:id", reviewHandler.SaveDraft)
	}

	return router
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Content-Disposition")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// noCacheMiddleware keeps API responses out of caches
func noCacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")
		c.Next()
	}
}
