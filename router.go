package main

import (
	"net/http"
	"time"

	"github.com/arjunpratapdas/contractiq/config"
	"github.com/arjunpratapdas/contractiq/handler"
	"github.com/arjunpratapdas/contractiq/middleware"
	"github.com/arjunpratapdas/contractiq/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func newRouter(cfg *config.Config, tools *service.ToolsService) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics())
	router.Use(middleware.CORS())
	router.Use(middleware.NoStore())
	router.Use(middleware.RateLimit(cfg.RateLimit.Requests, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	catalogHandler := handler.NewCatalogHandler()
	sessionHandler := handler.NewSessionHandler(tools, &cfg.Session)
	toolsHandler := handler.NewToolsHandler(tools)
	generateHandler := handler.NewGenerateHandler(tools)

	// generation and analysis hit paid upstreams
	costly := middleware.RateLimitBy(
		middleware.NewRateLimiter(cfg.RateLimit.CostlyRequests, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second),
		middleware.BySession,
	)

	api := router.Group("/api")
	{
		api.GET("/document-types", catalogHandler.DocumentTypes)
		api.GET("/jurisdictions", catalogHandler.Jurisdictions)
		api.GET("/jurisdictions/:country/subdivisions", catalogHandler.Subdivisions)
		api.POST("/jurisdictions/resolve", catalogHandler.Resolve)
		api.POST("/generate-contract", costly, generateHandler.Generate)
		api.POST("/sessions", sessionHandler.Create)
	}

	session := api.Group("/session")
	session.Use(middleware.SessionAuth(&cfg.Session))
	{
		session.GET("", sessionHandler.Get)
		session.DELETE("", sessionHandler.Delete)
		session.PATCH("/form", sessionHandler.UpdateForm)
		session.PUT("/document", toolsHandler.UploadDocument)
		session.DELETE("/document", toolsHandler.DetachDocument)
		session.POST("/analysis", costly, toolsHandler.Analyze)
		session.POST("/clauses", costly, toolsHandler.ExtractClauses)
		session.POST("/compliance", costly, toolsHandler.CheckCompliance)
		session.POST("/contract", costly, toolsHandler.GenerateContract)
		session.GET("/contract/export/:format", toolsHandler.ExportContract)
	}

	return router
}
