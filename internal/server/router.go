package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/meridianvc/dealflow-backend/internal/handlers"
	"github.com/meridianvc/dealflow-backend/internal/middleware"
)

type RouterConfig struct {
	AuthMiddleware   *middleware.AuthMiddleware
	StartupHandler   *handlers.StartupHandler
	DocumentHandler  *handlers.DocumentHandler
	QueryHandler     *handlers.QueryHandler
	AlignmentHandler *handlers.AlignmentHandler
	ThesisHandler    *handlers.ThesisHandler
	ActivityHandler  *handlers.ActivityHandler
	AllowedOrigins   []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("dealflow-backend"))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthz", handlers.HealthCheck)

	// Protected
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	// Startups
	api.POST("/startups", cfg.StartupHandler.Create)
	api.GET("/startups", cfg.StartupHandler.List)
	api.GET("/startups/:id", cfg.StartupHandler.Get)

	// Documents + ingestion
	api.POST("/startups/:id/documents", cfg.DocumentHandler.Register)
	api.GET("/startups/:id/documents", cfg.DocumentHandler.ListByStartup)
	api.GET("/documents/:id", cfg.DocumentHandler.Get)
	api.POST("/documents/:id/ingest", cfg.DocumentHandler.Ingest)

	// RAG
	api.POST("/query", cfg.QueryHandler.Query)
	api.GET("/queries", cfg.QueryHandler.Recent)

	// Alignment
	api.POST("/startups/:id/alignment", cfg.AlignmentHandler.Score)
	api.GET("/startups/:id/alignment", cfg.AlignmentHandler.Get)

	// Thesis
	api.POST("/theses", cfg.ThesisHandler.Create)
	api.POST("/theses/:id/activate", cfg.ThesisHandler.Activate)
	api.GET("/theses/active", cfg.ThesisHandler.Active)

	// Activity feed
	api.GET("/activity", cfg.ActivityHandler.List)

	return router
}
