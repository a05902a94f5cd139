package app

import (
	"github.com/gin-gonic/gin"

	"github.com/meridianvc/dealflow-backend/internal/handlers"
	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/middleware"
	"github.com/meridianvc/dealflow-backend/internal/server"
)

type Middleware struct {
	Auth *middleware.AuthMiddleware
}

type Handlers struct {
	Startup   *handlers.StartupHandler
	Document  *handlers.DocumentHandler
	Query     *handlers.QueryHandler
	Alignment *handlers.AlignmentHandler
	Thesis    *handlers.ThesisHandler
	Activity  *handlers.ActivityHandler
}

func wireHandlers(log *logger.Logger, serviceset Services, reposet Repos) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Startup:   handlers.NewStartupHandler(log, serviceset.Startup),
		Document:  handlers.NewDocumentHandler(log, serviceset.Document),
		Query:     handlers.NewQueryHandler(log, serviceset.RAG, reposet.QueryLog),
		Alignment: handlers.NewAlignmentHandler(log, serviceset.Alignment, serviceset.Startup),
		Thesis:    handlers.NewThesisHandler(log, serviceset.Thesis),
		Activity:  handlers.NewActivityHandler(log, serviceset.Activity),
	}
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: middleware.NewAuthMiddleware(log, cfg.JWTSecretKey),
	}
}

func wireRouter(cfg Config, handlerset Handlers, mw Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		AuthMiddleware:   mw.Auth,
		StartupHandler:   handlerset.Startup,
		DocumentHandler:  handlerset.Document,
		QueryHandler:     handlerset.Query,
		AlignmentHandler: handlerset.Alignment,
		ThesisHandler:    handlerset.Thesis,
		ActivityHandler:  handlerset.Activity,
		AllowedOrigins:   cfg.AllowedOrigins,
	})
}
