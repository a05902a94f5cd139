package app

import (
	"gorm.io/gorm"

	"github.com/meridianvc/dealflow-backend/internal/embedding"
	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/repos"
)

type Repos struct {
	Startup          repos.StartupRepo
	Document         repos.DocumentRepo
	DocumentChunk    repos.DocumentChunkRepo
	InvestmentThesis repos.InvestmentThesisRepo
	ActivityEvent    repos.ActivityEventRepo
	QueryLog         repos.QueryLogRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger, embedder embedding.Client) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Startup:          repos.NewStartupRepo(db, log),
		Document:         repos.NewDocumentRepo(db, log),
		DocumentChunk:    repos.NewDocumentChunkRepo(db, log, embedder),
		InvestmentThesis: repos.NewInvestmentThesisRepo(db, log),
		ActivityEvent:    repos.NewActivityEventRepo(db, log),
		QueryLog:         repos.NewQueryLogRepo(db, log),
	}
}
