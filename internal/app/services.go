package app

import (
	"github.com/meridianvc/dealflow-backend/internal/ingestion"
	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/services"
	"github.com/meridianvc/dealflow-backend/internal/tasks"
)

type Services struct {
	Activity  services.ActivityService
	Alignment services.AlignmentService
	RAG       services.RAGService
	Startup   services.StartupService
	Document  services.DocumentService
	Thesis    services.ThesisService
	Pipeline  *ingestion.Pipeline
	Runner    *tasks.Runner
}

func wireServices(log *logger.Logger, cfg Config, reposet Repos, clients Clients) Services {
	log.Info("Wiring services...")

	runner := tasks.NewRunner(log, cfg.TaskTimeout)
	activity := services.NewActivityService(log, reposet.ActivityEvent, clients.EventBus)
	alignment := services.NewAlignmentService(log,
		reposet.Startup, reposet.Document, reposet.DocumentChunk,
		reposet.InvestmentThesis, clients.OpenAI, activity)
	rag := services.NewRAGService(log,
		reposet.DocumentChunk, reposet.InvestmentThesis, reposet.QueryLog,
		clients.Embedder, clients.OpenAI, activity)

	pipeline := ingestion.NewPipeline(log,
		reposet.Document, reposet.DocumentChunk,
		clients.Fetcher, clients.Extract,
		ingestion.NewChunker(cfg.ChunkMaxSize, cfg.ChunkOverlapSize),
		ingestion.NewEntityExtractor(log, clients.OpenAI),
		runner, alignment, activity)

	return Services{
		Activity:  activity,
		Alignment: alignment,
		RAG:       rag,
		Startup:   services.NewStartupService(log, reposet.Startup),
		Document:  services.NewDocumentService(log, reposet.Document, reposet.Startup, pipeline, runner),
		Thesis:    services.NewThesisService(log, reposet.InvestmentThesis),
		Pipeline:  pipeline,
		Runner:    runner,
	}
}
