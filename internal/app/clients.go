package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/meridianvc/dealflow-backend/internal/clients/openai"
	goredis "github.com/meridianvc/dealflow-backend/internal/clients/redis"
	"github.com/meridianvc/dealflow-backend/internal/embedding"
	"github.com/meridianvc/dealflow-backend/internal/extract"
	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/storage"
)

type Clients struct {
	OpenAI   openai.Client
	Embedder embedding.Client
	EventBus goredis.EventBus
	Fetcher  storage.Fetcher
	Extract  *extract.Registry
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	ai, err := openai.NewClient(log, openai.ConfigFromEnv(log))
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}

	embedder, err := embedding.NewClient(log, ai)
	if err != nil {
		return Clients{}, fmt.Errorf("init embedding client: %w", err)
	}

	// Redis is optional: without REDIS_ADDR the activity feed is DB-only.
	var bus goredis.EventBus
	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		bus, err = goredis.NewEventBus(log)
		if err != nil {
			log.Warn("Redis event bus unavailable; activity events stay DB-only", "error", err)
			bus = nil
		}
	}

	return Clients{
		OpenAI:   ai,
		Embedder: embedder,
		EventBus: bus,
		Fetcher:  storage.NewFetcher(log),
		Extract:  extract.NewRegistry(log, nil),
	}, nil
}
