package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/repos"
	"github.com/meridianvc/dealflow-backend/internal/tasks"
	"github.com/meridianvc/dealflow-backend/internal/types"

	extractpkg "github.com/meridianvc/dealflow-backend/internal/extract"
)

type fakeFetcher struct {
	data []byte
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	return f.data, f.err
}

// fixedEmbedder returns a deterministic vector per input so retrieval tests
// can rank on known geometry: the vector leans on axis 0 when the text
// mentions revenue, axis 1 otherwise.
type fixedEmbedder struct {
	err error
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if strings.Contains(strings.ToLower(text), "mrr") {
		return []float32{0.95, 0.05, 0}, nil
	}
	return []float32{0.05, 0.95, 0}, nil
}

func (f *fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fixedEmbedder) Dimension() int { return 3 }

type recordingTrigger struct {
	mu    sync.Mutex
	calls []uuid.UUID
}

func (r *recordingTrigger) Recompute(ctx context.Context, startupID, fundID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, startupID)
	return nil
}

type pipelineEnv struct {
	db      *gorm.DB
	docs    repos.DocumentRepo
	chunks  repos.DocumentChunkRepo
	fetcher *fakeFetcher
	embed   *fixedEmbedder
	trigger *recordingTrigger
	runner  *tasks.Runner
	pipe    *Pipeline
}

func newPipelineEnv(t *testing.T) *pipelineEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "pipeline_test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&types.Fund{}, &types.Startup{}, &types.Document{},
		&types.DocumentChunk{}, &types.ActivityEvent{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	log := logger.NewNop()
	env := &pipelineEnv{
		db:      db,
		docs:    repos.NewDocumentRepo(db, log),
		fetcher: &fakeFetcher{},
		embed:   &fixedEmbedder{},
		trigger: &recordingTrigger{},
		runner:  tasks.NewRunner(log, time.Minute),
	}
	env.chunks = repos.NewDocumentChunkRepo(db, log, env.embed)
	env.pipe = NewPipeline(
		log,
		env.docs,
		env.chunks,
		env.fetcher,
		extractpkg.NewRegistry(log, nil),
		NewChunker(300, 60),
		NewEntityExtractor(log, nil),
		env.runner,
		env.trigger,
		nil,
	)
	return env
}

func (e *pipelineEnv) seedDocument(t *testing.T, status string) *types.Document {
	t.Helper()
	doc := &types.Document{
		StartupID:  uuid.New(),
		FundID:     uuid.New(),
		Name:       "Acme Pitch",
		Type:       types.DocumentTypePitchDeck,
		StorageURI: "https://files.example/acme.txt",
		MimeType:   "text/plain",
		Status:     status,
	}
	created, err := e.docs.Create(context.Background(), nil, doc)
	if err != nil {
		t.Fatalf("seed document: %v", err)
	}
	return created
}

func TestIngestHappyPath(t *testing.T) {
	env := newPipelineEnv(t)
	env.fetcher.data = []byte("Acme builds billing software. Current MRR is $15,000 and growing. " +
		"The founding team previously scaled two infrastructure companies together over eight years.")
	doc := env.seedDocument(t, types.DocumentStatusPending)

	if err := env.pipe.Ingest(context.Background(), doc.ID); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	env.runner.Wait()

	reloaded, err := env.docs.GetByID(context.Background(), nil, doc.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != types.DocumentStatusCompleted {
		t.Fatalf("status = %q, want completed", reloaded.Status)
	}

	var meta map[string]any
	if err := json.Unmarshal(reloaded.Metadata, &meta); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta["chunk_count"] == nil || meta["preview"] == nil || meta["processing_ms"] == nil {
		t.Fatalf("metadata incomplete: %v", meta)
	}

	chunks, err := env.chunks.GetByDocumentID(context.Background(), nil, doc.ID)
	if err != nil || len(chunks) == 0 {
		t.Fatalf("chunks: %v (n=%d)", err, len(chunks))
	}
	for _, ch := range chunks {
		if len(ch.Embedding) == 0 {
			t.Fatalf("chunk %d missing embedding", ch.Index)
		}
	}

	// Retrieval over what was just ingested: an MRR-leaning query vector
	// must surface the revenue chunk first.
	hits, err := env.chunks.SearchByEmbedding(context.Background(), []float32{1, 0, 0},
		repos.ScopeFilter{StartupID: &doc.StartupID}, 3)
	if err != nil || len(hits) == 0 {
		t.Fatalf("search: %v (n=%d)", err, len(hits))
	}
	if !strings.Contains(hits[0].Chunk.Content, "$15,000") {
		t.Fatalf("top hit should carry the MRR figure: %q", hits[0].Chunk.Content)
	}

	if len(env.trigger.calls) != 1 || env.trigger.calls[0] != doc.StartupID {
		t.Fatalf("alignment recompute not triggered: %v", env.trigger.calls)
	}
}

func TestIngestEmptyTextIsTerminalFailure(t *testing.T) {
	env := newPipelineEnv(t)
	env.fetcher.data = []byte("   \n\t  ")
	doc := env.seedDocument(t, types.DocumentStatusPending)

	err := env.pipe.Ingest(context.Background(), doc.ID)
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("want ErrEmptyDocument, got %v", err)
	}

	reloaded, _ := env.docs.GetByID(context.Background(), nil, doc.ID)
	if reloaded.Status != types.DocumentStatusFailed {
		t.Fatalf("status = %q, want failed", reloaded.Status)
	}
	var meta map[string]any
	_ = json.Unmarshal(reloaded.Metadata, &meta)
	if meta["error"] == nil || meta["failed_at"] == nil {
		t.Fatalf("failure metadata missing: %v", meta)
	}

	n, _ := env.chunks.CountByStartupID(context.Background(), nil, doc.StartupID)
	if n != 0 {
		t.Fatalf("failed ingestion must write no chunks, got %d", n)
	}
}

func TestIngestUnreachableStorageDegradesToPlaceholder(t *testing.T) {
	env := newPipelineEnv(t)
	env.fetcher.err = errors.New("bucket unavailable")
	doc := env.seedDocument(t, types.DocumentStatusPending)

	if err := env.pipe.Ingest(context.Background(), doc.ID); err != nil {
		t.Fatalf("fetch failure must not fail ingestion: %v", err)
	}
	env.runner.Wait()

	chunks, err := env.chunks.GetByDocumentID(context.Background(), nil, doc.ID)
	if err != nil || len(chunks) == 0 {
		t.Fatalf("placeholder content should still produce chunks: %v", err)
	}
	if !strings.Contains(chunks[0].Content, "Placeholder") {
		t.Fatalf("expected placeholder content, got %q", chunks[0].Content)
	}
}

func TestIngestEmbeddingFailureKeepsChunks(t *testing.T) {
	env := newPipelineEnv(t)
	env.fetcher.data = []byte("Details about the go-to-market motion and pipeline conversion.")
	env.embed.err = errors.New("embedding service down")
	doc := env.seedDocument(t, types.DocumentStatusPending)

	if err := env.pipe.Ingest(context.Background(), doc.ID); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	env.runner.Wait()

	chunks, err := env.chunks.GetByDocumentID(context.Background(), nil, doc.ID)
	if err != nil || len(chunks) == 0 {
		t.Fatalf("chunks must survive embedding failure: %v", err)
	}
	for _, ch := range chunks {
		if len(ch.Embedding) != 0 {
			t.Fatalf("chunk %d should have null embedding", ch.Index)
		}
		var meta map[string]any
		_ = json.Unmarshal(ch.Metadata, &meta)
		if meta["embed_error"] == nil {
			t.Fatalf("chunk %d missing embed_error note", ch.Index)
		}
	}
}

func TestIngestStatusGuards(t *testing.T) {
	env := newPipelineEnv(t)
	env.fetcher.data = []byte("Some content for the retry path.")

	done := env.seedDocument(t, types.DocumentStatusCompleted)
	if err := env.pipe.Ingest(context.Background(), done.ID); !errors.Is(err, ErrAlreadyIngested) {
		t.Fatalf("completed doc: want ErrAlreadyIngested, got %v", err)
	}

	busy := env.seedDocument(t, types.DocumentStatusProcessing)
	if err := env.pipe.Ingest(context.Background(), busy.ID); !errors.Is(err, ErrIngestInProgress) {
		t.Fatalf("processing doc: want ErrIngestInProgress, got %v", err)
	}

	failed := env.seedDocument(t, types.DocumentStatusFailed)
	if err := env.pipe.Ingest(context.Background(), failed.ID); err != nil {
		t.Fatalf("failed doc must be re-ingestable: %v", err)
	}
	env.runner.Wait()
	reloaded, _ := env.docs.GetByID(context.Background(), nil, failed.ID)
	if reloaded.Status != types.DocumentStatusCompleted {
		t.Fatalf("re-ingested status = %q, want completed", reloaded.Status)
	}
}
