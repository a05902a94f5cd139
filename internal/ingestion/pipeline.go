package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/meridianvc/dealflow-backend/internal/extract"
	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/normalization"
	"github.com/meridianvc/dealflow-backend/internal/repos"
	"github.com/meridianvc/dealflow-backend/internal/storage"
	"github.com/meridianvc/dealflow-backend/internal/tasks"
	"github.com/meridianvc/dealflow-backend/internal/types"
)

var (
	// ErrEmptyDocument is the pipeline's only hard content failure: nothing
	// textual survived extraction and normalization.
	ErrEmptyDocument = errors.New("document yielded no extractable text")

	// ErrIngestInProgress rejects a re-trigger while a document is mid-flight.
	ErrIngestInProgress = errors.New("document ingestion already in progress")

	// ErrAlreadyIngested rejects re-ingestion of a completed document.
	ErrAlreadyIngested = errors.New("document already ingested")
)

// charsPerPage drives the page-count estimate and per-chunk page hints for
// formats that carry no pagination of their own.
const charsPerPage = 1800

// embedWorkers bounds concurrent embedding calls per document.
const embedWorkers = 4

const previewLength = 280

// AlignmentTrigger recomputes a startup's thesis-alignment score. The
// pipeline fires it after every completed ingestion; its failure never rolls
// back document completion.
type AlignmentTrigger interface {
	Recompute(ctx context.Context, startupID, fundID uuid.UUID) error
}

// ActivityRecorder appends to the fund activity feed. Implementations swallow
// their own failures.
type ActivityRecorder interface {
	Record(ctx context.Context, eventType string, fundID uuid.UUID, startupID *uuid.UUID, payload map[string]any)
}

// Pipeline drives a document from pending through extraction, chunking,
// embedding and enrichment to a terminal status.
type Pipeline struct {
	docs      repos.DocumentRepo
	chunks    repos.DocumentChunkRepo
	fetcher   storage.Fetcher
	extract   *extract.Registry
	chunker   *Chunker
	entities  EntityExtractor
	runner    *tasks.Runner
	alignment AlignmentTrigger
	activity  ActivityRecorder
	log       *logger.Logger
}

func NewPipeline(
	log *logger.Logger,
	docs repos.DocumentRepo,
	chunks repos.DocumentChunkRepo,
	fetcher storage.Fetcher,
	registry *extract.Registry,
	chunker *Chunker,
	entities EntityExtractor,
	runner *tasks.Runner,
	alignment AlignmentTrigger,
	activity ActivityRecorder,
) *Pipeline {
	return &Pipeline{
		docs:      docs,
		chunks:    chunks,
		fetcher:   fetcher,
		extract:   registry,
		chunker:   chunker,
		entities:  entities,
		runner:    runner,
		alignment: alignment,
		activity:  activity,
		log:       log.With("service", "IngestionPipeline"),
	}
}

// Ingest runs the full pipeline for one document. Callable on pending and
// failed documents; failed is terminal only until something calls this again.
func (p *Pipeline) Ingest(ctx context.Context, documentID uuid.UUID) error {
	doc, err := p.docs.GetByID(ctx, nil, documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}
	switch doc.Status {
	case types.DocumentStatusProcessing:
		return ErrIngestInProgress
	case types.DocumentStatusCompleted:
		return ErrAlreadyIngested
	}

	if err := p.docs.UpdateStatus(ctx, nil, doc.ID, types.DocumentStatusProcessing); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	start := time.Now()
	if err := p.process(ctx, doc, start); err != nil {
		p.fail(ctx, doc, err)
		return err
	}

	if err := p.docs.UpdateStatus(ctx, nil, doc.ID, types.DocumentStatusCompleted); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	p.log.Info("Document ingested",
		"document_id", doc.ID, "startup_id", doc.StartupID, "duration", time.Since(start))

	if p.activity != nil {
		p.activity.Record(ctx, types.ActivityDocumentIngested, doc.FundID, &doc.StartupID, map[string]any{
			"document_id":   doc.ID.String(),
			"document_name": doc.Name,
			"document_type": doc.Type,
		})
	}
	if p.alignment != nil && p.runner != nil {
		startupID, fundID := doc.StartupID, doc.FundID
		p.runner.Submit("alignment-recompute", func(taskCtx context.Context) error {
			return p.alignment.Recompute(taskCtx, startupID, fundID)
		})
	}
	return nil
}

func (p *Pipeline) process(ctx context.Context, doc *types.Document, start time.Time) error {
	text := p.acquireText(ctx, doc)

	normalized := normalization.NormalizeExtracted(text)
	if normalized == "" {
		return ErrEmptyDocument
	}

	pieces := p.chunker.Chunk(normalized)
	ents := p.entities.Extract(ctx, normalized)

	extractedAt := time.Now().UTC()
	persisted := p.persistChunks(ctx, doc, pieces, extractedAt)

	meta := map[string]any{
		"page_count":    pageEstimate(normalized),
		"chunk_count":   len(pieces),
		"chunks_stored": persisted,
		"processing_ms": time.Since(start).Milliseconds(),
		"entities":      ents,
		"entity_counts": ents.Counts(),
		"preview":       preview(normalized),
		"extracted_at":  extractedAt.Format(time.RFC3339),
	}
	if err := p.docs.MergeMetadata(ctx, nil, doc.ID, meta); err != nil {
		return fmt.Errorf("persist document metadata: %w", err)
	}
	return nil
}

// acquireText fetches and extracts the document, degrading to placeholder
// content at each step so unreachable storage or a broken parser never kills
// the pipeline on its own.
func (p *Pipeline) acquireText(ctx context.Context, doc *types.Document) string {
	data, err := p.fetcher.Fetch(ctx, doc.StorageURI)
	if err != nil {
		p.log.Warn("Document fetch failed; using placeholder content",
			"document_id", doc.ID, "storage_uri", doc.StorageURI, "error", err)
		return placeholderText(doc, "the file could not be retrieved from storage")
	}

	text, err := p.extract.Extract(ctx, data, doc.MimeType)
	if err != nil {
		p.log.Warn("Text extraction failed; using placeholder content",
			"document_id", doc.ID, "mime_type", doc.MimeType, "error", err)
		return placeholderText(doc, "its content could not be parsed")
	}
	return text
}

// persistChunks embeds and stores chunks with bounded concurrency. Failures
// are independent per chunk; the return value is how many rows made it to the
// store.
func (p *Pipeline) persistChunks(ctx context.Context, doc *types.Document, pieces []string, extractedAt time.Time) int {
	if len(pieces) == 0 {
		return 0
	}

	offsets := make([]int, len(pieces))
	var cum int
	for i, piece := range pieces {
		offsets[i] = cum
		cum += len([]rune(piece))
	}

	stored := make([]bool, len(pieces))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedWorkers)
	for i, piece := range pieces {
		i, piece := i, piece
		g.Go(func() error {
			meta := types.ChunkMetadata{
				DocumentName: doc.Name,
				DocumentType: doc.Type,
				ChunkIndex:   i,
				Page:         offsets[i]/charsPerPage + 1,
				ExtractedAt:  extractedAt,
			}
			raw, _ := json.Marshal(meta)
			chunk := &types.DocumentChunk{
				DocumentID: doc.ID,
				StartupID:  doc.StartupID,
				FundID:     doc.FundID,
				Index:      i,
				Content:    piece,
				Metadata:   datatypes.JSON(raw),
			}
			if _, err := p.chunks.CreateWithEmbedding(gctx, nil, chunk, piece, nil); err != nil {
				p.log.Error("Chunk persist failed",
					"document_id", doc.ID, "chunk_index", i, "error", err)
				return nil
			}
			stored[i] = true
			return nil
		})
	}
	_ = g.Wait()

	var n int
	for _, ok := range stored {
		if ok {
			n++
		}
	}
	return n
}

func (p *Pipeline) fail(ctx context.Context, doc *types.Document, cause error) {
	if err := p.docs.UpdateStatus(ctx, nil, doc.ID, types.DocumentStatusFailed); err != nil {
		p.log.Error("Failed to mark document failed", "document_id", doc.ID, "error", err)
	}
	meta := map[string]any{
		"error":     cause.Error(),
		"failed_at": time.Now().UTC().Format(time.RFC3339),
	}
	if err := p.docs.MergeMetadata(ctx, nil, doc.ID, meta); err != nil {
		p.log.Error("Failed to record failure metadata", "document_id", doc.ID, "error", err)
	}
	p.log.Error("Document ingestion failed", "document_id", doc.ID, "error", cause)
	if p.activity != nil {
		p.activity.Record(ctx, types.ActivityDocumentFailed, doc.FundID, &doc.StartupID, map[string]any{
			"document_id": doc.ID.String(),
			"error":       cause.Error(),
		})
	}
}

func placeholderText(doc *types.Document, reason string) string {
	return fmt.Sprintf("Placeholder for document %q (%s): %s. The original material remains at %s and should be re-ingested once available.",
		doc.Name, doc.Type, reason, doc.StorageURI)
}

func pageEstimate(text string) int {
	n := len([]rune(text))
	if n == 0 {
		return 0
	}
	return (n-1)/charsPerPage + 1
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return strings.TrimSpace(string(runes[:previewLength])) + "…"
}
