package repos

import (
	"context"
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/meridianvc/dealflow-backend/internal/embedding"
	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/normalization"
	"github.com/meridianvc/dealflow-backend/internal/types"
)

// candidateScanLimit bounds how many scoped rows the in-process cosine
// ranking will consider per query.
const candidateScanLimit = 1200

var nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// ScoredChunk pairs a chunk with its retrieval score. Similarity is
// 1 - cosine distance for vector hits and 0 for keyword hits.
type ScoredChunk struct {
	Chunk      *types.DocumentChunk
	Similarity float64
}

type DocumentChunkRepo interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, chunks []*types.DocumentChunk) ([]*types.DocumentChunk, error)
	CreateWithEmbedding(ctx context.Context, tx *gorm.DB, chunk *types.DocumentChunk, text string, vector []float32) (*types.DocumentChunk, error)
	GetByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) ([]*types.DocumentChunk, error)
	GetByStartupID(ctx context.Context, tx *gorm.DB, startupID uuid.UUID, limit int) ([]*types.DocumentChunk, error)
	CountByStartupID(ctx context.Context, tx *gorm.DB, startupID uuid.UUID) (int64, error)
	SearchByEmbedding(ctx context.Context, vector []float32, filter ScopeFilter, limit int) ([]ScoredChunk, error)
	SearchByKeyword(ctx context.Context, query string, filter ScopeFilter, limit int) ([]ScoredChunk, error)
}

type documentChunkRepo struct {
	db       *gorm.DB
	log      *logger.Logger
	embedder embedding.Client
}

// NewDocumentChunkRepo builds the chunk store. The embedder is used only by
// CreateWithEmbedding when no precomputed vector is supplied; it may be nil
// if callers always pass vectors.
func NewDocumentChunkRepo(db *gorm.DB, baseLog *logger.Logger, embedder embedding.Client) DocumentChunkRepo {
	return &documentChunkRepo{
		db:       db,
		log:      baseLog.With("repo", "DocumentChunkRepo"),
		embedder: embedder,
	}
}

func (r *documentChunkRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *documentChunkRepo) CreateBatch(ctx context.Context, tx *gorm.DB, chunks []*types.DocumentChunk) ([]*types.DocumentChunk, error) {
	if len(chunks) == 0 {
		return []*types.DocumentChunk{}, nil
	}
	for _, ch := range chunks {
		if ch.ID == uuid.Nil {
			ch.ID = uuid.New()
		}
		ch.Content = normalization.SanitizeContent(ch.Content)
	}

	// Keep batches small because Content is large.
	const batchSize = 100
	if err := r.conn(tx).WithContext(ctx).CreateInBatches(chunks, batchSize).Error; err != nil {
		return nil, err
	}
	return chunks, nil
}

// CreateWithEmbedding persists one chunk. A precomputed vector is stored
// directly; otherwise the text is embedded (the embedding client owns the
// retry budget) and on exhaustion the chunk is stored with a null embedding
// and an error note rather than discarded.
func (r *documentChunkRepo) CreateWithEmbedding(ctx context.Context, tx *gorm.DB, chunk *types.DocumentChunk, text string, vector []float32) (*types.DocumentChunk, error) {
	if vector == nil && r.embedder != nil && strings.TrimSpace(text) != "" {
		vec, err := r.embedder.Embed(ctx, text)
		if err != nil {
			r.log.Warn("Chunk embedding failed; storing without vector",
				"document_id", chunk.DocumentID, "chunk_index", chunk.Index, "error", err)
			chunk.Metadata = annotateEmbedError(chunk.Metadata, err.Error())
		} else {
			vector = vec
		}
	}
	if vector != nil {
		raw, err := MarshalVector(vector)
		if err != nil {
			return nil, err
		}
		chunk.Embedding = raw
	}
	created, err := r.CreateBatch(ctx, tx, []*types.DocumentChunk{chunk})
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

func (r *documentChunkRepo) GetByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) ([]*types.DocumentChunk, error) {
	var results []*types.DocumentChunk
	if err := r.conn(tx).WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("chunk_index ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *documentChunkRepo) GetByStartupID(ctx context.Context, tx *gorm.DB, startupID uuid.UUID, limit int) ([]*types.DocumentChunk, error) {
	var results []*types.DocumentChunk
	q := r.conn(tx).WithContext(ctx).
		Where("startup_id = ?", startupID).
		Order("created_at DESC, chunk_index ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *documentChunkRepo) CountByStartupID(ctx context.Context, tx *gorm.DB, startupID uuid.UUID) (int64, error) {
	var n int64
	if err := r.conn(tx).WithContext(ctx).
		Model(&types.DocumentChunk{}).
		Where("startup_id = ?", startupID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// SearchByEmbedding ranks a bounded scoped candidate scan by cosine
// similarity, nearest first. Any lower-level failure degrades to an
// empty-query keyword search so callers always receive a list.
func (r *documentChunkRepo) SearchByEmbedding(ctx context.Context, vector []float32, filter ScopeFilter, limit int) ([]ScoredChunk, error) {
	if len(vector) == 0 || limit <= 0 {
		return r.SearchByKeyword(ctx, "", filter, limit)
	}

	var rows []*types.DocumentChunk
	q := filter.apply(r.db.WithContext(ctx).Model(&types.DocumentChunk{})).
		Where("embedding IS NOT NULL").
		Order("created_at DESC").
		Limit(candidateScanLimit)
	if err := q.Find(&rows).Error; err != nil {
		r.log.Warn("Vector candidate scan failed; degrading to keyword search", "error", err)
		return r.SearchByKeyword(ctx, "", filter, limit)
	}

	scored := make([]ScoredChunk, 0, len(rows))
	for _, ch := range rows {
		emb, err := ParseVector(ch.Embedding)
		if err != nil || len(emb) != len(vector) {
			continue
		}
		sim, err := embedding.Cosine(vector, emb)
		if err != nil {
			continue
		}
		scored = append(scored, ScoredChunk{Chunk: ch, Similarity: sim})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// SearchByKeyword matches chunks whose content contains any query token,
// case-insensitively. An empty or tokenless query returns the scoped listing
// up to limit.
func (r *documentChunkRepo) SearchByKeyword(ctx context.Context, query string, filter ScopeFilter, limit int) ([]ScoredChunk, error) {
	if limit <= 0 {
		return []ScoredChunk{}, nil
	}
	q := filter.apply(r.db.WithContext(ctx).Model(&types.DocumentChunk{}))

	tokens := TokenizeQuery(query)
	if len(tokens) > 0 {
		var clauses []string
		var args []any
		for _, tok := range tokens {
			clauses = append(clauses, "LOWER(content) LIKE ?")
			args = append(args, "%"+tok+"%")
		}
		q = q.Where(strings.Join(clauses, " OR "), args...)
	}

	var rows []*types.DocumentChunk
	if err := q.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ScoredChunk, 0, len(rows))
	for _, ch := range rows {
		out = append(out, ScoredChunk{Chunk: ch})
	}
	return out, nil
}

// TokenizeQuery lowercases, strips non-word characters and keeps tokens of
// at least two characters.
func TokenizeQuery(query string) []string {
	var out []string
	for _, w := range nonWordRe.Split(strings.ToLower(query), -1) {
		if len([]rune(w)) >= 2 {
			out = append(out, w)
		}
	}
	return out
}

func annotateEmbedError(meta datatypes.JSON, msg string) datatypes.JSON {
	m := map[string]any{}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &m)
	}
	m["embed_error"] = msg
	m["embed_failed_at"] = time.Now().UTC().Format(time.RFC3339)
	raw, err := json.Marshal(m)
	if err != nil {
		return meta
	}
	return datatypes.JSON(raw)
}
