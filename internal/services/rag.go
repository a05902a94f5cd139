package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/meridianvc/dealflow-backend/internal/clients/openai"
	"github.com/meridianvc/dealflow-backend/internal/embedding"
	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/repos"
	"github.com/meridianvc/dealflow-backend/internal/types"
)

// retrievalLimit is how many chunks one answer may draw on.
const retrievalLimit = 8

const snippetLength = 280

// InsufficientInformationAnswer is returned verbatim when the whole retrieval
// cascade comes up empty. An answer is never synthesized without retrieved
// context.
const InsufficientInformationAnswer = "I don't have enough information in the ingested documents to answer that question. " +
	"Try ingesting more material for this startup, or broaden the question."

// ModelUnavailableAnswer is returned when retrieval succeeded but the
// completion call did not. The retrieved sources still ship with it so the
// caller can read the material directly.
const ModelUnavailableAnswer = "The language model could not synthesize an answer right now. " +
	"The sources below were retrieved for this question and can be consulted directly."

// QueryScope narrows retrieval to a startup, a fund, or both.
type QueryScope struct {
	StartupID *uuid.UUID
	FundID    *uuid.UUID
}

// SourceRef describes one retrieved chunk backing an answer. Index is 1-based
// and matches the [SOURCE n] tags the model is instructed to cite.
type SourceRef struct {
	Index        int       `json:"index"`
	DocumentID   uuid.UUID `json:"document_id"`
	DocumentName string    `json:"document_name"`
	DocumentType string    `json:"document_type"`
	Page         int       `json:"page,omitempty"`
	Snippet      string    `json:"snippet"`
	Similarity   float64   `json:"similarity"`
}

type RAGAnswer struct {
	Answer  string      `json:"answer"`
	Sources []SourceRef `json:"sources"`
}

type RAGService interface {
	Answer(ctx context.Context, question string, scope QueryScope) (*RAGAnswer, error)
}

type ragService struct {
	chunks   repos.DocumentChunkRepo
	theses   repos.InvestmentThesisRepo
	queries  repos.QueryLogRepo
	embedder embedding.Client
	ai       openai.Client
	activity ActivityService
	log      *logger.Logger
}

func NewRAGService(
	log *logger.Logger,
	chunks repos.DocumentChunkRepo,
	theses repos.InvestmentThesisRepo,
	queries repos.QueryLogRepo,
	embedder embedding.Client,
	ai openai.Client,
	activity ActivityService,
) RAGService {
	return &ragService{
		chunks:   chunks,
		theses:   theses,
		queries:  queries,
		embedder: embedder,
		ai:       ai,
		activity: activity,
		log:      log.With("service", "RAGService"),
	}
}

func (s *ragService) Answer(ctx context.Context, question string, scope QueryScope) (*RAGAnswer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	hits := s.retrieve(ctx, question, scope)
	if len(hits) == 0 {
		result := &RAGAnswer{Answer: InsufficientInformationAnswer, Sources: []SourceRef{}}
		s.bookkeep(ctx, question, scope, result)
		return result, nil
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	sources := buildSources(hits)

	answer, err := s.ai.Complete(ctx, s.systemPrompt(ctx, scope), userPrompt(question, hits, sources), openai.CompletionOptions{
		Temperature: 0.2,
		MaxTokens:   900,
	})
	if err != nil {
		s.log.Warn("Answer completion failed; returning retrieved sources only", "error", err)
		result := &RAGAnswer{Answer: ModelUnavailableAnswer, Sources: sources}
		s.bookkeep(ctx, question, scope, result)
		return result, nil
	}

	result := &RAGAnswer{Answer: strings.TrimSpace(answer), Sources: sources}
	s.bookkeep(ctx, question, scope, result)
	return result, nil
}

// retrieve walks the cascade, each step attempted only when the previous one
// produced nothing:
//  1. vector search, full scope
//  2. keyword search, full scope
//  3. fund filter dropped
//  4. startup filter dropped
//  5. unscoped keyword search
func (s *ragService) retrieve(ctx context.Context, question string, scope QueryScope) []repos.ScoredChunk {
	filter := repos.ScopeFilter{StartupID: scope.StartupID, FundID: scope.FundID}

	var vec []float32
	if v, err := s.embedder.Embed(ctx, question); err != nil {
		s.log.Warn("Question embedding failed; vector steps skipped", "error", err)
	} else {
		vec = v
	}

	if hits := s.searchBoth(ctx, vec, question, filter); len(hits) > 0 {
		return hits
	}
	if filter.FundID != nil {
		if hits := s.searchBoth(ctx, vec, question, filter.WithoutFund()); len(hits) > 0 {
			s.log.Debug("Retrieval widened: fund filter dropped", "question", question)
			return hits
		}
	}
	if filter.StartupID != nil {
		if hits := s.searchBoth(ctx, vec, question, filter.WithoutStartup()); len(hits) > 0 {
			s.log.Debug("Retrieval widened: startup filter dropped", "question", question)
			return hits
		}
	}
	if !filter.IsEmpty() {
		if hits, err := s.chunks.SearchByKeyword(ctx, question, repos.ScopeFilter{}, retrievalLimit); err == nil && len(hits) > 0 {
			s.log.Debug("Retrieval widened: unscoped", "question", question)
			return hits
		}
	}
	return nil
}

func (s *ragService) searchBoth(ctx context.Context, vec []float32, question string, filter repos.ScopeFilter) []repos.ScoredChunk {
	if vec != nil {
		if hits, err := s.chunks.SearchByEmbedding(ctx, vec, filter, retrievalLimit); err == nil && len(hits) > 0 {
			return hits
		}
	}
	hits, err := s.chunks.SearchByKeyword(ctx, question, filter, retrievalLimit)
	if err != nil {
		s.log.Warn("Keyword search failed", "error", err)
		return nil
	}
	return hits
}

func (s *ragService) systemPrompt(ctx context.Context, scope QueryScope) string {
	var b strings.Builder
	b.WriteString("You are an analyst answering questions about venture deal-flow documents.\n")
	b.WriteString("Answer ONLY from the numbered sources supplied in the user message. ")
	b.WriteString("Cite every factual claim inline with its tag, e.g. [SOURCE 2]. ")
	b.WriteString("If the sources do not contain the answer, say so plainly. Never invent facts.\n")

	if scope.FundID != nil {
		thesis, err := s.theses.GetActiveByFundID(ctx, nil, *scope.FundID)
		if err != nil {
			s.log.Warn("Active thesis lookup failed", "fund_id", scope.FundID, "error", err)
		} else if thesis != nil {
			b.WriteString("\nFor framing only (not a source of facts), the fund's ")
			b.WriteString(renderThesisContext(thesis))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func userPrompt(question string, hits []repos.ScoredChunk, sources []SourceRef) string {
	var b strings.Builder
	b.WriteString("Sources:\n")
	for i, hit := range hits {
		src := sources[i]
		fmt.Fprintf(&b, "[SOURCE %d] %q (%s)", src.Index, src.DocumentName, src.DocumentType)
		if src.Page > 0 {
			fmt.Fprintf(&b, ", page %d", src.Page)
		}
		b.WriteString(": ")
		b.WriteString(hit.Chunk.Content)
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

func buildSources(hits []repos.ScoredChunk) []SourceRef {
	out := make([]SourceRef, 0, len(hits))
	for i, hit := range hits {
		var meta types.ChunkMetadata
		if len(hit.Chunk.Metadata) > 0 {
			_ = json.Unmarshal(hit.Chunk.Metadata, &meta)
		}
		name := meta.DocumentName
		if name == "" {
			name = "Untitled document"
		}
		docType := meta.DocumentType
		if docType == "" {
			docType = types.DocumentTypeOther
		}
		out = append(out, SourceRef{
			Index:        i + 1,
			DocumentID:   hit.Chunk.DocumentID,
			DocumentName: name,
			DocumentType: docType,
			Page:         meta.Page,
			Snippet:      snippet(hit.Chunk.Content),
			Similarity:   hit.Similarity,
		})
	}
	return out
}

func snippet(content string) string {
	runes := []rune(content)
	if len(runes) <= snippetLength {
		return content
	}
	return strings.TrimSpace(string(runes[:snippetLength])) + "…"
}

// bookkeep persists the audit record and the feed event. Both are best-effort.
func (s *ragService) bookkeep(ctx context.Context, question string, scope QueryScope, result *RAGAnswer) {
	ql := &types.QueryLog{
		FundID:    scope.FundID,
		StartupID: scope.StartupID,
		Question:  question,
		Answer:    result.Answer,
	}
	if raw, err := json.Marshal(result.Sources); err == nil {
		ql.Sources = datatypes.JSON(raw)
	}
	if err := s.queries.Create(ctx, nil, ql); err != nil {
		s.log.Warn("Query audit write failed", "error", err)
	}

	if s.activity != nil && scope.FundID != nil {
		s.activity.Record(ctx, types.ActivityQueryAnswered, *scope.FundID, scope.StartupID, map[string]any{
			"question":     question,
			"source_count": len(result.Sources),
		})
	}
}
