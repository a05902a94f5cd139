package services

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/meridianvc/dealflow-backend/internal/clients/openai"
	"github.com/meridianvc/dealflow-backend/internal/types"
)

func newServicesDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "services_test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&types.Fund{}, &types.Startup{}, &types.Document{},
		&types.DocumentChunk{}, &types.InvestmentThesis{},
		&types.ActivityEvent{}, &types.QueryLog{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fakeAI scripts one completion response and captures the prompts it saw.
type fakeAI struct {
	response   string
	err        error
	calls      int
	lastSystem string
	lastUser   string
}

func (f *fakeAI) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	return nil, nil
}

func (f *fakeAI) Complete(ctx context.Context, system, user string, opts openai.CompletionOptions) (string, error) {
	f.calls++
	f.lastSystem = system
	f.lastUser = user
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

// axisEmbedder maps every input to a fixed vector.
type axisEmbedder struct {
	vec []float32
	err error
}

func (e *axisEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.vec, nil
}

func (e *axisEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v, err := e.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *axisEmbedder) Dimension() int { return len(e.vec) }

func mustJSON(t *testing.T, v any) datatypes.JSON {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return datatypes.JSON(raw)
}

func seedChunk(t *testing.T, db *gorm.DB, doc *types.Document, idx int, content string, vec []float32) *types.DocumentChunk {
	t.Helper()
	meta := mustJSON(t, types.ChunkMetadata{
		DocumentName: doc.Name,
		DocumentType: doc.Type,
		ChunkIndex:   idx,
		Page:         1,
	})
	ch := &types.DocumentChunk{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		StartupID:  doc.StartupID,
		FundID:     doc.FundID,
		Index:      idx,
		Content:    content,
		Metadata:   meta,
	}
	if vec != nil {
		ch.Embedding = mustJSON(t, vec)
	}
	if err := db.Create(ch).Error; err != nil {
		t.Fatalf("seed chunk: %v", err)
	}
	return ch
}

func seedDocument(t *testing.T, db *gorm.DB, startupID, fundID uuid.UUID, name, docType string) *types.Document {
	t.Helper()
	doc := &types.Document{
		ID:        uuid.New(),
		StartupID: startupID,
		FundID:    fundID,
		Name:      name,
		Type:      docType,
		Status:    types.DocumentStatusCompleted,
	}
	if err := db.Create(doc).Error; err != nil {
		t.Fatalf("seed document: %v", err)
	}
	return doc
}

func seedStartup(t *testing.T, db *gorm.DB, fundID uuid.UUID, name, vertical, stage string) *types.Startup {
	t.Helper()
	s := &types.Startup{
		ID:       uuid.New(),
		FundID:   fundID,
		Name:     name,
		Vertical: vertical,
		Stage:    stage,
	}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("seed startup: %v", err)
	}
	return s
}
