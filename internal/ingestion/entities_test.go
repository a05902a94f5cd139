package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/meridianvc/dealflow-backend/internal/clients/openai"
	"github.com/meridianvc/dealflow-backend/internal/logger"
)

type fakeAI struct {
	lastUser string
	response string
	err      error
}

func (f *fakeAI) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAI) Complete(ctx context.Context, system, user string, opts openai.CompletionOptions) (string, error) {
	f.lastUser = user
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestExtractParsesWellFormedOutput(t *testing.T) {
	ai := &fakeAI{response: `{
		"people": [{"name": "Ada King", "role": "CEO", "confidence": 0.9}],
		"organizations": [{"name": "Acme", "relationship": "subject", "confidence": 0.95}],
		"metrics": [{"name": "MRR", "value": "15000", "unit": "USD", "context": "monthly recurring revenue", "confidence": 0.8}],
		"key_points": ["Strong growth"],
		"products": ["Acme API"],
		"technologies": ["Go"]
	}`}
	ex := NewEntityExtractor(logger.NewNop(), ai)

	got := ex.Extract(context.Background(), "Acme pitch deck. MRR is $15,000.")
	if len(got.People) != 1 || got.People[0].Name != "Ada King" {
		t.Fatalf("people: %+v", got.People)
	}
	if len(got.Metrics) != 1 || got.Metrics[0].Value != "15000" {
		t.Fatalf("metrics: %+v", got.Metrics)
	}
	if got.Counts()["key_points"] != 1 {
		t.Fatalf("counts: %v", got.Counts())
	}
}

func TestExtractNeverPropagatesFailures(t *testing.T) {
	cases := map[string]*fakeAI{
		"call error":     {err: errors.New("rate limited")},
		"malformed json": {response: "sorry, I cannot"},
	}
	for name, ai := range cases {
		t.Run(name, func(t *testing.T) {
			got := NewEntityExtractor(logger.NewNop(), ai).Extract(context.Background(), "some text")
			if got == nil {
				t.Fatal("record must never be nil")
			}
			if got.People == nil || got.Metrics == nil || got.KeyPoints == nil {
				t.Fatalf("categories must be typed-but-empty: %+v", got)
			}
			if len(got.People)+len(got.Organizations)+len(got.Metrics) != 0 {
				t.Fatalf("expected empty record, got %+v", got)
			}
		})
	}
}

func TestExtractSamplesLongInput(t *testing.T) {
	ai := &fakeAI{response: `{}`}
	ex := NewEntityExtractor(logger.NewNop(), ai)

	head := strings.Repeat("h", 6000)
	tail := strings.Repeat("t", 6000)
	ex.Extract(context.Background(), head+tail)

	if len(ai.lastUser) > entitySampleLimit+200 {
		t.Fatalf("prompt not sampled: %d chars", len(ai.lastUser))
	}
	if !strings.Contains(ai.lastUser, "hhhh") || !strings.Contains(ai.lastUser, "tttt") {
		t.Fatal("sample should keep both head and tail")
	}
}

func TestExtractCapsKeyPoints(t *testing.T) {
	ai := &fakeAI{response: `{"key_points": ["1","2","3","4","5","6","7"]}`}
	got := NewEntityExtractor(logger.NewNop(), ai).Extract(context.Background(), "text")
	if len(got.KeyPoints) != 5 {
		t.Fatalf("key points capped at 5, got %d", len(got.KeyPoints))
	}
}

func TestExtractEmptyInputSkipsModel(t *testing.T) {
	ai := &fakeAI{err: errors.New("should not be called")}
	got := NewEntityExtractor(logger.NewNop(), ai).Extract(context.Background(), "   ")
	if ai.lastUser != "" {
		t.Fatal("model must not be called for blank input")
	}
	if len(got.People) != 0 {
		t.Fatalf("expected empty record: %+v", got)
	}
}
