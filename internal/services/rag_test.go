package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/repos"
	"github.com/meridianvc/dealflow-backend/internal/types"
)

type ragEnv struct {
	db      *gorm.DB
	ai      *fakeAI
	embed   *axisEmbedder
	theses  repos.InvestmentThesisRepo
	queries repos.QueryLogRepo
	svc     RAGService
}

func newRAGEnv(t *testing.T, ai *fakeAI, embed *axisEmbedder) *ragEnv {
	t.Helper()
	db := newServicesDB(t)
	log := logger.NewNop()
	env := &ragEnv{
		db:      db,
		ai:      ai,
		embed:   embed,
		theses:  repos.NewInvestmentThesisRepo(db, log),
		queries: repos.NewQueryLogRepo(db, log),
	}
	chunks := repos.NewDocumentChunkRepo(db, log, embed)
	env.svc = NewRAGService(log, chunks, env.theses, env.queries, embed, ai, nil)
	return env
}

func TestAnswerInsufficientInformation(t *testing.T) {
	env := newRAGEnv(t, &fakeAI{response: "should never be used"}, &axisEmbedder{vec: []float32{1, 0, 0}})

	startupID, fundID := uuid.New(), uuid.New()
	got, err := env.svc.Answer(context.Background(), "What is the MRR?", QueryScope{StartupID: &startupID, FundID: &fundID})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got.Answer != InsufficientInformationAnswer {
		t.Fatalf("answer = %q", got.Answer)
	}
	if len(got.Sources) != 0 {
		t.Fatalf("sources must be empty, got %d", len(got.Sources))
	}
	if env.ai.calls != 0 {
		t.Fatal("completion must not run without retrieved context")
	}

	logs, err := env.queries.ListByFundID(context.Background(), nil, fundID, 10)
	if err != nil || len(logs) != 1 {
		t.Fatalf("audit record: err=%v n=%d", err, len(logs))
	}
	if logs[0].Answer != InsufficientInformationAnswer {
		t.Fatalf("audited answer = %q", logs[0].Answer)
	}
}

func TestAnswerDegradesOnCompletionError(t *testing.T) {
	env := newRAGEnv(t, &fakeAI{err: errors.New("model overloaded (503)")}, &axisEmbedder{vec: []float32{1, 0, 0}})

	startupID, fundID := uuid.New(), uuid.New()
	doc := seedDocument(t, env.db, startupID, fundID, "Acme Financials", types.DocumentTypeFinancials)
	seedChunk(t, env.db, doc, 0, "Monthly recurring revenue reached $15,000 in June.", []float32{1, 0, 0})

	got, err := env.svc.Answer(context.Background(), "What is the MRR?",
		QueryScope{StartupID: &startupID, FundID: &fundID})
	if err != nil {
		t.Fatalf("Answer must not surface completion failures: %v", err)
	}
	if got.Answer != ModelUnavailableAnswer {
		t.Fatalf("answer = %q", got.Answer)
	}
	if len(got.Sources) != 1 {
		t.Fatalf("retrieved sources must survive the degraded path: sources=%d", len(got.Sources))
	}
	if got.Sources[0].DocumentName != "Acme Financials" {
		t.Fatalf("source doc = %q", got.Sources[0].DocumentName)
	}
	if env.ai.calls != 1 {
		t.Fatalf("completion calls = %d", env.ai.calls)
	}

	logs, err := env.queries.ListByFundID(context.Background(), nil, fundID, 10)
	if err != nil || len(logs) != 1 {
		t.Fatalf("audit record: err=%v n=%d", err, len(logs))
	}
	if logs[0].Answer != ModelUnavailableAnswer {
		t.Fatalf("audited answer = %q", logs[0].Answer)
	}
}

func TestAnswerKeywordStepCoversUnembeddedChunks(t *testing.T) {
	env := newRAGEnv(t, &fakeAI{response: "Churn is 2% [SOURCE 1]."}, &axisEmbedder{vec: []float32{1, 0, 0}})

	startupID, fundID := uuid.New(), uuid.New()
	doc := seedDocument(t, env.db, startupID, fundID, "Metrics Memo", types.DocumentTypeFinancials)
	seedChunk(t, env.db, doc, 0, "Monthly churn held at 2 percent.", nil)

	// Out-of-scope material mentioning the same terms must not win while the
	// scoped keyword step has matches.
	other := seedDocument(t, env.db, uuid.New(), uuid.New(), "Other Memo", types.DocumentTypeOther)
	seedChunk(t, env.db, other, 0, "Churn benchmarks across the portfolio.", []float32{0, 1, 0})

	got, err := env.svc.Answer(context.Background(), "What is the churn?",
		QueryScope{StartupID: &startupID, FundID: &fundID})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(got.Sources) != 1 {
		t.Fatalf("scoped keyword search should have matched: sources=%d", len(got.Sources))
	}
	if got.Sources[0].DocumentName != "Metrics Memo" {
		t.Fatalf("source doc = %q", got.Sources[0].DocumentName)
	}
}

func TestAnswerCascadeDropsFundFilter(t *testing.T) {
	env := newRAGEnv(t, &fakeAI{response: "MRR is $15,000 [SOURCE 1]."}, &axisEmbedder{vec: []float32{1, 0, 0}})

	startupID, rightFund, wrongFund := uuid.New(), uuid.New(), uuid.New()
	doc := seedDocument(t, env.db, startupID, rightFund, "Acme Financials", types.DocumentTypeFinancials)
	seedChunk(t, env.db, doc, 0, "Monthly recurring revenue reached $15,000 in June.", []float32{1, 0, 0})

	got, err := env.svc.Answer(context.Background(), "What is the monthly recurring revenue?",
		QueryScope{StartupID: &startupID, FundID: &wrongFund})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(got.Sources) != 1 {
		t.Fatalf("fund filter should have been dropped: sources=%d", len(got.Sources))
	}
	if got.Sources[0].DocumentName != "Acme Financials" {
		t.Fatalf("source doc = %q", got.Sources[0].DocumentName)
	}
	if !strings.Contains(env.ai.lastUser, "[SOURCE 1]") {
		t.Fatalf("context block missing source tag:\n%s", env.ai.lastUser)
	}
	if !strings.Contains(env.ai.lastUser, "$15,000") {
		t.Fatalf("context block missing chunk content:\n%s", env.ai.lastUser)
	}
}

func TestAnswerUnscopedKeywordIsLastResort(t *testing.T) {
	env := newRAGEnv(t, &fakeAI{response: "answer [SOURCE 1]"}, &axisEmbedder{vec: []float32{0, 0, 1}})

	// Material belongs to an unrelated startup and fund; only step 5 can
	// reach it.
	doc := seedDocument(t, env.db, uuid.New(), uuid.New(), "Market Study", types.DocumentTypeMarket)
	seedChunk(t, env.db, doc, 0, "European fintech adoption is accelerating.", []float32{1, 0, 0})

	otherStartup, otherFund := uuid.New(), uuid.New()
	got, err := env.svc.Answer(context.Background(), "fintech adoption in Europe?",
		QueryScope{StartupID: &otherStartup, FundID: &otherFund})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(got.Sources) != 1 {
		t.Fatalf("unscoped fallback should have matched: sources=%d", len(got.Sources))
	}
}

func TestAnswerSourcesSortedAndNumbered(t *testing.T) {
	env := newRAGEnv(t, &fakeAI{response: "See [SOURCE 1] and [SOURCE 2]."}, &axisEmbedder{vec: []float32{1, 0, 0}})

	startupID, fundID := uuid.New(), uuid.New()
	doc := seedDocument(t, env.db, startupID, fundID, "Deck", types.DocumentTypePitchDeck)
	seedChunk(t, env.db, doc, 0, "A weaker match about hiring plans.", []float32{0.3, 0.95, 0})
	seedChunk(t, env.db, doc, 1, "A strong match about revenue.", []float32{1, 0, 0})

	got, err := env.svc.Answer(context.Background(), "revenue?", QueryScope{StartupID: &startupID})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(got.Sources) != 2 {
		t.Fatalf("sources = %d", len(got.Sources))
	}
	for i, src := range got.Sources {
		if src.Index != i+1 {
			t.Fatalf("source %d has index %d", i, src.Index)
		}
	}
	if got.Sources[0].Similarity < got.Sources[1].Similarity {
		t.Fatal("sources not sorted by descending relevance")
	}
	if !strings.Contains(got.Sources[0].Snippet, "strong match") {
		t.Fatalf("best source = %q", got.Sources[0].Snippet)
	}
}

func TestAnswerInjectsActiveThesisForFundScope(t *testing.T) {
	env := newRAGEnv(t, &fakeAI{response: "answer [SOURCE 1]"}, &axisEmbedder{vec: []float32{1, 0, 0}})

	startupID, fundID := uuid.New(), uuid.New()
	thesis := &types.InvestmentThesis{FundID: fundID, Name: "Infra-first", Active: true}
	if _, err := env.theses.Create(context.Background(), nil, thesis); err != nil {
		t.Fatalf("seed thesis: %v", err)
	}

	doc := seedDocument(t, env.db, startupID, fundID, "Deck", types.DocumentTypePitchDeck)
	seedChunk(t, env.db, doc, 0, "Revenue details.", []float32{1, 0, 0})

	if _, err := env.svc.Answer(context.Background(), "revenue?", QueryScope{StartupID: &startupID, FundID: &fundID}); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !strings.Contains(env.ai.lastSystem, "Infra-first") {
		t.Fatalf("system prompt missing thesis context:\n%s", env.ai.lastSystem)
	}
}
