package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/repos"
	"github.com/meridianvc/dealflow-backend/internal/types"
)

type alignEnv struct {
	db       *gorm.DB
	ai       *fakeAI
	startups repos.StartupRepo
	theses   repos.InvestmentThesisRepo
	svc      AlignmentService
}

func newAlignEnv(t *testing.T, ai *fakeAI) *alignEnv {
	t.Helper()
	db := newServicesDB(t)
	log := logger.NewNop()
	env := &alignEnv{
		db:       db,
		ai:       ai,
		startups: repos.NewStartupRepo(db, log),
		theses:   repos.NewInvestmentThesisRepo(db, log),
	}
	env.svc = NewAlignmentService(log,
		env.startups,
		repos.NewDocumentRepo(db, log),
		repos.NewDocumentChunkRepo(db, log, nil),
		env.theses,
		ai, nil)
	return env
}

const validAlignmentJSON = `{
	"overall_score": 82,
	"summary": "Strong traction for the stage.",
	"categories": {
		"team": {"score": 85, "justification": "Repeat founders."},
		"traction": {"score": 78, "justification": "MRR growing 15% monthly."}
	},
	"strengths": ["Experienced team"],
	"weaknesses": ["Single-product risk"],
	"recommendations": ["Request cohort data"],
	"risk_factors": ["Competitive market"]
}`

func TestScoreLLMPath(t *testing.T) {
	env := newAlignEnv(t, &fakeAI{response: validAlignmentJSON})
	fundID := uuid.New()
	startup := seedStartup(t, env.db, fundID, "Acme", "fintech", "seed")
	doc := seedDocument(t, env.db, startup.ID, fundID, "Deck", types.DocumentTypePitchDeck)
	seedChunk(t, env.db, doc, 0, "MRR is $15,000 and growing.", nil)

	got, err := env.svc.Score(context.Background(), startup.ID, fundID)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if !got.UsedLLM || got.FallbackMode {
		t.Fatalf("provenance flags wrong: %+v", got)
	}
	if math.Abs(got.Score-0.82) > 1e-9 {
		t.Fatalf("score = %v, want 0.82", got.Score)
	}
	if got.CriteriaScores["team"].Score != 0.85 {
		t.Fatalf("team score = %v", got.CriteriaScores["team"].Score)
	}
	if got.DocumentCount != 1 {
		t.Fatalf("document count = %d", got.DocumentCount)
	}

	// The score writes through to the startup's cached analysis.
	reloaded, err := env.startups.GetByID(context.Background(), nil, startup.ID)
	if err != nil {
		t.Fatalf("reload startup: %v", err)
	}
	if reloaded.AlignmentScore == nil || math.Abs(*reloaded.AlignmentScore-0.82) > 1e-9 {
		t.Fatalf("cached score = %v", reloaded.AlignmentScore)
	}
	var cached types.AlignmentResult
	if err := json.Unmarshal(reloaded.AlignmentResult, &cached); err != nil {
		t.Fatalf("cached result: %v", err)
	}
	if cached.Summary != "Strong traction for the stage." {
		t.Fatalf("cached summary = %q", cached.Summary)
	}
}

func TestScoreFallsBackOnMalformedOutput(t *testing.T) {
	cases := map[string]*fakeAI{
		"not json":        {response: "I think it's a great company"},
		"score range":     {response: `{"overall_score": 140, "summary": "x", "categories": {"team": {"score": 50}}}`},
		"missing fields":  {response: `{"overall_score": 50}`},
		"completion call": {err: errors.New("model overloaded")},
	}
	for name, ai := range cases {
		t.Run(name, func(t *testing.T) {
			env := newAlignEnv(t, ai)
			fundID := uuid.New()
			startup := seedStartup(t, env.db, fundID, "Acme", "fintech", "seed")
			doc := seedDocument(t, env.db, startup.ID, fundID, "Deck", types.DocumentTypePitchDeck)
			seedChunk(t, env.db, doc, 0, "Growth metrics look strong.", nil)

			got, err := env.svc.Score(context.Background(), startup.ID, fundID)
			if err != nil {
				t.Fatalf("fallback must succeed: %v", err)
			}
			if got.UsedLLM || !got.FallbackMode {
				t.Fatalf("provenance flags wrong: %+v", got)
			}
			if got.Score < 0.1 || got.Score > 0.9 {
				t.Fatalf("heuristic score %v outside [0.1, 0.9]", got.Score)
			}
			if got.Summary == "" || len(got.CriteriaScores) == 0 || len(got.RiskFactors) == 0 {
				t.Fatalf("fallback result incomplete: %+v", got)
			}
		})
	}
}

func TestScoreNoMaterialSkipsLLM(t *testing.T) {
	ai := &fakeAI{response: validAlignmentJSON}
	env := newAlignEnv(t, ai)
	fundID := uuid.New()
	startup := seedStartup(t, env.db, fundID, "Acme", "fintech", "seed")

	got, err := env.svc.Score(context.Background(), startup.ID, fundID)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if ai.calls != 0 {
		t.Fatal("LLM must not be called with no documents or chunks")
	}
	if !got.FallbackMode || got.DocumentCount != 0 {
		t.Fatalf("expected empty-material fallback: %+v", got)
	}
}

func TestHeuristicIsDeterministic(t *testing.T) {
	env := newAlignEnv(t, &fakeAI{err: errors.New("down")})
	fundID := uuid.New()
	startup := seedStartup(t, env.db, fundID, "Acme", "fintech", "series_a")
	thesis := &types.InvestmentThesis{
		FundID: fundID,
		Name:   "Fintech focus",
		Active: true,
		Verticals: mustJSON(t, []types.WeightedPreference{
			{Name: "fintech", Weight: 0.7}, {Name: "healthtech", Weight: 0.3},
		}),
		Stages: mustJSON(t, []types.StagePreference{
			{Stage: "seed", Weight: 0.6}, {Stage: "series_a", Weight: 0.4},
		}),
	}
	if _, err := env.theses.Create(context.Background(), nil, thesis); err != nil {
		t.Fatalf("seed thesis: %v", err)
	}
	for _, dt := range []string{types.DocumentTypePitchDeck, types.DocumentTypeFinancials} {
		doc := seedDocument(t, env.db, startup.ID, fundID, dt, dt)
		seedChunk(t, env.db, doc, 0, "Team of experienced founders, strong growth in revenue and retention.", nil)
	}

	first, err := env.svc.Score(context.Background(), startup.ID, fundID)
	if err != nil {
		t.Fatalf("first score: %v", err)
	}
	second, err := env.svc.Score(context.Background(), startup.ID, fundID)
	if err != nil {
		t.Fatalf("second score: %v", err)
	}

	// Identical inputs must give an identical result, timestamp aside.
	first.ComputedAt = second.ComputedAt
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("heuristic not deterministic:\n%+v\n%+v", first, second)
	}
	if first.Score != second.Score {
		t.Fatalf("scores differ: %v vs %v", first.Score, second.Score)
	}
}

func TestHeuristicComponents(t *testing.T) {
	thesis := &types.InvestmentThesis{
		Verticals: mustJSON(t, []types.WeightedPreference{{Name: "Fintech", Weight: 1}}),
		Stages:    mustJSON(t, []types.StagePreference{{Stage: "seed", Weight: 0.8}, {Stage: "growth", Weight: 0.2}}),
	}

	if got := verticalScore(&types.Startup{Vertical: "fintech"}, thesis); got != 1 {
		t.Fatalf("vertical match = %v", got)
	}
	if got := verticalScore(&types.Startup{Vertical: "gaming"}, thesis); got != 0 {
		t.Fatalf("vertical miss = %v", got)
	}
	if got := verticalScore(&types.Startup{Vertical: "gaming"}, nil); got != 0.5 {
		t.Fatalf("no preference = %v", got)
	}

	if got := stageScore(&types.Startup{Stage: "seed"}, thesis); got != 1 {
		t.Fatalf("top stage = %v", got)
	}
	if got := stageScore(&types.Startup{Stage: "growth"}, thesis); got != 0.25 {
		t.Fatalf("scaled stage = %v", got)
	}
	if got := stageScore(&types.Startup{Stage: "series_z"}, thesis); got != 0 {
		t.Fatalf("unknown stage = %v", got)
	}

	full := []*types.Document{
		{Type: types.DocumentTypePitchDeck}, {Type: types.DocumentTypeFinancials},
		{Type: types.DocumentTypeTech}, {Type: types.DocumentTypeMarket},
		{Type: types.DocumentTypeLegal}, {Type: types.DocumentTypeOther},
	}
	if got := coverageScore(full); math.Abs(got-1) > 1e-9 {
		t.Fatalf("full coverage = %v", got)
	}
	if got := coverageScore(nil); got != 0 {
		t.Fatalf("no coverage = %v", got)
	}
}

func TestNormalizeWeights(t *testing.T) {
	drifted := []types.CriteriaNode{
		{Key: "a", Weight: 0.5}, {Key: "b", Weight: 0.5}, {Key: "c", Weight: 0.5},
	}
	got := normalizeWeights(drifted)
	var sum float64
	for _, n := range got {
		sum += n.Weight
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("re-normalized sum = %v", sum)
	}
	// Originals untouched.
	if drifted[0].Weight != 0.5 {
		t.Fatal("input mutated")
	}

	fine := []types.CriteriaNode{{Key: "a", Weight: 0.6}, {Key: "b", Weight: 0.401}}
	if got := normalizeWeights(fine); got[0].Weight != 0.6 {
		t.Fatalf("within-tolerance weights must pass through: %v", got[0].Weight)
	}

	zero := []types.CriteriaNode{
		{Key: "a", Weight: 0}, {Key: "b", Weight: 0}, {Key: "c", Weight: 0}, {Key: "d", Weight: 0},
	}
	for _, n := range normalizeWeights(zero) {
		if math.Abs(n.Weight-0.25) > 1e-9 {
			t.Fatalf("zero-sum level must get uniform weights: %v", n.Weight)
		}
	}
	if zero[0].Weight != 0 {
		t.Fatal("input mutated")
	}
}

func TestDefaultCriteriaTreeParses(t *testing.T) {
	nodes := criteriaTree(nil)
	if len(nodes) < 4 {
		t.Fatalf("default tree too small: %d", len(nodes))
	}
	var sum float64
	keys := map[string]bool{}
	for _, n := range nodes {
		sum += n.Weight
		keys[n.Key] = true
	}
	if math.Abs(sum-1) > 0.01 {
		t.Fatalf("default weights sum to %v", sum)
	}
	for _, k := range []string{"team", "market", "traction"} {
		if !keys[k] {
			t.Fatalf("default tree missing %q", k)
		}
	}
}
