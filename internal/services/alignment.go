package services

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/meridianvc/dealflow-backend/internal/clients/openai"
	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/repos"
	"github.com/meridianvc/dealflow-backend/internal/types"
)

// chunkSampleLimit bounds how much chunk text one scoring call may read.
const chunkSampleLimit = 64

//go:embed default_criteria.yaml
var defaultCriteriaYAML []byte

// heuristicWeights is the component mix of the fallback scorer. One table so
// the whole tuning surface is visible in one place.
var heuristicWeights = struct {
	Vertical float64
	Stage    float64
	Coverage float64
	Keywords float64
}{
	Vertical: 0.25,
	Stage:    0.15,
	Coverage: 0.35,
	Keywords: 0.25,
}

// coverageWeights ranks document categories by how much signal they carry for
// scoring. Their sum is 1.0.
var coverageWeights = map[string]float64{
	types.DocumentTypePitchDeck:  0.25,
	types.DocumentTypeFinancials: 0.25,
	types.DocumentTypeTech:       0.20,
	types.DocumentTypeMarket:     0.15,
	types.DocumentTypeLegal:      0.10,
	types.DocumentTypeOther:      0.05,
}

// stageScores is the fallback stage lookup when a thesis supplies no stage
// preferences.
var stageScores = map[string]float64{
	"pre_seed": 0.9,
	"seed":     1.0,
	"series_a": 0.8,
	"series_b": 0.5,
	"series_c": 0.3,
	"growth":   0.2,
}

// keywordFamilies feed the keyword-presence component. Each occurrence adds a
// small increment, capped per family.
var keywordFamilies = map[string][]string{
	"growth":     {"growth", "growing", "mrr", "arr", "revenue", "retention"},
	"metrics":    {"metric", "kpi", "conversion", "churn", "cac", "ltv", "margin"},
	"innovation": {"patent", "proprietary", "novel", "breakthrough", "ai", "platform"},
	"team":       {"founder", "team", "engineer", "phd", "experienced", "serial"},
}

const (
	keywordIncrement = 0.05
	keywordFamilyCap = 0.25
)

// heuristicClamp bounds the fallback score so a keyword-counting pass never
// presents certainty at either extreme.
const (
	heuristicFloor = 0.1
	heuristicCeil  = 0.9
)

// AlignmentService computes how well a startup matches a fund's investment
// thesis. The LLM path is primary; a deterministic heuristic runs whenever
// the LLM cannot, and the two write the identical persisted shape.
type AlignmentService interface {
	Score(ctx context.Context, startupID, fundID uuid.UUID) (*types.AlignmentResult, error)

	// Recompute is the fire-and-forget form used after ingestion.
	Recompute(ctx context.Context, startupID, fundID uuid.UUID) error
}

type alignmentService struct {
	startups repos.StartupRepo
	docs     repos.DocumentRepo
	chunks   repos.DocumentChunkRepo
	theses   repos.InvestmentThesisRepo
	ai       openai.Client
	activity ActivityService
	log      *logger.Logger
}

func NewAlignmentService(
	log *logger.Logger,
	startups repos.StartupRepo,
	docs repos.DocumentRepo,
	chunks repos.DocumentChunkRepo,
	theses repos.InvestmentThesisRepo,
	ai openai.Client,
	activity ActivityService,
) AlignmentService {
	return &alignmentService{
		startups: startups,
		docs:     docs,
		chunks:   chunks,
		theses:   theses,
		ai:       ai,
		activity: activity,
		log:      log.With("service", "AlignmentService"),
	}
}

func (s *alignmentService) Recompute(ctx context.Context, startupID, fundID uuid.UUID) error {
	_, err := s.Score(ctx, startupID, fundID)
	return err
}

func (s *alignmentService) Score(ctx context.Context, startupID, fundID uuid.UUID) (*types.AlignmentResult, error) {
	startup, err := s.startups.GetByID(ctx, nil, startupID)
	if err != nil {
		return nil, fmt.Errorf("load startup %s: %w", startupID, err)
	}
	if fundID == uuid.Nil {
		fundID = startup.FundID
	}

	documents, err := s.docs.ListByStartupID(ctx, nil, startupID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	chunks, err := s.chunks.GetByStartupID(ctx, nil, startupID, chunkSampleLimit)
	if err != nil {
		return nil, fmt.Errorf("sample chunks: %w", err)
	}

	var thesis *types.InvestmentThesis
	if fundID != uuid.Nil {
		thesis, err = s.theses.GetActiveByFundID(ctx, nil, fundID)
		if err != nil {
			s.log.Warn("Active thesis lookup failed; scoring without thesis", "fund_id", fundID, "error", err)
			thesis = nil
		}
	}
	criteria := criteriaTree(thesis)

	var result *types.AlignmentResult
	if len(documents) == 0 && len(chunks) == 0 {
		result = s.heuristicScore(startup, thesis, documents, chunks, criteria)
	} else if llm, llmErr := s.llmScore(ctx, startup, thesis, documents, chunks, criteria); llmErr != nil {
		s.log.Warn("LLM alignment scoring failed; using heuristic fallback",
			"startup_id", startupID, "error", llmErr)
		result = s.heuristicScore(startup, thesis, documents, chunks, criteria)
	} else {
		result = llm
	}

	result.DocumentCount = len(documents)
	result.Completeness = coverageScore(documents)
	result.ComputedAt = time.Now().UTC()

	if err := s.startups.SaveAlignment(ctx, nil, startupID, result); err != nil {
		return nil, fmt.Errorf("persist alignment: %w", err)
	}
	if s.activity != nil && fundID != uuid.Nil {
		s.activity.Record(ctx, types.ActivityAlignmentScored, fundID, &startupID, map[string]any{
			"startup_name": startup.Name,
			"score":        result.Score,
			"fallback":     result.FallbackMode,
		})
	}
	return result, nil
}

// llmAlignment is the JSON contract the completion must satisfy.
type llmAlignment struct {
	OverallScore float64 `json:"overall_score"` // [0,100]
	Summary      string  `json:"summary"`
	Categories   map[string]struct {
		Score         float64 `json:"score"` // [0,100]
		Justification string  `json:"justification"`
	} `json:"categories"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Recommendations []string `json:"recommendations"`
	RiskFactors     []string `json:"risk_factors"`
}

func (s *alignmentService) llmScore(
	ctx context.Context,
	startup *types.Startup,
	thesis *types.InvestmentThesis,
	documents []*types.Document,
	chunks []*types.DocumentChunk,
	criteria []types.CriteriaNode,
) (*types.AlignmentResult, error) {
	if s.ai == nil {
		return nil, fmt.Errorf("no completion capability configured")
	}

	raw, err := s.ai.Complete(ctx, alignmentSystemPrompt(thesis, criteria),
		alignmentUserPrompt(startup, documents, chunks), openai.CompletionOptions{
			Temperature: 0.1,
			MaxTokens:   1800,
			JSONMode:    true,
		})
	if err != nil {
		return nil, err
	}

	var parsed llmAlignment
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("malformed alignment JSON: %w", err)
	}
	if parsed.OverallScore < 0 || parsed.OverallScore > 100 {
		return nil, fmt.Errorf("overall score %v out of [0,100]", parsed.OverallScore)
	}
	if strings.TrimSpace(parsed.Summary) == "" || len(parsed.Categories) == 0 {
		return nil, fmt.Errorf("alignment response structurally incomplete")
	}

	scores := make(map[string]types.CriterionResult, len(parsed.Categories))
	for key, cat := range parsed.Categories {
		scores[key] = types.CriterionResult{
			Score:         clamp(cat.Score/100, 0, 1),
			Justification: cat.Justification,
		}
	}
	return &types.AlignmentResult{
		Score:           parsed.OverallScore / 100,
		Summary:         parsed.Summary,
		CriteriaScores:  scores,
		Strengths:       emptyIfNil(parsed.Strengths),
		Weaknesses:      emptyIfNil(parsed.Weaknesses),
		Recommendations: emptyIfNil(parsed.Recommendations),
		RiskFactors:     emptyIfNil(parsed.RiskFactors),
		UsedLLM:         true,
	}, nil
}

func alignmentSystemPrompt(thesis *types.InvestmentThesis, criteria []types.CriteriaNode) string {
	var b strings.Builder
	b.WriteString("You score how well a startup aligns with a venture fund's investment thesis.\n")
	b.WriteString("Return ONLY a JSON object: {\"overall_score\": 0-100, \"summary\": \"\", ")
	b.WriteString("\"categories\": {\"<key>\": {\"score\": 0-100, \"justification\": \"\"}}, ")
	b.WriteString("\"strengths\": [], \"weaknesses\": [], \"recommendations\": [], \"risk_factors\": []}.\n")
	b.WriteString("Score each of these categories, weighting them as given:\n")
	for _, n := range normalizeWeights(criteria) {
		fmt.Fprintf(&b, "- %s (key %q, weight %.2f)\n", n.Label, n.Key, n.Weight)
	}
	if thesis != nil {
		b.WriteString("\n")
		b.WriteString(renderThesisContext(thesis))
		b.WriteString("\n")
	}
	b.WriteString("Ground every judgement in the supplied material; note missing evidence as a weakness, not a guess.")
	return b.String()
}

func alignmentUserPrompt(startup *types.Startup, documents []*types.Document, chunks []*types.DocumentChunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Startup: %s", startup.Name)
	if startup.Vertical != "" {
		fmt.Fprintf(&b, " | vertical: %s", startup.Vertical)
	}
	if startup.Stage != "" {
		fmt.Fprintf(&b, " | stage: %s", startup.Stage)
	}
	if startup.Summary != "" {
		fmt.Fprintf(&b, "\nSummary: %s", startup.Summary)
	}

	b.WriteString("\n\nDocuments on file:\n")
	if len(documents) == 0 {
		b.WriteString("(none)\n")
	}
	for _, d := range documents {
		fmt.Fprintf(&b, "- %q (%s, %s)\n", d.Name, d.Type, d.Status)
	}

	b.WriteString("\nDocument excerpts:\n")
	for _, ch := range chunks {
		b.WriteString(ch.Content)
		b.WriteString("\n---\n")
	}
	return b.String()
}

// heuristicScore is the deterministic fallback: a weighted sum of vertical
// match, stage match, document-type coverage and keyword presence, clamped to
// [0.1, 0.9]. It always succeeds and always fills every result field.
func (s *alignmentService) heuristicScore(
	startup *types.Startup,
	thesis *types.InvestmentThesis,
	documents []*types.Document,
	chunks []*types.DocumentChunk,
	criteria []types.CriteriaNode,
) *types.AlignmentResult {
	vertical := verticalScore(startup, thesis)
	stage := stageScore(startup, thesis)
	coverage := coverageScore(documents)
	keywords := keywordScore(chunks)

	score := vertical*heuristicWeights.Vertical +
		stage*heuristicWeights.Stage +
		coverage*heuristicWeights.Coverage +
		keywords*heuristicWeights.Keywords
	score = clamp(score, heuristicFloor, heuristicCeil)

	scores := map[string]types.CriterionResult{
		"vertical_match": {Score: vertical, Justification: verticalJustification(startup, vertical)},
		"stage_match":    {Score: stage, Justification: fmt.Sprintf("Stage %q scored against preferences", orUnknown(startup.Stage))},
		"coverage":       {Score: coverage, Justification: fmt.Sprintf("%d of %d document categories present", len(presentTypes(documents)), len(coverageWeights))},
		"keywords":       {Score: keywords, Justification: "Signal keyword density across ingested text"},
	}

	var strengths, weaknesses, recommendations []string
	if vertical >= 0.99 {
		strengths = append(strengths, fmt.Sprintf("Vertical %q matches the fund's preferences", startup.Vertical))
	} else {
		weaknesses = append(weaknesses, "Vertical is outside the fund's stated preferences")
	}
	if coverage >= 0.6 {
		strengths = append(strengths, "Broad document coverage across key categories")
	} else {
		weaknesses = append(weaknesses, "Thin document coverage limits scoring confidence")
	}
	for _, missing := range missingTypes(documents) {
		recommendations = append(recommendations, fmt.Sprintf("Ingest %s documents to improve coverage", missing))
	}
	if len(recommendations) == 0 {
		recommendations = append(recommendations, "Re-run scoring once the completion service is reachable for a qualitative read")
	}

	risks := []string{"Score produced by the deterministic heuristic; no qualitative document analysis was performed"}

	return &types.AlignmentResult{
		Score:           score,
		Summary:         fmt.Sprintf("Heuristic alignment for %s: %.0f%% based on vertical, stage, document coverage and keyword signals.", startup.Name, score*100),
		CriteriaScores:  scores,
		Strengths:       emptyIfNil(strengths),
		Weaknesses:      emptyIfNil(weaknesses),
		Recommendations: emptyIfNil(recommendations),
		RiskFactors:     risks,
		UsedLLM:         false,
		FallbackMode:    true,
	}
}

func verticalScore(startup *types.Startup, thesis *types.InvestmentThesis) float64 {
	if startup.Vertical == "" {
		return 0
	}
	prefs := decodeWeighted(thesisVerticals(thesis))
	if len(prefs) == 0 {
		// No stated preference means no penalty either way.
		return 0.5
	}
	target := strings.ToLower(strings.TrimSpace(startup.Vertical))
	for _, p := range prefs {
		if strings.ToLower(strings.TrimSpace(p.Name)) == target {
			return 1
		}
	}
	return 0
}

func verticalJustification(startup *types.Startup, score float64) string {
	switch {
	case startup.Vertical == "":
		return "No vertical recorded for the startup"
	case score >= 0.99:
		return fmt.Sprintf("Vertical %q is in the preferred set", startup.Vertical)
	case score == 0.5:
		return "Fund states no vertical preference"
	default:
		return fmt.Sprintf("Vertical %q is not in the preferred set", startup.Vertical)
	}
}

func stageScore(startup *types.Startup, thesis *types.InvestmentThesis) float64 {
	stage := strings.ToLower(strings.TrimSpace(startup.Stage))
	if stage == "" {
		return 0
	}
	if thesis != nil {
		if prefs := decodeStages(thesis.Stages); len(prefs) > 0 {
			var max float64
			for _, p := range prefs {
				if p.Weight > max {
					max = p.Weight
				}
			}
			for _, p := range prefs {
				if strings.ToLower(strings.TrimSpace(p.Stage)) == stage && max > 0 {
					return clamp(p.Weight/max, 0, 1)
				}
			}
			return 0
		}
	}
	return stageScores[stage]
}

func coverageScore(documents []*types.Document) float64 {
	var sum float64
	for t := range presentTypes(documents) {
		sum += coverageWeights[t]
	}
	return clamp(sum, 0, 1)
}

func presentTypes(documents []*types.Document) map[string]struct{} {
	present := map[string]struct{}{}
	for _, d := range documents {
		if _, known := coverageWeights[d.Type]; known {
			present[d.Type] = struct{}{}
		}
	}
	return present
}

func missingTypes(documents []*types.Document) []string {
	present := presentTypes(documents)
	var out []string
	for t := range coverageWeights {
		if t == types.DocumentTypeOther {
			continue
		}
		if _, ok := present[t]; !ok {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

func keywordScore(chunks []*types.DocumentChunk) float64 {
	if len(chunks) == 0 {
		return 0
	}
	var text strings.Builder
	for _, ch := range chunks {
		text.WriteString(strings.ToLower(ch.Content))
		text.WriteString(" ")
	}
	corpus := text.String()

	var total float64
	for _, words := range keywordFamilies {
		var family float64
		for _, w := range words {
			family += float64(strings.Count(corpus, w)) * keywordIncrement
		}
		if family > keywordFamilyCap {
			family = keywordFamilyCap
		}
		total += family
	}
	// Four families capped at 0.25 each puts the raw total in [0,1].
	return clamp(total, 0, 1)
}

// criteriaTree picks the thesis tree when present and decodable, the embedded
// default otherwise.
func criteriaTree(thesis *types.InvestmentThesis) []types.CriteriaNode {
	if thesis != nil {
		if nodes := decodeCriteria(thesis.Criteria); len(nodes) > 0 {
			return nodes
		}
	}
	var nodes []types.CriteriaNode
	if err := yaml.Unmarshal(defaultCriteriaYAML, &nodes); err != nil {
		// The embedded default is fixed at build time; failing to parse it is
		// a programming error, but scoring still proceeds with one catch-all
		// category.
		return []types.CriteriaNode{{Key: "overall", Label: "Overall fit", Weight: 1}}
	}
	return nodes
}

// normalizeWeights re-normalizes a criteria level whose weights drifted from
// summing to 1 by more than 0.01. A level whose weights sum to zero gets
// uniform weights. Stored trees are validated at editing time; this guards
// scores against hand-edited data.
func normalizeWeights(nodes []types.CriteriaNode) []types.CriteriaNode {
	if len(nodes) == 0 {
		return nodes
	}
	var sum float64
	for _, n := range nodes {
		sum += n.Weight
	}
	if sum > 0 && math.Abs(sum-1) <= 0.01 {
		return nodes
	}
	out := make([]types.CriteriaNode, len(nodes))
	copy(out, nodes)
	for i := range out {
		if sum > 0 {
			out[i].Weight /= sum
		} else {
			out[i].Weight = 1 / float64(len(out))
		}
	}
	return out
}

func thesisVerticals(thesis *types.InvestmentThesis) []byte {
	if thesis == nil {
		return nil
	}
	return thesis.Verticals
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}
