package types

import "time"

// AlignmentResult is the derived artifact cached on Startup.AlignmentResult.
// Both the LLM path and the heuristic fallback write this exact shape, so
// callers cannot structurally distinguish which path ran; the provenance
// flags are the only tell.
type AlignmentResult struct {
	Score           float64                    `json:"score"` // [0,1]
	Summary         string                     `json:"summary"`
	CriteriaScores  map[string]CriterionResult `json:"criteria_scores"`
	Strengths       []string                   `json:"strengths"`
	Weaknesses      []string                   `json:"weaknesses"`
	Recommendations []string                   `json:"recommendations"`
	RiskFactors     []string                   `json:"risk_factors"`

	UsedLLM       bool      `json:"used_llm"`
	FallbackMode  bool      `json:"fallback_mode"`
	DocumentCount int       `json:"document_count"`
	Completeness  float64   `json:"completeness"` // [0,1] fraction of expected doc categories present
	ComputedAt    time.Time `json:"computed_at"`
}

type CriterionResult struct {
	Score         float64 `json:"score"` // [0,1]
	Justification string  `json:"justification"`
}
