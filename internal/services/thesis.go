package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/repos"
	"github.com/meridianvc/dealflow-backend/internal/types"
)

// weightTolerance is how far a weighted list may drift from summing to 1
// before the editing boundary rejects it.
const weightTolerance = 0.01

type CreateThesisInput struct {
	Name             string                     `json:"name" binding:"required"`
	Philosophy       string                     `json:"philosophy"`
	ValueProposition string                     `json:"value_proposition"`
	DecisionProcess  string                     `json:"decision_process"`
	RiskAppetite     string                     `json:"risk_appetite"`
	Verticals        []types.WeightedPreference `json:"verticals"`
	Stages           []types.StagePreference    `json:"stages"`
	Regions          []types.WeightedPreference `json:"regions"`
	Criteria         []types.CriteriaNode       `json:"criteria"`
	RedFlags         []string                   `json:"red_flags"`
	MustHaves        []string                   `json:"must_haves"`
	Activate         bool                       `json:"activate"`
}

type ThesisService interface {
	Create(ctx context.Context, fundID uuid.UUID, in CreateThesisInput) (*types.InvestmentThesis, error)
	Activate(ctx context.Context, fundID, id uuid.UUID) error
	Active(ctx context.Context, fundID uuid.UUID) (*types.InvestmentThesis, error)
}

type thesisService struct {
	theses repos.InvestmentThesisRepo
	log    *logger.Logger
}

func NewThesisService(log *logger.Logger, theses repos.InvestmentThesisRepo) ThesisService {
	return &thesisService{
		theses: theses,
		log:    log.With("service", "ThesisService"),
	}
}

func (s *thesisService) Create(ctx context.Context, fundID uuid.UUID, in CreateThesisInput) (*types.InvestmentThesis, error) {
	if err := validateWeights("verticals", weightsOf(in.Verticals)); err != nil {
		return nil, err
	}
	if err := validateWeights("regions", weightsOf(in.Regions)); err != nil {
		return nil, err
	}
	stageWeights := make([]float64, 0, len(in.Stages))
	for _, st := range in.Stages {
		stageWeights = append(stageWeights, st.Weight)
	}
	if err := validateWeights("stages", stageWeights); err != nil {
		return nil, err
	}
	criteriaWeights := make([]float64, 0, len(in.Criteria))
	for _, n := range in.Criteria {
		criteriaWeights = append(criteriaWeights, n.Weight)
	}
	if err := validateWeights("criteria", criteriaWeights); err != nil {
		return nil, err
	}

	thesis := &types.InvestmentThesis{
		FundID:           fundID,
		Name:             in.Name,
		Philosophy:       in.Philosophy,
		ValueProposition: in.ValueProposition,
		DecisionProcess:  in.DecisionProcess,
		RiskAppetite:     in.RiskAppetite,
	}
	var err error
	if thesis.Verticals, err = encodeJSON(in.Verticals); err != nil {
		return nil, err
	}
	if thesis.Stages, err = encodeJSON(in.Stages); err != nil {
		return nil, err
	}
	if thesis.Regions, err = encodeJSON(in.Regions); err != nil {
		return nil, err
	}
	if thesis.Criteria, err = encodeJSON(in.Criteria); err != nil {
		return nil, err
	}
	if thesis.RedFlags, err = encodeJSON(in.RedFlags); err != nil {
		return nil, err
	}
	if thesis.MustHaves, err = encodeJSON(in.MustHaves); err != nil {
		return nil, err
	}

	created, err := s.theses.Create(ctx, nil, thesis)
	if err != nil {
		return nil, fmt.Errorf("create thesis: %w", err)
	}
	if in.Activate {
		if err := s.theses.Activate(ctx, created.ID, fundID); err != nil {
			return nil, fmt.Errorf("activate thesis: %w", err)
		}
		created.Active = true
	}
	s.log.Info("Thesis created", "thesis_id", created.ID, "fund_id", fundID, "active", created.Active)
	return created, nil
}

func (s *thesisService) Activate(ctx context.Context, fundID, id uuid.UUID) error {
	return s.theses.Activate(ctx, id, fundID)
}

func (s *thesisService) Active(ctx context.Context, fundID uuid.UUID) (*types.InvestmentThesis, error) {
	return s.theses.GetActiveByFundID(ctx, nil, fundID)
}

// validateWeights enforces the sum-to-one invariant on non-empty weighted
// lists. Empty lists mean "no preference" and pass.
func validateWeights(field string, weights []float64) error {
	if len(weights) == 0 {
		return nil
	}
	var sum float64
	for _, w := range weights {
		if w < 0 {
			return fmt.Errorf("%s: negative weight %v", field, w)
		}
		sum += w
	}
	if math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%s: weights sum to %.3f, expected 1.0 +/- %.2f", field, sum, weightTolerance)
	}
	return nil
}

func encodeJSON[T any](items []T) (datatypes.JSON, error) {
	if len(items) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode thesis field: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func weightsOf(prefs []types.WeightedPreference) []float64 {
	out := make([]float64, 0, len(prefs))
	for _, p := range prefs {
		out = append(out, p.Weight)
	}
	return out
}
