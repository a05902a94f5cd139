package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/repos"
	"github.com/meridianvc/dealflow-backend/internal/types"
)

// ErrWrongFund is returned when a caller touches a record outside their fund.
var ErrWrongFund = errors.New("record belongs to a different fund")

type CreateStartupInput struct {
	Name     string `json:"name" binding:"required"`
	Vertical string `json:"vertical"`
	Stage    string `json:"stage"`
	Website  string `json:"website"`
	Summary  string `json:"summary"`
}

type StartupService interface {
	Create(ctx context.Context, fundID uuid.UUID, in CreateStartupInput) (*types.Startup, error)
	Get(ctx context.Context, fundID, id uuid.UUID) (*types.Startup, error)
	List(ctx context.Context, fundID uuid.UUID) ([]*types.Startup, error)
}

type startupService struct {
	startups repos.StartupRepo
	log      *logger.Logger
}

func NewStartupService(log *logger.Logger, startups repos.StartupRepo) StartupService {
	return &startupService{
		startups: startups,
		log:      log.With("service", "StartupService"),
	}
}

func (s *startupService) Create(ctx context.Context, fundID uuid.UUID, in CreateStartupInput) (*types.Startup, error) {
	startup := &types.Startup{
		FundID:   fundID,
		Name:     in.Name,
		Vertical: in.Vertical,
		Stage:    in.Stage,
		Website:  in.Website,
		Summary:  in.Summary,
	}
	created, err := s.startups.Create(ctx, nil, startup)
	if err != nil {
		return nil, fmt.Errorf("create startup: %w", err)
	}
	s.log.Info("Startup created", "startup_id", created.ID, "fund_id", fundID)
	return created, nil
}

func (s *startupService) Get(ctx context.Context, fundID, id uuid.UUID) (*types.Startup, error) {
	startup, err := s.startups.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if startup.FundID != fundID {
		return nil, ErrWrongFund
	}
	return startup, nil
}

func (s *startupService) List(ctx context.Context, fundID uuid.UUID) ([]*types.Startup, error) {
	return s.startups.ListByFundID(ctx, nil, fundID)
}
