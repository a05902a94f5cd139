package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	goredis "github.com/meridianvc/dealflow-backend/internal/clients/redis"
	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/repos"
	"github.com/meridianvc/dealflow-backend/internal/types"
)

// ActivityService maintains the fund activity feed. Record is fire-and-forget
// from the caller's point of view: persistence and fan-out failures are
// logged, never surfaced, so feed bookkeeping can never fail a primary
// operation.
type ActivityService interface {
	Record(ctx context.Context, eventType string, fundID uuid.UUID, startupID *uuid.UUID, payload map[string]any)
	List(ctx context.Context, fundID uuid.UUID, limit int) ([]*types.ActivityEvent, error)
}

type activityService struct {
	events repos.ActivityEventRepo
	bus    goredis.EventBus
	log    *logger.Logger
}

// NewActivityService builds the feed writer. The bus may be nil; events then
// only hit the database.
func NewActivityService(log *logger.Logger, events repos.ActivityEventRepo, bus goredis.EventBus) ActivityService {
	return &activityService{
		events: events,
		bus:    bus,
		log:    log.With("service", "ActivityService"),
	}
}

func (s *activityService) Record(ctx context.Context, eventType string, fundID uuid.UUID, startupID *uuid.UUID, payload map[string]any) {
	event := &types.ActivityEvent{
		FundID:    fundID,
		StartupID: startupID,
		Type:      eventType,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			s.log.Warn("Activity payload not serializable", "type", eventType, "error", err)
		} else {
			event.Payload = datatypes.JSON(raw)
		}
	}

	if err := s.events.Create(ctx, nil, event); err != nil {
		s.log.Warn("Activity event write failed", "type", eventType, "fund_id", fundID, "error", err)
		return
	}
	if s.bus != nil {
		if err := s.bus.Publish(ctx, event); err != nil {
			s.log.Warn("Activity event publish failed", "type", eventType, "error", err)
		}
	}
}

func (s *activityService) List(ctx context.Context, fundID uuid.UUID, limit int) ([]*types.ActivityEvent, error) {
	return s.events.ListByFundID(ctx, nil, fundID, limit)
}
