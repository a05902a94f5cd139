package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/types"
)

type ActivityEventRepo interface {
	Create(ctx context.Context, tx *gorm.DB, event *types.ActivityEvent) error
	ListByFundID(ctx context.Context, tx *gorm.DB, fundID uuid.UUID, limit int) ([]*types.ActivityEvent, error)
}

type activityEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActivityEventRepo(db *gorm.DB, baseLog *logger.Logger) ActivityEventRepo {
	return &activityEventRepo{db: db, log: baseLog.With("repo", "ActivityEventRepo")}
}

func (r *activityEventRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *activityEventRepo) Create(ctx context.Context, tx *gorm.DB, event *types.ActivityEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return r.conn(tx).WithContext(ctx).Create(event).Error
}

func (r *activityEventRepo) ListByFundID(ctx context.Context, tx *gorm.DB, fundID uuid.UUID, limit int) ([]*types.ActivityEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*types.ActivityEvent
	if err := r.conn(tx).WithContext(ctx).
		Where("fund_id = ?", fundID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
