package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/types"
)

type QueryLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, ql *types.QueryLog) error
	ListByFundID(ctx context.Context, tx *gorm.DB, fundID uuid.UUID, limit int) ([]*types.QueryLog, error)
}

type queryLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQueryLogRepo(db *gorm.DB, baseLog *logger.Logger) QueryLogRepo {
	return &queryLogRepo{db: db, log: baseLog.With("repo", "QueryLogRepo")}
}

func (r *queryLogRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *queryLogRepo) Create(ctx context.Context, tx *gorm.DB, ql *types.QueryLog) error {
	if ql.ID == uuid.Nil {
		ql.ID = uuid.New()
	}
	return r.conn(tx).WithContext(ctx).Create(ql).Error
}

func (r *queryLogRepo) ListByFundID(ctx context.Context, tx *gorm.DB, fundID uuid.UUID, limit int) ([]*types.QueryLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*types.QueryLog
	if err := r.conn(tx).WithContext(ctx).
		Where("fund_id = ?", fundID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
