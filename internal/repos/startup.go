package repos

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/types"
)

type StartupRepo interface {
	Create(ctx context.Context, tx *gorm.DB, s *types.Startup) (*types.Startup, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Startup, error)
	ListByFundID(ctx context.Context, tx *gorm.DB, fundID uuid.UUID) ([]*types.Startup, error)
	SaveAlignment(ctx context.Context, tx *gorm.DB, id uuid.UUID, result *types.AlignmentResult) error
}

type startupRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStartupRepo(db *gorm.DB, baseLog *logger.Logger) StartupRepo {
	return &startupRepo{db: db, log: baseLog.With("repo", "StartupRepo")}
}

func (r *startupRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *startupRepo) Create(ctx context.Context, tx *gorm.DB, s *types.Startup) (*types.Startup, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if err := r.conn(tx).WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

func (r *startupRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Startup, error) {
	var s types.Startup
	if err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *startupRepo) ListByFundID(ctx context.Context, tx *gorm.DB, fundID uuid.UUID) ([]*types.Startup, error) {
	var out []*types.Startup
	if err := r.conn(tx).WithContext(ctx).
		Where("fund_id = ?", fundID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// SaveAlignment overwrites the cached analysis artifact; previous results are
// not versioned.
func (r *startupRepo) SaveAlignment(ctx context.Context, tx *gorm.DB, id uuid.UUID, result *types.AlignmentResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return r.conn(tx).WithContext(ctx).
		Model(&types.Startup{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"alignment_result": datatypes.JSON(raw),
			"alignment_score":  result.Score,
		}).Error
}
