package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/types"
)

type InvestmentThesisRepo interface {
	Create(ctx context.Context, tx *gorm.DB, thesis *types.InvestmentThesis) (*types.InvestmentThesis, error)
	GetActiveByFundID(ctx context.Context, tx *gorm.DB, fundID uuid.UUID) (*types.InvestmentThesis, error)
	// Activate makes the given thesis the fund's single active one. The
	// deactivate-all-then-activate-one pair runs in one transaction so no
	// window exists with zero or multiple active theses.
	Activate(ctx context.Context, id uuid.UUID, fundID uuid.UUID) error
}

type investmentThesisRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInvestmentThesisRepo(db *gorm.DB, baseLog *logger.Logger) InvestmentThesisRepo {
	return &investmentThesisRepo{db: db, log: baseLog.With("repo", "InvestmentThesisRepo")}
}

func (r *investmentThesisRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *investmentThesisRepo) Create(ctx context.Context, tx *gorm.DB, thesis *types.InvestmentThesis) (*types.InvestmentThesis, error) {
	if thesis.ID == uuid.Nil {
		thesis.ID = uuid.New()
	}
	if thesis.Version <= 0 {
		thesis.Version = 1
	}
	if err := r.conn(tx).WithContext(ctx).Create(thesis).Error; err != nil {
		return nil, err
	}
	return thesis, nil
}

// GetActiveByFundID returns nil, nil when the fund has no active thesis;
// scoring then proceeds with the built-in default rubric.
func (r *investmentThesisRepo) GetActiveByFundID(ctx context.Context, tx *gorm.DB, fundID uuid.UUID) (*types.InvestmentThesis, error) {
	var thesis types.InvestmentThesis
	err := r.conn(tx).WithContext(ctx).
		Where("fund_id = ? AND active = ?", fundID, true).
		First(&thesis).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &thesis, nil
}

func (r *investmentThesisRepo) Activate(ctx context.Context, id uuid.UUID, fundID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&types.InvestmentThesis{}).
			Where("fund_id = ?", fundID).
			Update("active", false).Error; err != nil {
			return err
		}
		res := tx.Model(&types.InvestmentThesis{}).
			Where("id = ? AND fund_id = ?", id, fundID).
			Update("active", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
