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

type DocumentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, doc *types.Document) (*types.Document, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Document, error)
	ListByStartupID(ctx context.Context, tx *gorm.DB, startupID uuid.UUID) ([]*types.Document, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error
	MergeMetadata(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return &documentRepo{db: db, log: baseLog.With("repo", "DocumentRepo")}
}

func (r *documentRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *documentRepo) Create(ctx context.Context, tx *gorm.DB, doc *types.Document) (*types.Document, error) {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.Status == "" {
		doc.Status = types.DocumentStatusPending
	}
	if err := r.conn(tx).WithContext(ctx).Create(doc).Error; err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *documentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Document, error) {
	var doc types.Document
	if err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepo) ListByStartupID(ctx context.Context, tx *gorm.DB, startupID uuid.UUID) ([]*types.Document, error) {
	var docs []*types.Document
	if err := r.conn(tx).WithContext(ctx).
		Where("startup_id = ?", startupID).
		Order("created_at DESC").
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *documentRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error {
	return r.conn(tx).WithContext(ctx).
		Model(&types.Document{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// MergeMetadata shallow-merges fields into the document's metadata column.
func (r *documentRepo) MergeMetadata(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	conn := r.conn(tx).WithContext(ctx)

	var doc types.Document
	if err := conn.Select("id", "metadata").Where("id = ?", id).First(&doc).Error; err != nil {
		return err
	}
	merged := map[string]any{}
	if len(doc.Metadata) > 0 {
		_ = json.Unmarshal(doc.Metadata, &merged)
	}
	for k, v := range fields {
		merged[k] = v
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	return conn.Model(&types.Document{}).
		Where("id = ?", id).
		Update("metadata", datatypes.JSON(raw)).Error
}
