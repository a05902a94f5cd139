package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type DocumentChunk struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null;index" json:"document_id"`
	Document   *Document `gorm:"constraint:OnDelete:CASCADE;foreignKey:DocumentID;references:ID" json:"document,omitempty"`
	// StartupID and FundID are denormalized scope keys so similarity search
	// filters without joins.
	StartupID uuid.UUID `gorm:"type:uuid;not null;index" json:"startup_id"`
	FundID    uuid.UUID `gorm:"type:uuid;not null;index" json:"fund_id"`
	Index     int       `gorm:"column:chunk_index;not null" json:"index"`
	Content   string    `gorm:"column:content;not null" json:"content"`
	// Embedding is nullable: a chunk whose embedding call exhausted its
	// retries is stored anyway so keyword retrieval still covers it.
	Embedding datatypes.JSON `gorm:"type:jsonb;column:embedding" json:"embedding,omitempty"`
	Metadata  datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
}

func (DocumentChunk) TableName() string { return "document_chunk" }

// ChunkMetadata is the persisted shape of DocumentChunk.Metadata.
type ChunkMetadata struct {
	DocumentName string    `json:"document_name"`
	DocumentType string    `json:"document_type"`
	ChunkIndex   int       `json:"chunk_index"`
	Page         int       `json:"page,omitempty"`
	ExtractedAt  time.Time `json:"extracted_at"`
	EmbedError   string    `json:"embed_error,omitempty"`
}
