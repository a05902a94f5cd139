package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DocumentStatusPending    = "pending"
	DocumentStatusProcessing = "processing"
	DocumentStatusCompleted  = "completed"
	DocumentStatusFailed     = "failed"
)

const (
	DocumentTypePitchDeck  = "pitch_deck"
	DocumentTypeFinancials = "financials"
	DocumentTypeLegal      = "legal"
	DocumentTypeTech       = "tech"
	DocumentTypeMarket     = "market"
	DocumentTypeOther      = "other"
)

type Document struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StartupID uuid.UUID `gorm:"type:uuid;not null;index" json:"startup_id"`
	Startup   *Startup  `gorm:"constraint:OnDelete:CASCADE;foreignKey:StartupID;references:ID" json:"startup,omitempty"`
	// FundID is denormalized from the owning startup so tenant-scoped queries
	// never need a join.
	FundID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"fund_id"`
	Name       string         `gorm:"column:name;not null" json:"name"`
	Type       string         `gorm:"column:type;not null;default:'other'" json:"type"`
	StorageURI string         `gorm:"column:storage_uri" json:"storage_uri"`
	MimeType   string         `gorm:"column:mime_type" json:"mime_type"`
	Status     string         `gorm:"column:status;not null;default:'pending'" json:"status"`
	Metadata   datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Document) TableName() string { return "document" }
