package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ActivityDocumentIngested = "document.ingested"
	ActivityDocumentFailed   = "document.failed"
	ActivityQueryAnswered    = "query.answered"
	ActivityAlignmentScored  = "alignment.scored"
)

// ActivityEvent is a best-effort audit feed row; writes never fail a primary
// operation.
type ActivityEvent struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	FundID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"fund_id"`
	StartupID *uuid.UUID     `gorm:"type:uuid;index" json:"startup_id,omitempty"`
	Type      string         `gorm:"column:type;not null" json:"type"`
	Payload   datatypes.JSON `gorm:"type:jsonb;column:payload" json:"payload,omitempty"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
}

func (ActivityEvent) TableName() string { return "activity_event" }
