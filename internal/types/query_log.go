package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// QueryLog is the audit record of one RAG question/answer round trip.
type QueryLog struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	FundID    *uuid.UUID     `gorm:"type:uuid;index" json:"fund_id,omitempty"`
	StartupID *uuid.UUID     `gorm:"type:uuid;index" json:"startup_id,omitempty"`
	Question  string         `gorm:"column:question;not null" json:"question"`
	Answer    string         `gorm:"column:answer" json:"answer"`
	Sources   datatypes.JSON `gorm:"type:jsonb;column:sources" json:"sources,omitempty"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
}

func (QueryLog) TableName() string { return "query_log" }
