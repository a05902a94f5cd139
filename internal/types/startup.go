package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Startup struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FundID   uuid.UUID `gorm:"type:uuid;not null;index" json:"fund_id"`
	Fund     *Fund     `gorm:"constraint:OnDelete:CASCADE;foreignKey:FundID;references:ID" json:"fund,omitempty"`
	Name     string    `gorm:"column:name;not null" json:"name"`
	Vertical string    `gorm:"column:vertical" json:"vertical"`
	Stage    string    `gorm:"column:stage" json:"stage"`
	Website  string    `gorm:"column:website" json:"website"`
	Summary  string    `gorm:"column:summary" json:"summary"`

	// Cached alignment artifact; overwritten on each recompute, never versioned.
	AlignmentResult datatypes.JSON `gorm:"type:jsonb;column:alignment_result" json:"alignment_result,omitempty"`
	AlignmentScore  *float64       `gorm:"column:alignment_score" json:"alignment_score,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Startup) TableName() string { return "startup" }
