package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Fund struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string         `gorm:"column:name;not null" json:"name"`
	Currency  string         `gorm:"column:currency;default:'USD'" json:"currency"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Fund) TableName() string { return "fund" }
