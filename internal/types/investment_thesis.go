package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// InvestmentThesis is a fund's weighted scoring rubric. Exactly one thesis is
// active per fund; activation is transactional (deactivate-all, activate-one).
type InvestmentThesis struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FundID  uuid.UUID `gorm:"type:uuid;not null;index" json:"fund_id"`
	Fund    *Fund     `gorm:"constraint:OnDelete:CASCADE;foreignKey:FundID;references:ID" json:"fund,omitempty"`
	Name    string    `gorm:"column:name;not null" json:"name"`
	Version int       `gorm:"column:version;not null;default:1" json:"version"`
	Active  bool      `gorm:"column:active;not null;default:false;index" json:"active"`

	Philosophy       string `gorm:"column:philosophy" json:"philosophy"`
	ValueProposition string `gorm:"column:value_proposition" json:"value_proposition"`
	DecisionProcess  string `gorm:"column:decision_process" json:"decision_process"`
	RiskAppetite     string `gorm:"column:risk_appetite" json:"risk_appetite"`

	Verticals datatypes.JSON `gorm:"type:jsonb;column:verticals" json:"verticals,omitempty"`
	Stages    datatypes.JSON `gorm:"type:jsonb;column:stages" json:"stages,omitempty"`
	Regions   datatypes.JSON `gorm:"type:jsonb;column:regions" json:"regions,omitempty"`
	Criteria  datatypes.JSON `gorm:"type:jsonb;column:criteria" json:"criteria,omitempty"`
	RedFlags  datatypes.JSON `gorm:"type:jsonb;column:red_flags" json:"red_flags,omitempty"`
	MustHaves datatypes.JSON `gorm:"type:jsonb;column:must_haves" json:"must_haves,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (InvestmentThesis) TableName() string { return "investment_thesis" }

// WeightedPreference is one entry of a weighted list (verticals, regions).
// Weights within a list are expected to sum to 1.0 +/- 0.01; that invariant is
// enforced at the editing boundary, so readers tolerate whatever is stored.
type WeightedPreference struct {
	Name   string  `json:"name" yaml:"name"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// StagePreference adds a ticket range to a weighted stage entry.
type StagePreference struct {
	Stage     string  `json:"stage" yaml:"stage"`
	Weight    float64 `json:"weight" yaml:"weight"`
	TicketMin float64 `json:"ticket_min,omitempty" yaml:"ticket_min"`
	TicketMax float64 `json:"ticket_max,omitempty" yaml:"ticket_max"`
}

// CriteriaNode is one category of the evaluation tree: a weight plus optional
// weighted sub-criteria. The tree is walked generically; no category is
// special-cased in code.
type CriteriaNode struct {
	Key         string         `json:"key" yaml:"key"`
	Label       string         `json:"label" yaml:"label"`
	Weight      float64        `json:"weight" yaml:"weight"`
	SubCriteria []CriteriaNode `json:"sub_criteria,omitempty" yaml:"sub_criteria"`
}
