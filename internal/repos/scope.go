package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ScopeFilter restricts a chunk search to a tenant boundary. Absent fields
// impose no constraint; present fields are ANDed.
type ScopeFilter struct {
	StartupID *uuid.UUID
	FundID    *uuid.UUID
}

func (f ScopeFilter) apply(q *gorm.DB) *gorm.DB {
	if f.StartupID != nil {
		q = q.Where("startup_id = ?", *f.StartupID)
	}
	if f.FundID != nil {
		q = q.Where("fund_id = ?", *f.FundID)
	}
	return q
}

// WithoutFund returns the filter with the fund constraint dropped.
func (f ScopeFilter) WithoutFund() ScopeFilter {
	return ScopeFilter{StartupID: f.StartupID}
}

// WithoutStartup returns the filter with the startup constraint dropped.
func (f ScopeFilter) WithoutStartup() ScopeFilter {
	return ScopeFilter{FundID: f.FundID}
}

// IsEmpty reports whether the filter constrains nothing.
func (f ScopeFilter) IsEmpty() bool {
	return f.StartupID == nil && f.FundID == nil
}
