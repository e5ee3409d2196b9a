package model

import "time"

// EligibilityRecord is the per-controller readiness snapshot. One record per
// CID, created lazily the first time a controller qualifies for tracking.
// Date fields stay nil until the corresponding history yields a value;
// readers must treat nil as "not yet determined".
type EligibilityRecord struct {
	CID                   int64      `gorm:"primaryKey;column:cid"`
	InitialSelection      Tristate   `gorm:"type:boolean"`
	FirstSelectionDate    *time.Time
	LastPromotionDate     *time.Time
	LastTransferDate      *time.Time
	LastVisitDate         *time.Time
	CompetencyRating      int        `gorm:"not null;default:1"`
	CompetencyDate        *time.Time
	HasConsolidationHours Tristate   `gorm:"type:boolean"`
	ConsolidationHours    float64    `gorm:"not null;default:0"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}
