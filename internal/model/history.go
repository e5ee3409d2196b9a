package model

import "time"

// Transfer request states.
const (
	TransferPending  = 0
	TransferAccepted = 1
	TransferRejected = 2
)

// TransferEvent records a facility transfer request for a controller.
type TransferEvent struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	CID          int64  `gorm:"index;not null;column:cid"`
	FromFacility string `gorm:"size:8"`
	ToFacility   string `gorm:"size:8;not null"`
	Status       int    `gorm:"not null"`
	CreatedAt    time.Time
}

// PromotionEvent records a rating change for a controller.
type PromotionEvent struct {
	ID         int64 `gorm:"primaryKey;autoIncrement"`
	CID        int64 `gorm:"index;not null;column:cid"`
	FromRating int   `gorm:"not null"`
	ToRating   int   `gorm:"not null"`
	CreatedAt  time.Time
}

// VisitEvent records a controller joining a facility as a visitor.
type VisitEvent struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	CID       int64  `gorm:"index;not null;column:cid"`
	Facility  string `gorm:"size:8;not null"`
	CreatedAt time.Time
}

// CompetencyEvent records a passed training-course assessment. CourseRating
// is the rating tier the course certifies for.
type CompetencyEvent struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	CID          int64     `gorm:"index;not null;column:cid"`
	CourseRating int       `gorm:"not null"`
	CompletedAt  time.Time `gorm:"not null;index"`
	CreatedAt    time.Time
}
