package model

import "time"

// Rating ordinals, lowest to highest.
const (
	RatingInactive = 0
	RatingOBS      = 1
	RatingS1       = 2
	RatingS2       = 3
	RatingS3       = 4
	RatingC1       = 5
	RatingC3       = 6
	RatingI1       = 7
	RatingI3       = 8
	RatingSUP      = 9
	RatingADM      = 10
)

// Controller is a controller identity. Identities are owned by the roster
// system; this service only reads them.
type Controller struct {
	CID            int64  `gorm:"primaryKey;column:cid"`
	Rating         int    `gorm:"not null;index"`
	Facility       string `gorm:"size:8;index"`
	HomeController bool   `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
