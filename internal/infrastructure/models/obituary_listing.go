package models

import (
	"time"
)

type ObituaryListing struct {
	SubjectID          string `gorm:"type:varchar(100);primaryKey"`
	ContentFingerprint string `gorm:"type:varchar(128);not null;index"`
	FullName           string `gorm:"type:varchar(255);not null"`
	DateOfDeath        time.Time
	PublishedAt        time.Time `gorm:"not null"`
	SuppressedAt       *time.Time
	SuppressedReason   *string `gorm:"type:varchar(50)"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (ObituaryListing) TableName() string {
	return "obituary_listings"
}
