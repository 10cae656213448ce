package models

import (
	"time"

	"github.com/google/uuid"
)

type SuppressionRecord struct {
	ID                    uuid.UUID `gorm:"type:uuid;primaryKey"`
	SubjectID             string    `gorm:"type:varchar(100);not null;index"`
	ContentFingerprint    string    `gorm:"type:varchar(128);not null;index"`
	SubjectName           string    `gorm:"type:varchar(255);not null;default:''"`
	DateOfDeath           *time.Time
	RequesterName         string  `gorm:"type:varchar(255);not null"`
	RequesterEmail        string  `gorm:"type:varchar(255);not null"`
	RequesterRelationship string  `gorm:"type:varchar(50);not null;default:''"`
	RequesterOrigin       string  `gorm:"type:varchar(100);not null;default:'';index"`
	Reason                string  `gorm:"type:varchar(50);not null;index"`
	VerificationToken     *string `gorm:"type:varchar(128);uniqueIndex"`
	TokenCreatedAt        *time.Time
	VerifiedAt            *time.Time
	SuppressedAt          *time.Time `gorm:"index"`
	DoNotRepublish        bool       `gorm:"not null;default:false;index"`
	ReviewedAt            *time.Time
	ReviewedBy            *string `gorm:"type:varchar(255)"`
	Notes                 string  `gorm:"type:text;not null;default:''"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (SuppressionRecord) TableName() string {
	return "suppression_records"
}
