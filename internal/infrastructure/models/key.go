package models

import (
	"time"

	"github.com/google/uuid"
)

type Key struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Code         string     `gorm:"type:varchar(14);uniqueIndex;not null"`
	KeyType      string     `gorm:"type:varchar(20);not null;index"`
	Status       string     `gorm:"type:varchar(20);not null;index"`
	CreatedBy    *uuid.UUID `gorm:"type:uuid;index"`
	ActivatedBy  *uuid.UUID `gorm:"type:uuid;index"`
	ActivatedAt  *time.Time
	DurationDays int `gorm:"not null;default:30"`
	ExpiresAt    *time.Time `gorm:"index"`
	Notes        string     `gorm:"type:text"`
	Version      int        `gorm:"not null;default:1"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type KeyHistory struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	KeyID     uuid.UUID  `gorm:"type:uuid;not null;index"`
	Action    string     `gorm:"type:varchar(20);not null"`
	UserID    *uuid.UUID `gorm:"type:uuid"`
	Timestamp time.Time  `gorm:"not null;index"`
	Details   string     `gorm:"type:text"`
}

func (KeyHistory) TableName() string {
	return "key_history"
}
