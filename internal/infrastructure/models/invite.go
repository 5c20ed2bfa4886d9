package models

import (
	"time"

	"github.com/google/uuid"
)

type Invite struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Code      string     `gorm:"type:varchar(14);uniqueIndex;not null"`
	Status    string     `gorm:"type:varchar(20);not null;index"`
	CreatedBy uuid.UUID  `gorm:"type:uuid;not null;index"`
	UsedBy    *uuid.UUID `gorm:"type:uuid"`
	UsedAt    *time.Time
	UsedIP    *string   `gorm:"column:used_ip;type:varchar(64)"`
	ExpiresAt time.Time `gorm:"not null;index"`
	Version   int       `gorm:"not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
