package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username             string    `gorm:"type:varchar(50);uniqueIndex;not null"`
	Email                string    `gorm:"type:varchar(255);not null"`
	PasswordHash         string    `gorm:"type:varchar(255);not null"`
	Role                 string    `gorm:"type:varchar(20);not null;default:'user'"`
	IsBanned             bool      `gorm:"not null;default:false"`
	BanReason            *string   `gorm:"type:text"`
	DiscordID            *string   `gorm:"column:discord_id;type:varchar(64);uniqueIndex"`
	DiscordUsername      *string   `gorm:"type:varchar(100)"`
	DiscordAvatar        *string   `gorm:"type:varchar(255)"`
	RegisteredIP         string    `gorm:"column:registered_ip;type:varchar(64)"`
	LastLoginIP          *string   `gorm:"column:last_login_ip;type:varchar(64)"`
	LastLoginAt          *time.Time
	InvitedBy            *uuid.UUID `gorm:"type:uuid"`
	MonthlyInviteLimit   int        `gorm:"not null;default:2"`
	InvitesUsedThisMonth int        `gorm:"not null;default:0"`
	LastInviteReset      time.Time  `gorm:"not null"`
	Notes                string     `gorm:"type:text"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type BindingCode struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Code      string    `gorm:"type:varchar(6);uniqueIndex;not null"`
	IsUsed    bool      `gorm:"not null;default:false"`
	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"not null"`
}

func (BindingCode) TableName() string {
	return "discord_binding_codes"
}
