package models

import (
	"time"

	"github.com/google/uuid"
)

type ActivityLog struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Timestamp time.Time  `gorm:"not null;index:idx_activity_logs_user_category_ts,priority:3"`
	Level     string     `gorm:"type:varchar(20);not null"`
	Category  string     `gorm:"type:varchar(20);not null;index:idx_activity_logs_user_category_ts,priority:2"`
	Message   string     `gorm:"type:text;not null"`
	UserID    *uuid.UUID `gorm:"type:uuid;index:idx_activity_logs_user_category_ts,priority:1"`
	IPAddress string     `gorm:"column:ip_address;type:varchar(64)"`
	ExtraData string     `gorm:"type:text"`
}
