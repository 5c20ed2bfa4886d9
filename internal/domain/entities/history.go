package entities

import (
	"time"

	"github.com/google/uuid"
)

// KeyAction is a recorded key transition
type KeyAction string

const (
	KeyActionCreated   KeyAction = "created"
	KeyActionActivated KeyAction = "activated"
	KeyActionRevoked   KeyAction = "revoked"
	KeyActionExpired   KeyAction = "expired"
)

// KeyHistoryEntry is an append-only record of a key transition
type KeyHistoryEntry struct {
	ID        uuid.UUID     `json:"id"`
	KeyID     uuid.UUID     `json:"keyId"`
	Action    KeyAction     `json:"action"`
	UserID    uuid.NullUUID `json:"userId"`
	Timestamp time.Time     `json:"timestamp"`
	Details   string        `json:"details"`
}

// LogLevel is the severity of an activity log row
type LogLevel string

const (
	LogLevelDebug    LogLevel = "debug"
	LogLevelInfo     LogLevel = "info"
	LogLevelWarning  LogLevel = "warning"
	LogLevelError    LogLevel = "error"
	LogLevelCritical LogLevel = "critical"
)

// LogCategory groups activity log rows
type LogCategory string

const (
	LogCategoryUser     LogCategory = "user"
	LogCategoryKey      LogCategory = "key"
	LogCategoryInvite   LogCategory = "invite"
	LogCategoryDiscord  LogCategory = "discord"
	LogCategorySystem   LogCategory = "system"
	LogCategorySecurity LogCategory = "security"
)

// ActivityLogRetention is how many rows are kept per (user, category).
const ActivityLogRetention = 5

// ActivityLog is a rolling secondary audit record
type ActivityLog struct {
	ID        uuid.UUID     `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Level     LogLevel      `json:"level"`
	Category  LogCategory   `json:"category"`
	Message   string        `json:"message"`
	UserID    uuid.NullUUID `json:"userId"`
	IPAddress string        `json:"ipAddress,omitempty"`
	ExtraData string        `json:"extraData,omitempty"`
}

// ActivityLogFilter narrows activity log listings
type ActivityLogFilter struct {
	Category LogCategory
	Level    LogLevel
	UserID   uuid.NullUUID
	Limit    int
	Offset   int
}
