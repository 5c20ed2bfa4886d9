package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// KeyType represents the kind of access a key grants
type KeyType string

const (
	KeyTypeStandard KeyType = "standard"
	KeyTypePremium  KeyType = "premium"
	KeyTypeLifetime KeyType = "lifetime"
)

// Valid reports whether t is a known key type.
func (t KeyType) Valid() bool {
	switch t {
	case KeyTypeStandard, KeyTypePremium, KeyTypeLifetime:
		return true
	}
	return false
}

// KeyStatus represents the lifecycle state of a key
type KeyStatus string

const (
	KeyStatusActive  KeyStatus = "active"
	KeyStatusUsed    KeyStatus = "used"
	KeyStatusExpired KeyStatus = "expired"
	KeyStatusRevoked KeyStatus = "revoked"
)

// Key is a time-bounded access grant redeemable once.
// ExpiresAt is always null for lifetime keys.
type Key struct {
	ID           uuid.UUID     `json:"id"`
	Code         string        `json:"code"`
	KeyType      KeyType       `json:"keyType"`
	Status       KeyStatus     `json:"status"`
	CreatedBy    uuid.NullUUID `json:"createdBy"`
	ActivatedBy  uuid.NullUUID `json:"activatedBy"`
	ActivatedAt  null.Time     `json:"activatedAt"`
	DurationDays int           `json:"durationDays"`
	ExpiresAt    null.Time     `json:"expiresAt"`
	Notes        string        `json:"notes,omitempty"`
	Version      int           `json:"-"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// KeyFilter narrows key listings
type KeyFilter struct {
	Status      KeyStatus
	KeyType     KeyType
	CreatedBy   uuid.NullUUID
	ActivatedBy uuid.NullUUID
	Limit       int
	Offset      int
}

// KeyView is a key as exposed to clients. RemainingDays is null for lifetime keys.
type KeyView struct {
	*Key
	RemainingDays *int `json:"remainingDays"`
}

// KeyDetail is a key together with its full history
type KeyDetail struct {
	KeyView
	History []*KeyHistoryEntry `json:"history"`
}

// CreateKeyInput represents input for issuing a key
type CreateKeyInput struct {
	KeyType      KeyType `json:"keyType" binding:"required"`
	DurationDays int     `json:"durationDays"`
	Notes        string  `json:"notes" binding:"max=500"`
}

// ActivateKeyInput represents input for redeeming a key by code
type ActivateKeyInput struct {
	Code string `json:"code" binding:"required"`
}
