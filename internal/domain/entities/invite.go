package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// InviteStatus represents the lifecycle state of an invite
type InviteStatus string

const (
	InviteStatusActive  InviteStatus = "active"
	InviteStatusUsed    InviteStatus = "used"
	InviteStatusExpired InviteStatus = "expired"
	InviteStatusRevoked InviteStatus = "revoked"
)

// Invite is a single-use registration code issued by an existing user
type Invite struct {
	ID        uuid.UUID     `json:"id"`
	Code      string        `json:"code"`
	Status    InviteStatus  `json:"status"`
	CreatedBy uuid.UUID     `json:"createdBy"`
	UsedBy    uuid.NullUUID `json:"usedBy"`
	UsedAt    null.Time     `json:"usedAt"`
	UsedIP    null.String   `json:"usedIp"`
	ExpiresAt time.Time     `json:"expiresAt"`
	Version   int           `json:"-"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// InviteFilter narrows invite listings
type InviteFilter struct {
	Status    InviteStatus
	CreatedBy uuid.NullUUID
	Limit     int
	Offset    int
}

// InviteQuota describes how many invites a user may still create this period
type InviteQuota struct {
	Limit     int       `json:"limit"`
	Used      int       `json:"used"`
	Available int       `json:"available"`
	Unlimited bool      `json:"unlimited"`
	ResetsAt  time.Time `json:"resetsAt"`
}

// CreateInviteInput represents input for creating an invite
type CreateInviteInput struct {
	ExpiresDays int `json:"expiresDays" binding:"omitempty,min=1,max=90"`
}

// ValidateInviteInput represents a public invite check
type ValidateInviteInput struct {
	Code string `json:"code" binding:"required"`
}

// InviteValidation is the public answer to an invite check
type InviteValidation struct {
	Valid     bool         `json:"valid"`
	Status    InviteStatus `json:"status,omitempty"`
	ExpiresAt *time.Time   `json:"expiresAt,omitempty"`
}
