package lifecycle

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"keygate.backend/internal/domain/entities"
)

// UseInvite consumes an active invite on behalf of a newly registered user.
func UseInvite(invite *entities.Invite, user uuid.UUID, ip string, now time.Time) bool {
	if invite.Status != entities.InviteStatusActive {
		return false
	}
	invite.UsedBy = uuid.NullUUID{UUID: user, Valid: true}
	invite.UsedAt = null.TimeFrom(now)
	invite.UsedIP = null.NewString(ip, ip != "")
	invite.Status = entities.InviteStatusUsed
	return true
}

// RevokeInvite revokes an active invite.
func RevokeInvite(invite *entities.Invite) bool {
	if invite.Status != entities.InviteStatusActive {
		return false
	}
	invite.Status = entities.InviteStatusRevoked
	return true
}

// CheckInviteExpiry flips an overdue active invite to expired.
func CheckInviteExpiry(invite *entities.Invite, now time.Time) bool {
	if invite.Status != entities.InviteStatusActive || !now.After(invite.ExpiresAt) {
		return false
	}
	invite.Status = entities.InviteStatusExpired
	return true
}

// IsInviteUsable reports whether the invite can still be used for registration.
func IsInviteUsable(invite *entities.Invite) bool {
	return invite.Status == entities.InviteStatusActive
}
