// Package lifecycle holds the pure state machines for keys and invites.
// Functions mutate the entity in memory and report whether a transition
// happened; persistence is the caller's job.
package lifecycle

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"keygate.backend/internal/domain/entities"
)

const day = 24 * time.Hour

var keyEdges = map[entities.KeyStatus][]entities.KeyStatus{
	entities.KeyStatusActive: {entities.KeyStatusUsed, entities.KeyStatusRevoked, entities.KeyStatusExpired},
	entities.KeyStatusUsed:   {entities.KeyStatusRevoked, entities.KeyStatusExpired},
}

// CanTransitionKey reports whether from -> to is a legal key edge.
func CanTransitionKey(from, to entities.KeyStatus) bool {
	for _, s := range keyEdges[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ActivateKey redeems an active key for user. expiresAt is computed from
// activation time unless the key is lifetime.
func ActivateKey(key *entities.Key, user uuid.UUID, now time.Time) bool {
	if key.Status != entities.KeyStatusActive {
		return false
	}
	key.ActivatedBy = uuid.NullUUID{UUID: user, Valid: true}
	key.ActivatedAt = null.TimeFrom(now)
	if key.KeyType == entities.KeyTypeLifetime {
		key.ExpiresAt = null.Time{}
	} else {
		key.ExpiresAt = null.TimeFrom(now.Add(time.Duration(key.DurationDays) * day))
	}
	key.Status = entities.KeyStatusUsed
	return true
}

// RevokeKey revokes an active or used key. Revoked and expired keys are left alone.
func RevokeKey(key *entities.Key) bool {
	if !CanTransitionKey(key.Status, entities.KeyStatusRevoked) {
		return false
	}
	key.Status = entities.KeyStatusRevoked
	return true
}

// CheckKeyExpiry flips an overdue active or used key to expired.
// It returns true only when it changed the status.
func CheckKeyExpiry(key *entities.Key, now time.Time) bool {
	if key.Status != entities.KeyStatusActive && key.Status != entities.KeyStatusUsed {
		return false
	}
	if !key.ExpiresAt.Valid || !now.After(key.ExpiresAt.Time) {
		return false
	}
	key.Status = entities.KeyStatusExpired
	return true
}

// RemainingDays returns whole days left: +Inf for lifetime, 0 when no expiry is set.
func RemainingDays(key *entities.Key, now time.Time) float64 {
	if key.KeyType == entities.KeyTypeLifetime {
		return math.Inf(1)
	}
	if !key.ExpiresAt.Valid {
		return 0
	}
	left := key.ExpiresAt.Time.Sub(now)
	if left <= 0 {
		return 0
	}
	return math.Floor(left.Hours() / 24)
}

// IsKeyValid reports whether the key still grants access.
func IsKeyValid(key *entities.Key) bool {
	return key.Status == entities.KeyStatusActive || key.Status == entities.KeyStatusUsed
}

// IsKeyActive reports whether the key can still be redeemed.
func IsKeyActive(key *entities.Key) bool {
	return key.Status == entities.KeyStatusActive
}

// View wraps a key for clients, with remaining days null for lifetime keys.
func View(key *entities.Key, now time.Time) entities.KeyView {
	view := entities.KeyView{Key: key}
	if days := RemainingDays(key, now); !math.IsInf(days, 1) {
		d := int(days)
		view.RemainingDays = &d
	}
	return view
}
