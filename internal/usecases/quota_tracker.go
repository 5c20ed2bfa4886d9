package usecases

import (
	"context"
	"fmt"
	"time"

	"keygate.backend/internal/domain/entities"
	"keygate.backend/internal/domain/repositories"
)

// QuotaTracker enforces the per-user monthly invite quota.
type QuotaTracker struct {
	users  repositories.UserRepository
	period time.Duration
	now    func() time.Time
}

// NewQuotaTracker creates a new quota tracker
func NewQuotaTracker(users repositories.UserRepository, period time.Duration, now func() time.Time) *QuotaTracker {
	s := Settings{QuotaPeriod: period, Now: now}.withDefaults()
	return &QuotaTracker{users: users, period: s.QuotaPeriod, now: s.Now}
}

func unlimited(user *entities.User) bool {
	return user.Role == entities.UserRoleAdmin || user.MonthlyInviteLimit == entities.UnlimitedInvites
}

// AvailableInvites returns the user's remaining quota, resetting the counter
// first when a full period has elapsed since the last reset.
func (q *QuotaTracker) AvailableInvites(ctx context.Context, user *entities.User) (entities.InviteQuota, error) {
	if unlimited(user) {
		return entities.InviteQuota{
			Limit:     entities.UnlimitedInvites,
			Used:      user.InvitesUsedThisMonth,
			Available: entities.UnlimitedInvites,
			Unlimited: true,
		}, nil
	}

	now := q.now()
	if now.Sub(user.LastInviteReset) >= q.period {
		if err := q.users.ResetInviteQuota(ctx, user.ID, now); err != nil {
			return entities.InviteQuota{}, fmt.Errorf("failed to reset invite quota: %w", err)
		}
		user.InvitesUsedThisMonth = 0
		user.LastInviteReset = now
	}

	available := user.MonthlyInviteLimit - user.InvitesUsedThisMonth
	if available < 0 {
		available = 0
	}
	return entities.InviteQuota{
		Limit:     user.MonthlyInviteLimit,
		Used:      user.InvitesUsedThisMonth,
		Available: available,
		ResetsAt:  user.LastInviteReset.Add(q.period),
	}, nil
}

// ConsumeOne counts one invite against the user. Unlimited users are not counted.
func (q *QuotaTracker) ConsumeOne(ctx context.Context, user *entities.User) error {
	if unlimited(user) {
		return nil
	}
	if err := q.users.IncrementInvitesUsed(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to consume invite quota: %w", err)
	}
	user.InvitesUsedThisMonth++
	return nil
}
