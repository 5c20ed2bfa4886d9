package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"keygate.backend/internal/domain/entities"
	"keygate.backend/internal/domain/repositories"
)

// HistoryRecorder appends key history and rolling activity logs.
// Both methods must be called inside the transaction of the change they describe.
type HistoryRecorder struct {
	keyHistory repositories.KeyHistoryRepository
	activity   repositories.ActivityLogRepository
	now        func() time.Time
}

// NewHistoryRecorder creates a new history recorder
func NewHistoryRecorder(
	keyHistory repositories.KeyHistoryRepository,
	activity repositories.ActivityLogRepository,
	now func() time.Time,
) *HistoryRecorder {
	if now == nil {
		now = Settings{}.withDefaults().Now
	}
	return &HistoryRecorder{keyHistory: keyHistory, activity: activity, now: now}
}

// RecordKey appends a key history entry. Timestamps never go backwards for a key.
func (h *HistoryRecorder) RecordKey(ctx context.Context, keyID uuid.UUID, action entities.KeyAction, actor entities.Actor, details string) error {
	ts := h.now()
	latest, ok, err := h.keyHistory.LatestTimestamp(ctx, keyID)
	if err != nil {
		return fmt.Errorf("failed to read key history: %w", err)
	}
	if ok && ts.Before(latest) {
		ts = latest
	}

	entry := &entities.KeyHistoryEntry{
		KeyID:     keyID,
		Action:    action,
		UserID:    actor.NullID(),
		Timestamp: ts,
		Details:   details,
	}
	if err := h.keyHistory.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to append key history: %w", err)
	}
	return nil
}

// KeyHistory returns the full history of a key, oldest first.
func (h *HistoryRecorder) KeyHistory(ctx context.Context, keyID uuid.UUID) ([]*entities.KeyHistoryEntry, error) {
	return h.keyHistory.ListByKey(ctx, keyID)
}

// RecordActivity inserts log and trims its (user, category) pair to the retention size.
func (h *HistoryRecorder) RecordActivity(ctx context.Context, log *entities.ActivityLog) error {
	if log.Timestamp.IsZero() {
		log.Timestamp = h.now()
	}
	if log.Level == "" {
		log.Level = entities.LogLevelInfo
	}
	if err := h.activity.Create(ctx, log); err != nil {
		return fmt.Errorf("failed to write activity log: %w", err)
	}
	if err := h.activity.TrimOlder(ctx, log, entities.ActivityLogRetention); err != nil {
		return fmt.Errorf("failed to trim activity log: %w", err)
	}
	return nil
}

// activity builds an info-level activity row for actor.
func activity(category entities.LogCategory, actor entities.Actor, ip, message string) *entities.ActivityLog {
	return &entities.ActivityLog{
		Level:     entities.LogLevelInfo,
		Category:  category,
		Message:   message,
		UserID:    actor.NullID(),
		IPAddress: ip,
	}
}
