package repositories

import (
	"context"

	"keygate.backend/internal/domain/entities"
)

// ActivityLogRepository defines rolling activity log operations
type ActivityLogRepository interface {
	Create(ctx context.Context, log *entities.ActivityLog) error
	// TrimOlder keeps only the newest keep rows for the log's (user, category) pair.
	TrimOlder(ctx context.Context, log *entities.ActivityLog, keep int) error
	List(ctx context.Context, filter entities.ActivityLogFilter) ([]*entities.ActivityLog, int64, error)
}
