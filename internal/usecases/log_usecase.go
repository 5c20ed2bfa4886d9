package usecases

import (
	"context"

	"keygate.backend/internal/domain/entities"
	"keygate.backend/internal/domain/repositories"
)

// LogUsecase exposes the rolling activity log
type LogUsecase struct {
	logRepo repositories.ActivityLogRepository
	authz   Authorizer
}

// NewLogUsecase creates a new log usecase
func NewLogUsecase(logRepo repositories.ActivityLogRepository, authz Authorizer) *LogUsecase {
	return &LogUsecase{logRepo: logRepo, authz: authz}
}

// ListLogs lists activity log rows, newest first
func (u *LogUsecase) ListLogs(ctx context.Context, actor entities.Actor, filter entities.ActivityLogFilter) ([]*entities.ActivityLog, int64, error) {
	if err := u.authz.Authorize(actor, entities.PermLogView); err != nil {
		return nil, 0, err
	}
	return u.logRepo.List(ctx, filter)
}
