package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"keygate.backend/internal/domain/entities"
	"keygate.backend/internal/infrastructure/models"
	"keygate.backend/pkg/utils"
)

// ActivityLogRepositoryImpl implements the rolling activity log
type ActivityLogRepositoryImpl struct {
	db *gorm.DB
}

func NewActivityLogRepository(db *gorm.DB) *ActivityLogRepositoryImpl {
	return &ActivityLogRepositoryImpl{db: db}
}

func (r *ActivityLogRepositoryImpl) Create(ctx context.Context, log *entities.ActivityLog) error {
	if log.ID == uuid.Nil {
		log.ID = utils.GenerateUUIDv7()
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}
	m := &models.ActivityLog{
		ID:        log.ID,
		Timestamp: log.Timestamp.UTC(),
		Level:     string(log.Level),
		Category:  string(log.Category),
		Message:   log.Message,
		UserID:    uuidPtr(log.UserID),
		IPAddress: log.IPAddress,
		ExtraData: log.ExtraData,
	}
	return dbFor(ctx, r.db).Create(m).Error
}

// TrimOlder deletes everything but the newest keep rows sharing the log's
// (user, category). Rows without a user form their own group.
func (r *ActivityLogRepositoryImpl) TrimOlder(ctx context.Context, log *entities.ActivityLog, keep int) error {
	db := dbFor(ctx, r.db)

	var keepIDs []string
	err := scopeOwner(db.Model(&models.ActivityLog{}), log).
		Order("timestamp DESC, id DESC").
		Limit(keep).
		Pluck("id", &keepIDs).Error
	if err != nil {
		return err
	}

	del := scopeOwner(db, log)
	if len(keepIDs) > 0 {
		del = del.Where("id NOT IN ?", keepIDs)
	}
	return del.Delete(&models.ActivityLog{}).Error
}

func scopeOwner(q *gorm.DB, log *entities.ActivityLog) *gorm.DB {
	q = q.Where("category = ?", string(log.Category))
	if log.UserID.Valid {
		return q.Where("user_id = ?", log.UserID.UUID)
	}
	return q.Where("user_id IS NULL")
}

func (r *ActivityLogRepositoryImpl) List(ctx context.Context, filter entities.ActivityLogFilter) ([]*entities.ActivityLog, int64, error) {
	query := dbFor(ctx, r.db).Model(&models.ActivityLog{})
	if filter.Category != "" {
		query = query.Where("category = ?", string(filter.Category))
	}
	if filter.Level != "" {
		query = query.Where("level = ?", string(filter.Level))
	}
	if filter.UserID.Valid {
		query = query.Where("user_id = ?", filter.UserID.UUID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ms []models.ActivityLog
	if err := applyPage(query.Order("timestamp DESC, id DESC"), filter.Limit, filter.Offset).Find(&ms).Error; err != nil {
		return nil, 0, err
	}

	logs := make([]*entities.ActivityLog, 0, len(ms))
	for _, m := range ms {
		logs = append(logs, &entities.ActivityLog{
			ID:        m.ID,
			Timestamp: m.Timestamp,
			Level:     entities.LogLevel(m.Level),
			Category:  entities.LogCategory(m.Category),
			Message:   m.Message,
			UserID:    nullUUID(m.UserID),
			IPAddress: m.IPAddress,
			ExtraData: m.ExtraData,
		})
	}
	return logs, total, nil
}
