package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"keygate.backend/internal/domain/entities"
	domainerrors "keygate.backend/internal/domain/errors"
	"keygate.backend/internal/infrastructure/models"
	"keygate.backend/pkg/utils"
)

// InviteRepositoryImpl implements InviteRepository
type InviteRepositoryImpl struct {
	db *gorm.DB
}

func NewInviteRepository(db *gorm.DB) *InviteRepositoryImpl {
	return &InviteRepositoryImpl{db: db}
}

func (r *InviteRepositoryImpl) Create(ctx context.Context, invite *entities.Invite) error {
	if invite.ID == uuid.Nil {
		invite.ID = utils.GenerateUUIDv7()
	}
	now := time.Now().UTC()
	if invite.CreatedAt.IsZero() {
		invite.CreatedAt = now
	}
	invite.UpdatedAt = now
	if invite.Version == 0 {
		invite.Version = 1
	}

	m := &models.Invite{
		ID:        invite.ID,
		Code:      invite.Code,
		Status:    string(invite.Status),
		CreatedBy: invite.CreatedBy,
		UsedBy:    uuidPtr(invite.UsedBy),
		UsedAt:    timePtr(invite.UsedAt),
		UsedIP:    stringPtr(invite.UsedIP),
		ExpiresAt: invite.ExpiresAt.UTC(),
		Version:   invite.Version,
		CreatedAt: invite.CreatedAt,
		UpdatedAt: invite.UpdatedAt,
	}
	if err := dbFor(ctx, r.db).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateCode
		}
		return err
	}
	return nil
}

func (r *InviteRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*entities.Invite, error) {
	var m models.Invite
	if err := lockedDB(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return r.toEntity(&m), nil
}

func (r *InviteRepositoryImpl) GetByCode(ctx context.Context, code string) (*entities.Invite, error) {
	var m models.Invite
	if err := lockedDB(ctx, r.db).Where("code = ?", code).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return r.toEntity(&m), nil
}

func (r *InviteRepositoryImpl) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := dbFor(ctx, r.db).Model(&models.Invite{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *InviteRepositoryImpl) Update(ctx context.Context, invite *entities.Invite) error {
	now := time.Now().UTC()
	result := dbFor(ctx, r.db).Model(&models.Invite{}).
		Where("id = ? AND version = ?", invite.ID, invite.Version).
		Updates(map[string]interface{}{
			"status":     string(invite.Status),
			"used_by":    uuidPtr(invite.UsedBy),
			"used_at":    timePtr(invite.UsedAt),
			"used_ip":    stringPtr(invite.UsedIP),
			"version":    invite.Version + 1,
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := dbFor(ctx, r.db).Model(&models.Invite{}).Where("id = ?", invite.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domainerrors.ErrNotFound
		}
		return domainerrors.ErrConflict
	}
	invite.Version++
	invite.UpdatedAt = now
	return nil
}

func (r *InviteRepositoryImpl) List(ctx context.Context, filter entities.InviteFilter) ([]*entities.Invite, int64, error) {
	query := dbFor(ctx, r.db).Model(&models.Invite{})
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.CreatedBy.Valid {
		query = query.Where("created_by = ?", filter.CreatedBy.UUID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ms []models.Invite
	if err := applyPage(query.Order("created_at DESC"), filter.Limit, filter.Offset).Find(&ms).Error; err != nil {
		return nil, 0, err
	}

	invites := make([]*entities.Invite, 0, len(ms))
	for i := range ms {
		invites = append(invites, r.toEntity(&ms[i]))
	}
	return invites, total, nil
}

func (r *InviteRepositoryImpl) ListExpiredCandidates(ctx context.Context, now time.Time, limit int) ([]*entities.Invite, error) {
	var ms []models.Invite
	query := dbFor(ctx, r.db).
		Where("status = ? AND expires_at < ?", string(entities.InviteStatusActive), now.UTC()).
		Order("expires_at ASC")
	if err := applyPage(query, limit, 0).Find(&ms).Error; err != nil {
		return nil, err
	}

	invites := make([]*entities.Invite, 0, len(ms))
	for i := range ms {
		invites = append(invites, r.toEntity(&ms[i]))
	}
	return invites, nil
}

func (r *InviteRepositoryImpl) toEntity(m *models.Invite) *entities.Invite {
	return &entities.Invite{
		ID:        m.ID,
		Code:      m.Code,
		Status:    entities.InviteStatus(m.Status),
		CreatedBy: m.CreatedBy,
		UsedBy:    nullUUID(m.UsedBy),
		UsedAt:    null.TimeFromPtr(m.UsedAt),
		UsedIP:    null.StringFromPtr(m.UsedIP),
		ExpiresAt: m.ExpiresAt,
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
