package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"keygate.backend/internal/domain/entities"
	domainerrors "keygate.backend/internal/domain/errors"
	"keygate.backend/internal/infrastructure/models"
	"keygate.backend/pkg/utils"
)

// KeyRepositoryImpl implements KeyRepository
type KeyRepositoryImpl struct {
	db *gorm.DB
}

func NewKeyRepository(db *gorm.DB) *KeyRepositoryImpl {
	return &KeyRepositoryImpl{db: db}
}

func (r *KeyRepositoryImpl) Create(ctx context.Context, key *entities.Key) error {
	if key.ID == uuid.Nil {
		key.ID = utils.GenerateUUIDv7()
	}
	now := time.Now().UTC()
	if key.CreatedAt.IsZero() {
		key.CreatedAt = now
	}
	key.UpdatedAt = now
	if key.Version == 0 {
		key.Version = 1
	}

	m := r.toModel(key)
	if err := dbFor(ctx, r.db).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateCode
		}
		return err
	}
	return nil
}

func (r *KeyRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*entities.Key, error) {
	var m models.Key
	if err := lockedDB(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return r.toEntity(&m), nil
}

func (r *KeyRepositoryImpl) GetByCode(ctx context.Context, code string) (*entities.Key, error) {
	var m models.Key
	if err := lockedDB(ctx, r.db).Where("code = ?", code).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return r.toEntity(&m), nil
}

func (r *KeyRepositoryImpl) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := dbFor(ctx, r.db).Model(&models.Key{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Update writes the mutable key fields guarded by the version column.
func (r *KeyRepositoryImpl) Update(ctx context.Context, key *entities.Key) error {
	now := time.Now().UTC()
	result := dbFor(ctx, r.db).Model(&models.Key{}).
		Where("id = ? AND version = ?", key.ID, key.Version).
		Updates(map[string]interface{}{
			"status":       string(key.Status),
			"activated_by": uuidPtr(key.ActivatedBy),
			"activated_at": timePtr(key.ActivatedAt),
			"expires_at":   timePtr(key.ExpiresAt),
			"notes":        key.Notes,
			"version":      key.Version + 1,
			"updated_at":   now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.missOrConflict(ctx, key.ID)
	}
	key.Version++
	key.UpdatedAt = now
	return nil
}

func (r *KeyRepositoryImpl) missOrConflict(ctx context.Context, id uuid.UUID) error {
	var count int64
	if err := dbFor(ctx, r.db).Model(&models.Key{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domainerrors.ErrNotFound
	}
	return domainerrors.ErrConflict
}

func (r *KeyRepositoryImpl) List(ctx context.Context, filter entities.KeyFilter) ([]*entities.Key, int64, error) {
	query := dbFor(ctx, r.db).Model(&models.Key{})
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.KeyType != "" {
		query = query.Where("key_type = ?", string(filter.KeyType))
	}
	if filter.CreatedBy.Valid {
		query = query.Where("created_by = ?", filter.CreatedBy.UUID)
	}
	if filter.ActivatedBy.Valid {
		query = query.Where("activated_by = ?", filter.ActivatedBy.UUID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ms []models.Key
	if err := applyPage(query.Order("created_at DESC"), filter.Limit, filter.Offset).Find(&ms).Error; err != nil {
		return nil, 0, err
	}

	keys := make([]*entities.Key, 0, len(ms))
	for i := range ms {
		keys = append(keys, r.toEntity(&ms[i]))
	}
	return keys, total, nil
}

func (r *KeyRepositoryImpl) ListExpiredCandidates(ctx context.Context, now time.Time, limit int) ([]*entities.Key, error) {
	var ms []models.Key
	query := dbFor(ctx, r.db).
		Where("status IN ?", []string{string(entities.KeyStatusActive), string(entities.KeyStatusUsed)}).
		Where("expires_at IS NOT NULL AND expires_at < ?", now.UTC()).
		Order("expires_at ASC")
	if err := applyPage(query, limit, 0).Find(&ms).Error; err != nil {
		return nil, err
	}

	keys := make([]*entities.Key, 0, len(ms))
	for i := range ms {
		keys = append(keys, r.toEntity(&ms[i]))
	}
	return keys, nil
}

func (r *KeyRepositoryImpl) toModel(key *entities.Key) *models.Key {
	return &models.Key{
		ID:           key.ID,
		Code:         key.Code,
		KeyType:      string(key.KeyType),
		Status:       string(key.Status),
		CreatedBy:    uuidPtr(key.CreatedBy),
		ActivatedBy:  uuidPtr(key.ActivatedBy),
		ActivatedAt:  timePtr(key.ActivatedAt),
		DurationDays: key.DurationDays,
		ExpiresAt:    timePtr(key.ExpiresAt),
		Notes:        key.Notes,
		Version:      key.Version,
		CreatedAt:    key.CreatedAt,
		UpdatedAt:    key.UpdatedAt,
	}
}

func (r *KeyRepositoryImpl) toEntity(m *models.Key) *entities.Key {
	return &entities.Key{
		ID:           m.ID,
		Code:         m.Code,
		KeyType:      entities.KeyType(m.KeyType),
		Status:       entities.KeyStatus(m.Status),
		CreatedBy:    nullUUID(m.CreatedBy),
		ActivatedBy:  nullUUID(m.ActivatedBy),
		ActivatedAt:  null.TimeFromPtr(m.ActivatedAt),
		DurationDays: m.DurationDays,
		ExpiresAt:    null.TimeFromPtr(m.ExpiresAt),
		Notes:        m.Notes,
		Version:      m.Version,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// KeyHistoryRepositoryImpl implements KeyHistoryRepository
type KeyHistoryRepositoryImpl struct {
	db *gorm.DB
}

func NewKeyHistoryRepository(db *gorm.DB) *KeyHistoryRepositoryImpl {
	return &KeyHistoryRepositoryImpl{db: db}
}

func (r *KeyHistoryRepositoryImpl) Create(ctx context.Context, entry *entities.KeyHistoryEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = utils.GenerateUUIDv7()
	}
	m := &models.KeyHistory{
		ID:        entry.ID,
		KeyID:     entry.KeyID,
		Action:    string(entry.Action),
		UserID:    uuidPtr(entry.UserID),
		Timestamp: entry.Timestamp.UTC(),
		Details:   entry.Details,
	}
	return dbFor(ctx, r.db).Create(m).Error
}

// ListByKey returns the key's history oldest first.
func (r *KeyHistoryRepositoryImpl) ListByKey(ctx context.Context, keyID uuid.UUID) ([]*entities.KeyHistoryEntry, error) {
	var ms []models.KeyHistory
	if err := dbFor(ctx, r.db).Where("key_id = ?", keyID).Order("timestamp ASC, id ASC").Find(&ms).Error; err != nil {
		return nil, err
	}

	entries := make([]*entities.KeyHistoryEntry, 0, len(ms))
	for _, m := range ms {
		entries = append(entries, &entities.KeyHistoryEntry{
			ID:        m.ID,
			KeyID:     m.KeyID,
			Action:    entities.KeyAction(m.Action),
			UserID:    nullUUID(m.UserID),
			Timestamp: m.Timestamp,
			Details:   m.Details,
		})
	}
	return entries, nil
}

func (r *KeyHistoryRepositoryImpl) LatestTimestamp(ctx context.Context, keyID uuid.UUID) (time.Time, bool, error) {
	var m models.KeyHistory
	err := dbFor(ctx, r.db).Where("key_id = ?", keyID).Order("timestamp DESC").First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return m.Timestamp, true, nil
}
