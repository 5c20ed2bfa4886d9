package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"keygate.backend/internal/domain/entities"
	domainerrors "keygate.backend/internal/domain/errors"
	"keygate.backend/internal/infrastructure/models"
	"keygate.backend/pkg/utils"
)

// UserRepository implements user data operations
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	if user.ID == uuid.Nil {
		user.ID = utils.GenerateUUIDv7()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.LastInviteReset.IsZero() {
		user.LastInviteReset = now
	}
	user.UpdatedAt = now

	if err := dbFor(ctx, r.db).Create(r.toModel(user)).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetByID gets a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	var m models.User
	if err := lockedDB(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return r.toEntity(&m), nil
}

// GetByUsername gets a user by username, case-insensitively
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	var m models.User
	if err := dbFor(ctx, r.db).Where("LOWER(username) = ?", strings.ToLower(username)).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return r.toEntity(&m), nil
}

// GetByDiscordID gets the user bound to a discord account
func (r *UserRepository) GetByDiscordID(ctx context.Context, discordID string) (*entities.User, error) {
	var m models.User
	if err := dbFor(ctx, r.db).Where("discord_id = ?", discordID).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return r.toEntity(&m), nil
}

// Update updates the mutable user fields. Invite counters are written only
// through IncrementInvitesUsed and ResetInviteQuota.
func (r *UserRepository) Update(ctx context.Context, user *entities.User) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"email":                user.Email,
		"password_hash":        user.PasswordHash,
		"role":                 string(user.Role),
		"is_banned":            user.IsBanned,
		"ban_reason":           stringPtr(user.BanReason),
		"discord_id":           stringPtr(user.DiscordID),
		"discord_username":     stringPtr(user.DiscordUsername),
		"discord_avatar":       stringPtr(user.DiscordAvatar),
		"last_login_ip":        stringPtr(user.LastLoginIP),
		"last_login_at":        timePtr(user.LastLoginAt),
		"monthly_invite_limit": user.MonthlyInviteLimit,
		"notes":                user.Notes,
		"updated_at":           now,
	}

	result := dbFor(ctx, r.db).Model(&models.User{}).Where("id = ?", user.ID).Updates(updates)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return domainerrors.ErrAlreadyExists
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	user.UpdatedAt = now
	return nil
}

// List lists users with optional filters
func (r *UserRepository) List(ctx context.Context, filter entities.UserFilter) ([]*entities.User, int64, error) {
	query := dbFor(ctx, r.db).Model(&models.User{})

	if filter.Search != "" {
		searchTerm := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", searchTerm, searchTerm)
	}
	if filter.Role != "" {
		query = query.Where("role = ?", string(filter.Role))
	}
	if filter.IsBanned != nil {
		query = query.Where("is_banned = ?", *filter.IsBanned)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var userModels []models.User
	if err := applyPage(query.Order("created_at DESC"), filter.Limit, filter.Offset).Find(&userModels).Error; err != nil {
		return nil, 0, err
	}

	users := make([]*entities.User, 0, len(userModels))
	for i := range userModels {
		users = append(users, r.toEntity(&userModels[i]))
	}
	return users, total, nil
}

// IncrementInvitesUsed adds one to the monthly counter in a single statement
func (r *UserRepository) IncrementInvitesUsed(ctx context.Context, id uuid.UUID) error {
	result := dbFor(ctx, r.db).Model(&models.User{}).Where("id = ?", id).
		UpdateColumn("invites_used_this_month", gorm.Expr("invites_used_this_month + ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// ResetInviteQuota zeroes the monthly counter and stamps the reset time
func (r *UserRepository) ResetInviteQuota(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := dbFor(ctx, r.db).Model(&models.User{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"invites_used_this_month": 0,
			"last_invite_reset":       at.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func (r *UserRepository) toModel(user *entities.User) *models.User {
	return &models.User{
		ID:                   user.ID,
		Username:             user.Username,
		Email:                user.Email,
		PasswordHash:         user.PasswordHash,
		Role:                 string(user.Role),
		IsBanned:             user.IsBanned,
		BanReason:            stringPtr(user.BanReason),
		DiscordID:            stringPtr(user.DiscordID),
		DiscordUsername:      stringPtr(user.DiscordUsername),
		DiscordAvatar:        stringPtr(user.DiscordAvatar),
		RegisteredIP:         user.RegisteredIP,
		LastLoginIP:          stringPtr(user.LastLoginIP),
		LastLoginAt:          timePtr(user.LastLoginAt),
		InvitedBy:            uuidPtr(user.InvitedBy),
		MonthlyInviteLimit:   user.MonthlyInviteLimit,
		InvitesUsedThisMonth: user.InvitesUsedThisMonth,
		LastInviteReset:      user.LastInviteReset.UTC(),
		Notes:                user.Notes,
		CreatedAt:            user.CreatedAt,
		UpdatedAt:            user.UpdatedAt,
	}
}

func (r *UserRepository) toEntity(m *models.User) *entities.User {
	return &entities.User{
		ID:                   m.ID,
		Username:             m.Username,
		Email:                m.Email,
		PasswordHash:         m.PasswordHash,
		Role:                 entities.UserRole(m.Role),
		IsBanned:             m.IsBanned,
		BanReason:            null.StringFromPtr(m.BanReason),
		DiscordID:            null.StringFromPtr(m.DiscordID),
		DiscordUsername:      null.StringFromPtr(m.DiscordUsername),
		DiscordAvatar:        null.StringFromPtr(m.DiscordAvatar),
		RegisteredIP:         m.RegisteredIP,
		LastLoginIP:          null.StringFromPtr(m.LastLoginIP),
		LastLoginAt:          null.TimeFromPtr(m.LastLoginAt),
		InvitedBy:            nullUUID(m.InvitedBy),
		MonthlyInviteLimit:   m.MonthlyInviteLimit,
		InvitesUsedThisMonth: m.InvitesUsedThisMonth,
		LastInviteReset:      m.LastInviteReset,
		Notes:                m.Notes,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

// BindingCodeRepositoryImpl implements discord binding code operations
type BindingCodeRepositoryImpl struct {
	db *gorm.DB
}

func NewBindingCodeRepository(db *gorm.DB) *BindingCodeRepositoryImpl {
	return &BindingCodeRepositoryImpl{db: db}
}

func (r *BindingCodeRepositoryImpl) Create(ctx context.Context, code *entities.BindingCode) error {
	if code.ID == uuid.Nil {
		code.ID = utils.GenerateUUIDv7()
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}
	m := &models.BindingCode{
		ID:        code.ID,
		UserID:    code.UserID,
		Code:      code.Code,
		IsUsed:    code.IsUsed,
		CreatedAt: code.CreatedAt,
		ExpiresAt: code.ExpiresAt.UTC(),
	}
	if err := dbFor(ctx, r.db).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateCode
		}
		return err
	}
	return nil
}

func (r *BindingCodeRepositoryImpl) GetByCode(ctx context.Context, code string) (*entities.BindingCode, error) {
	var m models.BindingCode
	if err := lockedDB(ctx, r.db).Where("code = ?", code).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return bindingToEntity(&m), nil
}

// GetActiveByUser returns the user's newest unused, unexpired code
func (r *BindingCodeRepositoryImpl) GetActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) (*entities.BindingCode, error) {
	var m models.BindingCode
	err := dbFor(ctx, r.db).
		Where("user_id = ? AND is_used = ? AND expires_at > ?", userID, false, now.UTC()).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return bindingToEntity(&m), nil
}

func (r *BindingCodeRepositoryImpl) MarkUsed(ctx context.Context, id uuid.UUID) error {
	result := dbFor(ctx, r.db).Model(&models.BindingCode{}).
		Where("id = ? AND is_used = ?", id, false).
		Update("is_used", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func bindingToEntity(m *models.BindingCode) *entities.BindingCode {
	return &entities.BindingCode{
		ID:        m.ID,
		UserID:    m.UserID,
		Code:      m.Code,
		IsUsed:    m.IsUsed,
		CreatedAt: m.CreatedAt,
		ExpiresAt: m.ExpiresAt,
	}
}
