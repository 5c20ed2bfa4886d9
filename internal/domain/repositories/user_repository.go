package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"keygate.backend/internal/domain/entities"
)

// UserRepository defines user data operations
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error)
	GetByUsername(ctx context.Context, username string) (*entities.User, error)
	GetByDiscordID(ctx context.Context, discordID string) (*entities.User, error)
	Update(ctx context.Context, user *entities.User) error
	List(ctx context.Context, filter entities.UserFilter) ([]*entities.User, int64, error)
	// IncrementInvitesUsed bumps the monthly counter in a single statement.
	IncrementInvitesUsed(ctx context.Context, id uuid.UUID) error
	ResetInviteQuota(ctx context.Context, id uuid.UUID, at time.Time) error
}

// BindingCodeRepository defines discord binding code operations
type BindingCodeRepository interface {
	Create(ctx context.Context, code *entities.BindingCode) error
	GetByCode(ctx context.Context, code string) (*entities.BindingCode, error)
	GetActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) (*entities.BindingCode, error)
	MarkUsed(ctx context.Context, id uuid.UUID) error
}
