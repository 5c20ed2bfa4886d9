package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"keygate.backend/internal/domain/entities"
)

// InviteRepository defines invite data operations
type InviteRepository interface {
	Create(ctx context.Context, invite *entities.Invite) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Invite, error)
	GetByCode(ctx context.Context, code string) (*entities.Invite, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	Update(ctx context.Context, invite *entities.Invite) error
	List(ctx context.Context, filter entities.InviteFilter) ([]*entities.Invite, int64, error)
	ListExpiredCandidates(ctx context.Context, now time.Time, limit int) ([]*entities.Invite, error)
}
