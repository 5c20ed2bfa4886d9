package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"keygate.backend/internal/domain/entities"
)

// KeyRepository defines key data operations
type KeyRepository interface {
	Create(ctx context.Context, key *entities.Key) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Key, error)
	GetByCode(ctx context.Context, code string) (*entities.Key, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	// Update persists key if its version matches and bumps it; ErrConflict otherwise.
	Update(ctx context.Context, key *entities.Key) error
	List(ctx context.Context, filter entities.KeyFilter) ([]*entities.Key, int64, error)
	// ListExpiredCandidates returns active or used keys whose expiresAt is before now.
	ListExpiredCandidates(ctx context.Context, now time.Time, limit int) ([]*entities.Key, error)
}

// KeyHistoryRepository defines append-only key history operations
type KeyHistoryRepository interface {
	Create(ctx context.Context, entry *entities.KeyHistoryEntry) error
	ListByKey(ctx context.Context, keyID uuid.UUID) ([]*entities.KeyHistoryEntry, error)
	LatestTimestamp(ctx context.Context, keyID uuid.UUID) (time.Time, bool, error)
}
