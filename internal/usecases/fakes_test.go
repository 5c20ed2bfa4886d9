package usecases_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"keygate.backend/internal/domain/entities"
	domainerrors "keygate.backend/internal/domain/errors"
	"keygate.backend/internal/infrastructure/authorization"
)

var t0 = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func newAuthorizer(t *testing.T) *authorization.Authorizer {
	t.Helper()
	enforcer, err := authorization.NewEnforcer()
	require.NoError(t, err)
	return authorization.NewAuthorizer(enforcer)
}

func actorFor(role entities.UserRole) entities.Actor {
	return entities.Actor{ID: uuid.New(), Username: string(role) + "-1", Role: role}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(at time.Time) *testClock { return &testClock{now: at} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = at
}

// passthroughUoW runs fn without a real transaction
type passthroughUoW struct{}

func (passthroughUoW) Do(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) }

func (passthroughUoW) WithLock(ctx context.Context) context.Context { return ctx }

// memKeyRepo is an in-memory KeyRepository with optimistic versioning
type memKeyRepo struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]entities.Key
	codes map[string]uuid.UUID
}

func newMemKeyRepo() *memKeyRepo {
	return &memKeyRepo{byID: map[uuid.UUID]entities.Key{}, codes: map[string]uuid.UUID{}}
}

func (r *memKeyRepo) Create(_ context.Context, key *entities.Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.codes[key.Code]; ok {
		return domainerrors.ErrDuplicateCode
	}
	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}
	key.Version = 1
	r.byID[key.ID] = *key
	r.codes[key.Code] = key.ID
	return nil
}

func (r *memKeyRepo) GetByID(_ context.Context, id uuid.UUID) (*entities.Key, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.byID[id]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	return &key, nil
}

func (r *memKeyRepo) GetByCode(ctx context.Context, code string) (*entities.Key, error) {
	r.mu.Lock()
	id, ok := r.codes[code]
	r.mu.Unlock()
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *memKeyRepo) ExistsByCode(_ context.Context, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.codes[code]
	return ok, nil
}

func (r *memKeyRepo) Update(_ context.Context, key *entities.Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[key.ID]
	if !ok {
		return domainerrors.ErrNotFound
	}
	if stored.Version != key.Version {
		return domainerrors.ErrConflict
	}
	key.Version++
	r.byID[key.ID] = *key
	return nil
}

func (r *memKeyRepo) List(_ context.Context, filter entities.KeyFilter) ([]*entities.Key, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var keys []*entities.Key
	for _, k := range r.byID {
		k := k
		if filter.Status != "" && k.Status != filter.Status {
			continue
		}
		if filter.ActivatedBy.Valid && k.ActivatedBy != filter.ActivatedBy {
			continue
		}
		keys = append(keys, &k)
	}
	return keys, int64(len(keys)), nil
}

func (r *memKeyRepo) ListExpiredCandidates(_ context.Context, now time.Time, limit int) ([]*entities.Key, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var keys []*entities.Key
	for _, k := range r.byID {
		k := k
		if (k.Status == entities.KeyStatusActive || k.Status == entities.KeyStatusUsed) &&
			k.ExpiresAt.Valid && k.ExpiresAt.Time.Before(now) {
			keys = append(keys, &k)
		}
		if len(keys) == limit {
			break
		}
	}
	return keys, nil
}

// memHistoryRepo is an in-memory KeyHistoryRepository
type memHistoryRepo struct {
	mu      sync.Mutex
	entries map[uuid.UUID][]*entities.KeyHistoryEntry
}

func newMemHistoryRepo() *memHistoryRepo {
	return &memHistoryRepo{entries: map[uuid.UUID][]*entities.KeyHistoryEntry{}}
}

func (r *memHistoryRepo) Create(_ context.Context, entry *entities.KeyHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = uuid.New()
	r.entries[entry.KeyID] = append(r.entries[entry.KeyID], entry)
	return nil
}

func (r *memHistoryRepo) ListByKey(_ context.Context, keyID uuid.UUID) ([]*entities.KeyHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*entities.KeyHistoryEntry(nil), r.entries[keyID]...), nil
}

func (r *memHistoryRepo) LatestTimestamp(_ context.Context, keyID uuid.UUID) (time.Time, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.entries[keyID]
	if len(entries) == 0 {
		return time.Time{}, false, nil
	}
	return entries[len(entries)-1].Timestamp, true, nil
}

func (r *memHistoryRepo) count(keyID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries[keyID])
}
