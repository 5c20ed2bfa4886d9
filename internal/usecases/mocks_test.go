package usecases_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"keygate.backend/internal/domain/entities"
)

// Mock UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
}

func (m *MockUnitOfWork) Do(ctx context.Context, f func(context.Context) error) error {
	m.Called(ctx, f)
	return f(ctx)
}

func (m *MockUnitOfWork) WithLock(ctx context.Context) context.Context {
	args := m.Called(ctx)
	return args.Get(0).(context.Context)
}

// Mock KeyRepository
type MockKeyRepository struct {
	mock.Mock
}

func (m *MockKeyRepository) Create(ctx context.Context, key *entities.Key) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockKeyRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Key, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Key), args.Error(1)
}

func (m *MockKeyRepository) GetByCode(ctx context.Context, code string) (*entities.Key, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Key), args.Error(1)
}

func (m *MockKeyRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockKeyRepository) Update(ctx context.Context, key *entities.Key) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockKeyRepository) List(ctx context.Context, filter entities.KeyFilter) ([]*entities.Key, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*entities.Key), args.Get(1).(int64), args.Error(2)
}

func (m *MockKeyRepository) ListExpiredCandidates(ctx context.Context, now time.Time, limit int) ([]*entities.Key, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Key), args.Error(1)
}

// Mock KeyHistoryRepository
type MockKeyHistoryRepository struct {
	mock.Mock
}

func (m *MockKeyHistoryRepository) Create(ctx context.Context, entry *entities.KeyHistoryEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockKeyHistoryRepository) ListByKey(ctx context.Context, keyID uuid.UUID) ([]*entities.KeyHistoryEntry, error) {
	args := m.Called(ctx, keyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.KeyHistoryEntry), args.Error(1)
}

func (m *MockKeyHistoryRepository) LatestTimestamp(ctx context.Context, keyID uuid.UUID) (time.Time, bool, error) {
	args := m.Called(ctx, keyID)
	return args.Get(0).(time.Time), args.Bool(1), args.Error(2)
}

// Mock InviteRepository
type MockInviteRepository struct {
	mock.Mock
}

func (m *MockInviteRepository) Create(ctx context.Context, invite *entities.Invite) error {
	args := m.Called(ctx, invite)
	return args.Error(0)
}

func (m *MockInviteRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Invite, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Invite), args.Error(1)
}

func (m *MockInviteRepository) GetByCode(ctx context.Context, code string) (*entities.Invite, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Invite), args.Error(1)
}

func (m *MockInviteRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockInviteRepository) Update(ctx context.Context, invite *entities.Invite) error {
	args := m.Called(ctx, invite)
	return args.Error(0)
}

func (m *MockInviteRepository) List(ctx context.Context, filter entities.InviteFilter) ([]*entities.Invite, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*entities.Invite), args.Get(1).(int64), args.Error(2)
}

func (m *MockInviteRepository) ListExpiredCandidates(ctx context.Context, now time.Time, limit int) ([]*entities.Invite, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Invite), args.Error(1)
}

// Mock UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *entities.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) GetByDiscordID(ctx context.Context, discordID string) (*entities.User, error) {
	args := m.Called(ctx, discordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *entities.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) List(ctx context.Context, filter entities.UserFilter) ([]*entities.User, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*entities.User), args.Get(1).(int64), args.Error(2)
}

func (m *MockUserRepository) IncrementInvitesUsed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserRepository) ResetInviteQuota(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

// Mock BindingCodeRepository
type MockBindingCodeRepository struct {
	mock.Mock
}

func (m *MockBindingCodeRepository) Create(ctx context.Context, code *entities.BindingCode) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockBindingCodeRepository) GetByCode(ctx context.Context, code string) (*entities.BindingCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.BindingCode), args.Error(1)
}

func (m *MockBindingCodeRepository) GetActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) (*entities.BindingCode, error) {
	args := m.Called(ctx, userID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.BindingCode), args.Error(1)
}

func (m *MockBindingCodeRepository) MarkUsed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Mock ActivityLogRepository
type MockActivityLogRepository struct {
	mock.Mock
}

func (m *MockActivityLogRepository) Create(ctx context.Context, log *entities.ActivityLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockActivityLogRepository) TrimOlder(ctx context.Context, log *entities.ActivityLog, keep int) error {
	args := m.Called(ctx, log, keep)
	return args.Error(0)
}

func (m *MockActivityLogRepository) List(ctx context.Context, filter entities.ActivityLogFilter) ([]*entities.ActivityLog, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*entities.ActivityLog), args.Get(1).(int64), args.Error(2)
}

// recordingPublisher captures published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	Topic entities.Topic
	Event entities.StatusEvent
}

func (p *recordingPublisher) Publish(_ context.Context, topic entities.Topic, event entities.StatusEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Topic: topic, Event: event})
}

func (p *recordingPublisher) Events() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}
