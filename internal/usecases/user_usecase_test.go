package usecases_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"keygate.backend/internal/domain/entities"
	domainerrors "keygate.backend/internal/domain/errors"
	"keygate.backend/internal/usecases"
)

type userFixture struct {
	uc       *usecases.UserUsecase
	users    *MockUserRepository
	activity *MockActivityLogRepository
	events   *recordingPublisher
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	f := &userFixture{
		users:    new(MockUserRepository),
		activity: new(MockActivityLogRepository),
		events:   &recordingPublisher{},
	}
	clock := newClock(t0)
	uow := new(MockUnitOfWork)
	uow.On("Do", mock.Anything, mock.Anything).Return(nil)
	uow.On("WithLock", mock.Anything).Return(context.Background())
	recorder := usecases.NewHistoryRecorder(new(MockKeyHistoryRepository), f.activity, clock.Now)
	f.uc = usecases.NewUserUsecase(uow, f.users, recorder, newAuthorizer(t), f.events, usecases.Settings{Now: clock.Now})
	f.activity.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.activity.On("TrimOlder", mock.Anything, mock.Anything, entities.ActivityLogRetention).Return(nil)
	return f
}

func TestUserUsecase_BanAndUnban(t *testing.T) {
	f := newUserFixture(t)
	mod := actorFor(entities.UserRoleModerator)
	target := &entities.User{ID: uuid.New(), Username: "spammer", Role: entities.UserRoleUser}
	f.users.On("GetByID", mock.Anything, target.ID).Return(target, nil)
	f.users.On("Update", mock.Anything, target).Return(nil)

	banned, err := f.uc.BanUser(context.Background(), mod, target.ID, "spam")
	require.NoError(t, err)
	assert.True(t, banned.IsBanned)
	assert.Equal(t, "spam", banned.BanReason.String)

	_, err = f.uc.BanUser(context.Background(), mod, target.ID, "again")
	assert.ErrorIs(t, err, domainerrors.ErrConflict)

	unbanned, err := f.uc.UnbanUser(context.Background(), mod, target.ID)
	require.NoError(t, err)
	assert.False(t, unbanned.IsBanned)
	assert.False(t, unbanned.BanReason.Valid)

	events := f.events.Events()
	require.Len(t, events, 2)
	assert.Equal(t, entities.EventActionBanned, events[0].Event.Action)
	assert.Equal(t, "banned", events[0].Event.Status)
	assert.Equal(t, entities.EventActionUnbanned, events[1].Event.Action)
	assert.Equal(t, "active", events[1].Event.Status)
	f.activity.AssertNumberOfCalls(t, "Create", 2)
}

func TestUserUsecase_ModeratorCannotBanAdmin(t *testing.T) {
	f := newUserFixture(t)
	target := &entities.User{ID: uuid.New(), Username: "root", Role: entities.UserRoleAdmin}
	f.users.On("GetByID", mock.Anything, target.ID).Return(target, nil)

	_, err := f.uc.BanUser(context.Background(), actorFor(entities.UserRoleModerator), target.ID, "")
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)
	assert.False(t, target.IsBanned)
	f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	assert.Empty(t, f.events.Events())
}

func TestUserUsecase_BanPermissions(t *testing.T) {
	f := newUserFixture(t)
	_, err := f.uc.BanUser(context.Background(), actorFor(entities.UserRoleSupport), uuid.New(), "")
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	self := actorFor(entities.UserRoleAdmin)
	_, err = f.uc.BanUser(context.Background(), self, self.ID, "")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)
}

func TestUserUsecase_ChangeRole(t *testing.T) {
	f := newUserFixture(t)
	admin := actorFor(entities.UserRoleAdmin)
	target := &entities.User{ID: uuid.New(), Username: "helper", Role: entities.UserRoleUser, MonthlyInviteLimit: 2}
	f.users.On("GetByID", mock.Anything, target.ID).Return(target, nil)
	f.users.On("Update", mock.Anything, target).Return(nil)

	updated, err := f.uc.ChangeRole(context.Background(), admin, target.ID, entities.UserRoleModerator)
	require.NoError(t, err)
	assert.Equal(t, entities.UserRoleModerator, updated.Role)
	assert.Equal(t, 10, updated.MonthlyInviteLimit)

	_, err = f.uc.ChangeRole(context.Background(), admin, target.ID, entities.UserRoleModerator)
	assert.ErrorIs(t, err, domainerrors.ErrConflict)

	_, err = f.uc.ChangeRole(context.Background(), admin, target.ID, "overlord")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)

	_, err = f.uc.ChangeRole(context.Background(), actorFor(entities.UserRoleModerator), target.ID, entities.UserRoleAdmin)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	events := f.events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, entities.EventActionRoleChanged, events[0].Event.Action)
}

func TestUserUsecase_GetAndList(t *testing.T) {
	f := newUserFixture(t)
	user := actorFor(entities.UserRoleUser)
	f.users.On("GetByID", mock.Anything, user.ID).Return(&entities.User{ID: user.ID}, nil)
	f.users.On("List", mock.Anything, mock.Anything).Return([]*entities.User{{ID: user.ID}}, int64(1), nil)

	_, err := f.uc.GetUser(context.Background(), user, user.ID)
	require.NoError(t, err)

	_, err = f.uc.GetUser(context.Background(), user, uuid.New())
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	_, _, err = f.uc.ListUsers(context.Background(), user, entities.UserFilter{})
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	users, total, err := f.uc.ListUsers(context.Background(), actorFor(entities.UserRoleSupport), entities.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.EqualValues(t, 1, total)
}
