package usecases_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"keygate.backend/internal/domain/entities"
	"keygate.backend/internal/infrastructure/repositories"
	"keygate.backend/internal/usecases"
	"keygate.backend/pkg/jwt"
)

// newForeignKeyDB opens sqlite with foreign keys enforced and the
// references from the shipped migrations.
func newForeignKeyDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_foreign_keys=on", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err, "open sqlite")

	for _, q := range []string{
		`CREATE TABLE users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			is_banned BOOLEAN NOT NULL DEFAULT 0,
			ban_reason TEXT,
			discord_id TEXT UNIQUE,
			discord_username TEXT,
			discord_avatar TEXT,
			registered_ip TEXT,
			last_login_ip TEXT,
			last_login_at DATETIME,
			invited_by TEXT REFERENCES users(id) ON DELETE SET NULL,
			monthly_invite_limit INTEGER NOT NULL DEFAULT 2,
			invites_used_this_month INTEGER NOT NULL DEFAULT 0,
			last_invite_reset DATETIME NOT NULL,
			notes TEXT,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE invites (
			id TEXT PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL,
			created_by TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			used_by TEXT,
			used_at DATETIME,
			used_ip TEXT,
			expires_at DATETIME NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE activity_logs (
			id TEXT PRIMARY KEY,
			timestamp DATETIME NOT NULL,
			level TEXT NOT NULL,
			category TEXT NOT NULL,
			message TEXT NOT NULL,
			user_id TEXT REFERENCES users(id) ON DELETE SET NULL,
			ip_address TEXT,
			extra_data TEXT
		);`,
	} {
		require.NoError(t, db.Exec(q).Error)
	}
	return db
}

func TestAuthUsecase_RegisterAgainstForeignKeys(t *testing.T) {
	db := newForeignKeyDB(t)
	ctx := context.Background()
	clock := newClock(t0)
	settings := usecases.Settings{Now: clock.Now}

	users := repositories.NewUserRepository(db)
	invites := repositories.NewInviteRepository(db)
	activity := repositories.NewActivityLogRepository(db)
	uow := repositories.NewUnitOfWork(db)

	orphan := &entities.ActivityLog{ID: uuid.New(), Timestamp: t0, Level: entities.LogLevelInfo,
		Category: entities.LogCategoryUser, Message: "orphan", UserID: uuid.NullUUID{UUID: uuid.New(), Valid: true}}
	require.Error(t, activity.Create(ctx, orphan), "foreign keys must be enforced")

	creator := &entities.User{ID: uuid.New(), Username: "alice", Email: "alice@example.com", PasswordHash: "x",
		Role: entities.UserRoleUser, MonthlyInviteLimit: 2, LastInviteReset: t0}
	require.NoError(t, users.Create(ctx, creator))
	invite := &entities.Invite{ID: uuid.New(), Code: "ABCD-1234-WXYZ", Status: entities.InviteStatusActive,
		CreatedBy: creator.ID, ExpiresAt: t0.Add(7 * day), Version: 1}
	require.NoError(t, invites.Create(ctx, invite))

	recorder := usecases.NewHistoryRecorder(repositories.NewKeyHistoryRepository(db), activity, clock.Now)
	quota := usecases.NewQuotaTracker(users, 0, clock.Now)
	inviteUC := usecases.NewInviteUsecase(uow, invites, users, quota, recorder, newAuthorizer(t), nil, settings)
	authUC := usecases.NewAuthUsecase(uow, users, inviteUC, recorder, nil,
		jwt.NewJWTService("test-secret", time.Minute, time.Hour), settings)

	resp, err := authUC.Register(ctx, &entities.RegisterInput{
		Username: "newbie", Email: "newbie@example.com", Password: "correct-horse", InviteCode: "abcd-1234-wxyz",
	}, "192.0.2.7")
	require.NoError(t, err)

	stored, err := users.GetByID(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, creator.ID, stored.InvitedBy.UUID)

	used, err := invites.GetByCode(ctx, "ABCD-1234-WXYZ")
	require.NoError(t, err)
	assert.Equal(t, entities.InviteStatusUsed, used.Status)
	assert.Equal(t, resp.User.ID, used.UsedBy.UUID)

	reloaded, err := users.GetByID(ctx, creator.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.InvitesUsedThisMonth)

	logs, total, err := activity.List(ctx, entities.ActivityLogFilter{UserID: uuid.NullUUID{UUID: resp.User.ID, Valid: true}, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, logs, 2)

	_, err = authUC.Register(ctx, &entities.RegisterInput{
		Username: "second", Email: "second@example.com", Password: "correct-horse", InviteCode: "ABCD-1234-WXYZ",
	}, "")
	require.Error(t, err)
	_, err = users.GetByUsername(ctx, "second")
	assert.Error(t, err, "a rejected registration leaves no user behind")
}
