package repositories

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err, "open sqlite")
	return db
}

func mustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}

func createKeyTables(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE keys (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		key_type TEXT NOT NULL,
		status TEXT NOT NULL,
		created_by TEXT,
		activated_by TEXT,
		activated_at DATETIME,
		duration_days INTEGER NOT NULL DEFAULT 30,
		expires_at DATETIME,
		notes TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	);`)
	mustExec(t, db, `CREATE TABLE key_history (
		id TEXT PRIMARY KEY,
		key_id TEXT NOT NULL REFERENCES keys(id),
		action TEXT NOT NULL,
		user_id TEXT,
		timestamp DATETIME NOT NULL,
		details TEXT
	);`)
}

func createInviteTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE invites (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		created_by TEXT NOT NULL,
		used_by TEXT,
		used_at DATETIME,
		used_ip TEXT,
		expires_at DATETIME NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	);`)
}

func createUserTables(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE users (
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
		invited_by TEXT,
		monthly_invite_limit INTEGER NOT NULL DEFAULT 2,
		invites_used_this_month INTEGER NOT NULL DEFAULT 0,
		last_invite_reset DATETIME NOT NULL,
		notes TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`)
	mustExec(t, db, `CREATE TABLE discord_binding_codes (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		code TEXT NOT NULL UNIQUE,
		is_used BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME,
		expires_at DATETIME NOT NULL
	);`)
}

func createActivityLogTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE activity_logs (
		id TEXT PRIMARY KEY,
		timestamp DATETIME NOT NULL,
		level TEXT NOT NULL,
		category TEXT NOT NULL,
		message TEXT NOT NULL,
		user_id TEXT,
		ip_address TEXT,
		extra_data TEXT
	);`)
	mustExec(t, db, `CREATE INDEX idx_activity_logs_user_category_ts ON activity_logs(user_id, category, timestamp);`)
}
