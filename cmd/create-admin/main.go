package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"keygate.backend/internal/config"
	"keygate.backend/internal/domain/entities"
	domainerrors "keygate.backend/internal/domain/errors"
	domainrepo "keygate.backend/internal/domain/repositories"
	"keygate.backend/internal/infrastructure/repositories"
	"keygate.backend/internal/usecases"
	"keygate.backend/pkg/crypto"
)

var openCreateAdminDB = func(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true}), &gorm.Config{PrepareStmt: false, TranslateError: true})
}

var openCreateAdminSQLDB = func(db *gorm.DB) (io.Closer, error) {
	return db.DB()
}

type createAdminRuntime interface {
	GetByUsername(ctx context.Context, username string) (*entities.User, error)
	Create(ctx context.Context, user *entities.User) error
	Update(ctx context.Context, user *entities.User) error
	RecordActivity(ctx context.Context, log *entities.ActivityLog) error
}

type createAdminDeps struct {
	loadEnv func() error
	loadCfg func() *config.Config
	prepare func(cfg *config.Config) (createAdminRuntime, io.Closer, error)
	now     func() time.Time
	out     io.Writer
}

type createAdminRuntimeImpl struct {
	domainrepo.UserRepository
	history *usecases.HistoryRecorder
}

func (r createAdminRuntimeImpl) RecordActivity(ctx context.Context, log *entities.ActivityLog) error {
	return r.history.RecordActivity(ctx, log)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func defaultCreateAdminDeps() createAdminDeps {
	return createAdminDeps{
		loadEnv: func() error { return godotenv.Load() },
		loadCfg: config.Load,
		prepare: func(cfg *config.Config) (createAdminRuntime, io.Closer, error) {
			db, err := openCreateAdminDB(cfg.Database.URL())
			if err != nil {
				return nil, nil, fmt.Errorf("failed to connect db: %w", err)
			}

			sqlDB, err := openCreateAdminSQLDB(db)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to init sql db: %w", err)
			}

			now := func() time.Time { return time.Now().UTC() }
			history := usecases.NewHistoryRecorder(
				repositories.NewKeyHistoryRepository(db),
				repositories.NewActivityLogRepository(db),
				now,
			)
			return createAdminRuntimeImpl{
				UserRepository: repositories.NewUserRepository(db),
				history:        history,
			}, sqlDB, nil
		},
		now: time.Now,
		out: os.Stdout,
	}
}

// generatedPasswordBytes of entropy give a 24 character hex password.
const generatedPasswordBytes = 12

type adminInput struct {
	username string
	email    string
	password string
	generate bool
}

func parseAdminInput(args []string, getenv func(string) string) (adminInput, error) {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	username := fs.String("username", "", "admin username (required)")
	email := fs.String("email", "", "admin email (required for a new account)")
	password := fs.String("password", "", "admin password, falls back to ADMIN_PASSWORD")
	generate := fs.Bool("generate-password", false, "generate a random password and print it once")
	if err := fs.Parse(args); err != nil {
		return adminInput{}, err
	}

	in := adminInput{
		username: strings.TrimSpace(*username),
		email:    strings.TrimSpace(*email),
		password: *password,
		generate: *generate,
	}
	if in.password == "" && !in.generate {
		in.password = getenv("ADMIN_PASSWORD")
	}
	if in.username == "" {
		return adminInput{}, fmt.Errorf("--username is required")
	}
	if in.generate && in.password != "" {
		return adminInput{}, fmt.Errorf("--password and --generate-password are mutually exclusive")
	}
	return in, nil
}

func runCreateAdmin(args []string, deps createAdminDeps) error {
	if deps.loadEnv == nil {
		deps.loadEnv = func() error { return godotenv.Load() }
	}
	if deps.loadCfg == nil {
		deps.loadCfg = config.Load
	}
	if deps.now == nil {
		deps.now = time.Now
	}
	if deps.prepare == nil {
		deps.prepare = defaultCreateAdminDeps().prepare
	}
	if deps.out == nil {
		deps.out = os.Stdout
	}

	in, err := parseAdminInput(args, os.Getenv)
	if err != nil {
		return err
	}

	if err := deps.loadEnv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := deps.loadCfg()
	runtime, closer, err := deps.prepare(cfg)
	if err != nil {
		return err
	}
	if closer == nil {
		closer = nopCloser{}
	}
	defer closer.Close()

	ctx := context.Background()
	existing, err := runtime.GetByUsername(ctx, in.username)
	switch {
	case err == nil:
		return promote(ctx, runtime, existing, deps.out)
	case !errors.Is(err, domainerrors.ErrNotFound):
		return fmt.Errorf("failed to look up user %s: %w", in.username, err)
	}

	if in.email == "" {
		return fmt.Errorf("--email is required to create user %s", in.username)
	}
	if in.generate {
		if in.password, err = crypto.GenerateRandomToken(generatedPasswordBytes); err != nil {
			return err
		}
	}
	if len(in.password) < crypto.MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", crypto.MinPasswordLength)
	}
	hash, err := crypto.HashPassword(in.password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entities.User{
		Username:           in.username,
		Email:              in.email,
		PasswordHash:       hash,
		Role:               entities.UserRoleAdmin,
		MonthlyInviteLimit: entities.InviteLimitForRole(entities.UserRoleAdmin),
		LastInviteReset:    deps.now().UTC(),
	}
	if err := runtime.Create(ctx, user); err != nil {
		return fmt.Errorf("failed creating admin: %w", err)
	}
	if err := runtime.RecordActivity(ctx, systemLog(user, fmt.Sprintf("admin account %s created from the command line", user.Username))); err != nil {
		return err
	}

	_, _ = fmt.Fprintln(deps.out, "Created admin account")
	_, _ = fmt.Fprintf(deps.out, "user_id=%s\n", user.ID)
	_, _ = fmt.Fprintf(deps.out, "username=%s\n", user.Username)
	if in.generate {
		_, _ = fmt.Fprintf(deps.out, "password=%s\n", in.password)
	}
	return nil
}

func promote(ctx context.Context, runtime createAdminRuntime, user *entities.User, out io.Writer) error {
	if user.Role == entities.UserRoleAdmin {
		_, _ = fmt.Fprintf(out, "user %s is already an admin\n", user.Username)
		return nil
	}

	previous := user.Role
	user.Role = entities.UserRoleAdmin
	user.MonthlyInviteLimit = entities.InviteLimitForRole(entities.UserRoleAdmin)
	if err := runtime.Update(ctx, user); err != nil {
		return fmt.Errorf("failed promoting %s: %w", user.Username, err)
	}
	msg := fmt.Sprintf("user %s promoted from %s to admin from the command line", user.Username, previous)
	if err := runtime.RecordActivity(ctx, systemLog(user, msg)); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "Promoted %s (%s) to admin\n", user.Username, user.ID)
	return nil
}

func systemLog(user *entities.User, message string) *entities.ActivityLog {
	return &entities.ActivityLog{
		Level:    entities.LogLevelWarning,
		Category: entities.LogCategoryUser,
		Message:  message,
		UserID:   entities.Actor{ID: user.ID}.NullID(),
	}
}

func main() {
	if err := runCreateAdmin(os.Args[1:], defaultCreateAdminDeps()); err != nil {
		log.Fatal(err)
	}
}
