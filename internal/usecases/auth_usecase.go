package usecases

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"keygate.backend/internal/domain/entities"
	domainerrors "keygate.backend/internal/domain/errors"
	"keygate.backend/internal/domain/repositories"
	"keygate.backend/pkg/crypto"
	"keygate.backend/pkg/jwt"
	"keygate.backend/pkg/utils"
)

// AuthUsecase handles authentication business logic
type AuthUsecase struct {
	uow        repositories.UnitOfWork
	userRepo   repositories.UserRepository
	invites    *InviteUsecase
	history    *HistoryRecorder
	events     EventPublisher
	jwtService *jwt.JWTService
	settings   Settings
}

// NewAuthUsecase creates a new auth usecase
func NewAuthUsecase(
	uow repositories.UnitOfWork,
	userRepo repositories.UserRepository,
	invites *InviteUsecase,
	history *HistoryRecorder,
	events EventPublisher,
	jwtService *jwt.JWTService,
	settings Settings,
) *AuthUsecase {
	return &AuthUsecase{
		uow:        uow,
		userRepo:   userRepo,
		invites:    invites,
		history:    history,
		events:     publisherOrNoop(events),
		jwtService: jwtService,
		settings:   settings.withDefaults(),
	}
}

// Register creates a user by redeeming an invite code. The invite, the
// creator's quota and the new account commit together.
func (u *AuthUsecase) Register(ctx context.Context, input *entities.RegisterInput, ip string) (*entities.AuthResponse, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" || input.Email == "" {
		return nil, domainerrors.ErrBadRequest
	}
	if len(input.Password) < crypto.MinPasswordLength {
		return nil, domainerrors.BadRequest(fmt.Sprintf("password must be at least %d characters", crypto.MinPasswordLength))
	}

	_, err := u.userRepo.GetByUsername(ctx, username)
	if err == nil {
		return nil, domainerrors.NewAppError(http.StatusConflict, domainerrors.CodeConflict, "username already taken", domainerrors.ErrAlreadyExists)
	}
	if !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, err
	}

	passwordHash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	now := u.settings.Now()
	user := &entities.User{
		ID:                 utils.GenerateUUIDv7(),
		Username:           username,
		Email:              strings.TrimSpace(input.Email),
		PasswordHash:       passwordHash,
		Role:               entities.UserRoleUser,
		RegisteredIP:       ip,
		MonthlyInviteLimit: entities.InviteLimitForRole(entities.UserRoleUser),
		LastInviteReset:    now,
	}

	// The user row goes in before the invite is consumed: the activity
	// entries written while using it reference users(id).
	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		pending, err := u.invites.RedeemableInvite(txCtx, input.InviteCode)
		if err != nil {
			return err
		}
		user.InvitedBy = uuid.NullUUID{UUID: pending.CreatedBy, Valid: true}
		if err := u.userRepo.Create(txCtx, user); err != nil {
			return err
		}
		invite, err := u.invites.UseInvite(txCtx, input.InviteCode, user.ID, ip)
		if err != nil {
			return err
		}
		self := entities.Actor{ID: user.ID, Username: user.Username, Role: user.Role}
		return u.history.RecordActivity(txCtx, activity(entities.LogCategoryUser, self, ip,
			fmt.Sprintf("user %s registered with invite %s", user.Username, invite.Code)))
	})
	if err != nil {
		return nil, err
	}

	u.events.Publish(ctx, entities.TopicUserStatus, entities.NewUserEvent(user, entities.EventActionCreated, now))
	return u.issueTokens(user)
}

// Login authenticates a user and returns tokens
func (u *AuthUsecase) Login(ctx context.Context, input *entities.LoginInput, ip string) (*entities.AuthResponse, error) {
	user, err := u.userRepo.GetByUsername(ctx, strings.TrimSpace(input.Username))
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if !crypto.CheckPassword(input.Password, user.PasswordHash) {
		return nil, domainerrors.ErrInvalidCredentials
	}
	if user.IsBanned {
		return nil, domainerrors.ErrUserBanned
	}

	user.LastLoginAt = null.TimeFrom(u.settings.Now())
	user.LastLoginIP = null.NewString(ip, ip != "")
	if err := u.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	return u.issueTokens(user)
}

// RefreshToken generates new tokens from a refresh token
func (u *AuthUsecase) RefreshToken(ctx context.Context, refreshToken string) (*entities.AuthResponse, error) {
	claims, err := u.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			return nil, domainerrors.ErrTokenExpired
		}
		return nil, domainerrors.ErrUnauthorized
	}

	// Get current user to ensure still valid
	user, err := u.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.ErrUnauthorized
		}
		return nil, err
	}
	if user.IsBanned {
		return nil, domainerrors.ErrUserBanned
	}

	return u.issueTokens(user)
}

// CurrentActor reloads the account behind actor so a ban or role change
// applies before the access token expires.
func (u *AuthUsecase) CurrentActor(ctx context.Context, actor entities.Actor) (entities.Actor, error) {
	user, err := u.userRepo.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return entities.Actor{}, domainerrors.ErrUnauthorized
		}
		return entities.Actor{}, err
	}
	if user.IsBanned {
		return entities.Actor{}, domainerrors.ErrUserBanned
	}
	return entities.Actor{ID: user.ID, Username: user.Username, Role: user.Role}, nil
}

// Me returns the authenticated user
func (u *AuthUsecase) Me(ctx context.Context, actor entities.Actor) (*entities.User, error) {
	return u.userRepo.GetByID(ctx, actor.ID)
}

func (u *AuthUsecase) issueTokens(user *entities.User) (*entities.AuthResponse, error) {
	tokenPair, err := u.jwtService.GenerateTokenPair(user.ID, user.Username, string(user.Role))
	if err != nil {
		return nil, err
	}
	return &entities.AuthResponse{
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		User:         user,
	}, nil
}
