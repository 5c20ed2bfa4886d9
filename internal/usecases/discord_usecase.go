package usecases

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/volatiletech/null/v8"
	"keygate.backend/internal/domain/entities"
	domainerrors "keygate.backend/internal/domain/errors"
	"keygate.backend/internal/domain/lifecycle"
	"keygate.backend/internal/domain/repositories"
)

// DiscordUsecase links user accounts to Discord accounts via short-lived binding codes
type DiscordUsecase struct {
	uow         repositories.UnitOfWork
	userRepo    repositories.UserRepository
	bindingRepo repositories.BindingCodeRepository
	history     *HistoryRecorder
	authz       Authorizer
	settings    Settings
}

// NewDiscordUsecase creates a new discord usecase
func NewDiscordUsecase(
	uow repositories.UnitOfWork,
	userRepo repositories.UserRepository,
	bindingRepo repositories.BindingCodeRepository,
	history *HistoryRecorder,
	authz Authorizer,
	settings Settings,
) *DiscordUsecase {
	return &DiscordUsecase{
		uow:         uow,
		userRepo:    userRepo,
		bindingRepo: bindingRepo,
		history:     history,
		authz:       authz,
		settings:    settings.withDefaults(),
	}
}

func errDiscordBound() error {
	return domainerrors.NewAppError(http.StatusConflict, domainerrors.CodeDiscordBound,
		"discord account already bound", domainerrors.ErrConflict)
}

// GenerateBindingCode returns the actor's unexpired binding code, or a new one.
func (u *DiscordUsecase) GenerateBindingCode(ctx context.Context, actor entities.Actor) (*entities.BindingCode, error) {
	if err := u.authz.Authorize(actor, entities.PermDiscordBind); err != nil {
		return nil, err
	}

	user, err := u.userRepo.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if user.DiscordID.Valid {
		return nil, errDiscordBound()
	}

	now := u.settings.Now()
	existing, err := u.bindingRepo.GetActiveByUser(ctx, user.ID, now)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, err
	}

	for attempt := 0; attempt < u.settings.CodeMaxAttempts; attempt++ {
		code, err := u.settings.NewBindingCode()
		if err != nil {
			return nil, err
		}
		binding := &entities.BindingCode{
			UserID:    user.ID,
			Code:      code,
			CreatedAt: now,
			ExpiresAt: now.Add(u.settings.BindingCodeTTL),
		}
		err = u.bindingRepo.Create(ctx, binding)
		if errors.Is(err, domainerrors.ErrDuplicateCode) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return binding, nil
	}
	return nil, domainerrors.DuplicateCode("could not generate a unique binding code")
}

// Bind redeems a binding code on behalf of the Discord bot.
func (u *DiscordUsecase) Bind(ctx context.Context, actor entities.Actor, input *entities.DiscordBindInput) (*entities.User, error) {
	if err := u.authz.Authorize(actor, entities.PermDiscordLookup); err != nil {
		return nil, err
	}
	discordID := strings.TrimSpace(input.DiscordID)
	if discordID == "" {
		return nil, domainerrors.BadRequest("discordId is required")
	}

	var user *entities.User
	err := u.uow.Do(ctx, func(txCtx context.Context) error {
		binding, err := u.bindingRepo.GetByCode(txCtx, lifecycle.NormalizeCode(input.Code))
		if errors.Is(err, domainerrors.ErrNotFound) || (err == nil && !binding.Usable(u.settings.Now())) {
			return domainerrors.IllegalTransition(domainerrors.CodeBindingCodeInvalid, "binding code is invalid or expired")
		}
		if err != nil {
			return err
		}

		owner, err := u.userRepo.GetByDiscordID(txCtx, discordID)
		switch {
		case err == nil && owner.ID != binding.UserID:
			return errDiscordBound()
		case err != nil && !errors.Is(err, domainerrors.ErrNotFound):
			return err
		}

		if user, err = u.userRepo.GetByID(u.uow.WithLock(txCtx), binding.UserID); err != nil {
			return err
		}
		user.DiscordID = null.StringFrom(discordID)
		user.DiscordUsername = null.StringFrom(input.DiscordUsername)
		user.DiscordAvatar = null.NewString(input.DiscordAvatar, input.DiscordAvatar != "")
		if err := u.userRepo.Update(txCtx, user); err != nil {
			return err
		}
		if err := u.bindingRepo.MarkUsed(txCtx, binding.ID); err != nil {
			return err
		}

		self := entities.Actor{ID: user.ID, Username: user.Username, Role: user.Role}
		return u.history.RecordActivity(txCtx, activity(entities.LogCategoryDiscord, self, "",
			fmt.Sprintf("discord account %s bound to %s", input.DiscordUsername, user.Username)))
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetByDiscordID looks up the user bound to a Discord account
func (u *DiscordUsecase) GetByDiscordID(ctx context.Context, actor entities.Actor, discordID string) (*entities.User, error) {
	if err := u.authz.Authorize(actor, entities.PermDiscordLookup); err != nil {
		return nil, err
	}
	return u.userRepo.GetByDiscordID(ctx, discordID)
}
