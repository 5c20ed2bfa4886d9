package usecases

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"keygate.backend/internal/domain/entities"
	domainerrors "keygate.backend/internal/domain/errors"
	"keygate.backend/internal/domain/repositories"
)

// UserUsecase handles user administration: listing, bans and role changes
type UserUsecase struct {
	uow      repositories.UnitOfWork
	userRepo repositories.UserRepository
	history  *HistoryRecorder
	authz    Authorizer
	events   EventPublisher
	settings Settings
}

// NewUserUsecase creates a new user usecase
func NewUserUsecase(
	uow repositories.UnitOfWork,
	userRepo repositories.UserRepository,
	history *HistoryRecorder,
	authz Authorizer,
	events EventPublisher,
	settings Settings,
) *UserUsecase {
	return &UserUsecase{
		uow:      uow,
		userRepo: userRepo,
		history:  history,
		authz:    authz,
		events:   publisherOrNoop(events),
		settings: settings.withDefaults(),
	}
}

// ListUsers lists users
func (u *UserUsecase) ListUsers(ctx context.Context, actor entities.Actor, filter entities.UserFilter) ([]*entities.User, int64, error) {
	if err := u.authz.Authorize(actor, entities.PermUserView); err != nil {
		return nil, 0, err
	}
	return u.userRepo.List(ctx, filter)
}

// GetUser returns a user. Everyone may read their own account.
func (u *UserUsecase) GetUser(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.User, error) {
	if actor.ID != id {
		if err := u.authz.Authorize(actor, entities.PermUserView); err != nil {
			return nil, err
		}
	}
	return u.userRepo.GetByID(ctx, id)
}

// BanUser bans a user. Only admins may ban admins.
func (u *UserUsecase) BanUser(ctx context.Context, actor entities.Actor, id uuid.UUID, reason string) (*entities.User, error) {
	return u.setBanned(ctx, actor, id, true, reason)
}

// UnbanUser lifts a ban
func (u *UserUsecase) UnbanUser(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.User, error) {
	return u.setBanned(ctx, actor, id, false, "")
}

func (u *UserUsecase) setBanned(ctx context.Context, actor entities.Actor, id uuid.UUID, banned bool, reason string) (*entities.User, error) {
	if err := u.authz.Authorize(actor, entities.PermUserBan); err != nil {
		return nil, err
	}
	if actor.ID == id {
		return nil, domainerrors.BadRequest("cannot change your own ban status")
	}

	var user *entities.User
	err := u.uow.Do(ctx, func(txCtx context.Context) error {
		var err error
		if user, err = u.userRepo.GetByID(u.uow.WithLock(txCtx), id); err != nil {
			return err
		}
		if user.Role == entities.UserRoleAdmin && actor.Role != entities.UserRoleAdmin {
			return domainerrors.Forbidden("only admins can change the ban status of an admin")
		}
		if user.IsBanned == banned {
			if banned {
				return domainerrors.Conflict("user is already banned")
			}
			return domainerrors.Conflict("user is not banned")
		}

		user.IsBanned = banned
		user.BanReason = null.NewString(reason, banned && reason != "")
		if err := u.userRepo.Update(txCtx, user); err != nil {
			return err
		}

		message := fmt.Sprintf("user %s unbanned by %s", user.Username, actorName(actor))
		if banned {
			message = fmt.Sprintf("user %s banned by %s", user.Username, actorName(actor))
			if reason != "" {
				message += ": " + reason
			}
		}
		log := activity(entities.LogCategoryUser, actor, "", message)
		if banned {
			log.Level = entities.LogLevelWarning
		}
		return u.history.RecordActivity(txCtx, log)
	})
	if err != nil {
		return nil, err
	}

	action := entities.EventActionUnbanned
	if banned {
		action = entities.EventActionBanned
	}
	u.events.Publish(ctx, entities.TopicUserStatus, entities.NewUserEvent(user, action, u.settings.Now()))
	return user, nil
}

// ChangeRole assigns a new role and the invite limit that comes with it.
func (u *UserUsecase) ChangeRole(ctx context.Context, actor entities.Actor, id uuid.UUID, role entities.UserRole) (*entities.User, error) {
	if err := u.authz.Authorize(actor, entities.PermUserChangeRole); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, domainerrors.BadRequest("invalid role")
	}
	if actor.ID == id {
		return nil, domainerrors.BadRequest("cannot change your own role")
	}

	var user *entities.User
	err := u.uow.Do(ctx, func(txCtx context.Context) error {
		var err error
		if user, err = u.userRepo.GetByID(u.uow.WithLock(txCtx), id); err != nil {
			return err
		}
		if user.Role == role {
			return domainerrors.Conflict(fmt.Sprintf("user already has role %s", role))
		}

		previous := user.Role
		user.Role = role
		user.MonthlyInviteLimit = entities.InviteLimitForRole(role)
		if err := u.userRepo.Update(txCtx, user); err != nil {
			return err
		}
		return u.history.RecordActivity(txCtx, activity(entities.LogCategoryUser, actor, "",
			fmt.Sprintf("user %s role changed from %s to %s by %s", user.Username, previous, role, actorName(actor))))
	})
	if err != nil {
		return nil, err
	}

	u.events.Publish(ctx, entities.TopicUserStatus, entities.NewUserEvent(user, entities.EventActionRoleChanged, u.settings.Now()))
	return user, nil
}
