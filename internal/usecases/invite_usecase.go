package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"keygate.backend/internal/domain/entities"
	domainerrors "keygate.backend/internal/domain/errors"
	"keygate.backend/internal/domain/lifecycle"
	"keygate.backend/internal/domain/repositories"
	"keygate.backend/internal/infrastructure/metrics"
	"keygate.backend/pkg/logger"
)

const entityInvite = "invite"

// InviteUsecase handles invite issuance, redemption and revocation
type InviteUsecase struct {
	uow        repositories.UnitOfWork
	inviteRepo repositories.InviteRepository
	userRepo   repositories.UserRepository
	quota      *QuotaTracker
	history    *HistoryRecorder
	authz      Authorizer
	metrics    *metrics.Metrics
	settings   Settings
}

// NewInviteUsecase creates a new invite usecase
func NewInviteUsecase(
	uow repositories.UnitOfWork,
	inviteRepo repositories.InviteRepository,
	userRepo repositories.UserRepository,
	quota *QuotaTracker,
	history *HistoryRecorder,
	authz Authorizer,
	m *metrics.Metrics,
	settings Settings,
) *InviteUsecase {
	return &InviteUsecase{
		uow:        uow,
		inviteRepo: inviteRepo,
		userRepo:   userRepo,
		quota:      quota,
		history:    history,
		authz:      authz,
		metrics:    m,
		settings:   settings.withDefaults(),
	}
}

// CreateInvite issues an invite on behalf of actor, charging their monthly quota.
func (u *InviteUsecase) CreateInvite(ctx context.Context, actor entities.Actor, input *entities.CreateInviteInput) (*entities.Invite, error) {
	if err := u.authz.Authorize(actor, entities.PermInviteCreate); err != nil {
		return nil, err
	}
	if actor.IsSystem() {
		return nil, domainerrors.ErrForbidden
	}

	days := input.ExpiresDays
	if days == 0 {
		days = u.settings.InviteExpiryDays
	}
	if days < 1 {
		return nil, domainerrors.BadRequest("expiresDays must be at least 1")
	}

	for attempt := 0; attempt < u.settings.CodeMaxAttempts; attempt++ {
		code, err := u.settings.NewCode()
		if err != nil {
			return nil, err
		}
		exists, err := u.inviteRepo.ExistsByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if exists {
			u.metrics.CodeCollision(entityInvite)
			continue
		}

		invite := &entities.Invite{
			Code:      code,
			Status:    entities.InviteStatusActive,
			CreatedBy: actor.ID,
			ExpiresAt: u.settings.Now().Add(time.Duration(days) * 24 * time.Hour),
		}
		err = u.uow.Do(ctx, func(txCtx context.Context) error {
			creator, err := u.userRepo.GetByID(u.uow.WithLock(txCtx), actor.ID)
			if err != nil {
				return err
			}
			if creator.IsBanned {
				return domainerrors.ErrUserBanned
			}
			quota, err := u.quota.AvailableInvites(txCtx, creator)
			if err != nil {
				return err
			}
			if !quota.Unlimited && quota.Available <= 0 {
				return domainerrors.QuotaExceeded(fmt.Sprintf("monthly invite limit of %d reached", quota.Limit))
			}
			if err := u.inviteRepo.Create(txCtx, invite); err != nil {
				return err
			}
			if err := u.quota.ConsumeOne(txCtx, creator); err != nil {
				return err
			}
			return u.history.RecordActivity(txCtx, activity(entities.LogCategoryInvite, actor, "",
				fmt.Sprintf("invite %s created, expires in %d days", invite.Code, days)))
		})
		if errors.Is(err, domainerrors.ErrDuplicateCode) {
			u.metrics.CodeCollision(entityInvite)
			continue
		}
		if errors.Is(err, domainerrors.ErrQuotaExceeded) {
			u.metrics.Rejection(entityInvite, domainerrors.CodeQuotaExceeded)
		}
		if err != nil {
			return nil, err
		}

		u.metrics.Transition(entityInvite, string(entities.InviteStatusActive))
		logger.Category(ctx, "invites").Info("invite created",
			zap.String("invite_id", invite.ID.String()),
			zap.String("created_by", actor.ID.String()),
		)
		return invite, nil
	}

	return nil, domainerrors.DuplicateCode("could not generate a unique invite code")
}

// RedeemableInvite returns the invite behind code if it could be used right
// now. Nothing is written; UseInvite repeats the checks under its own retry.
func (u *InviteUsecase) RedeemableInvite(ctx context.Context, code string) (*entities.Invite, error) {
	invite, err := u.lookupRedeemable(ctx, lifecycle.NormalizeCode(code))
	if err != nil {
		u.rejected(err)
		return nil, err
	}
	return invite, nil
}

func (u *InviteUsecase) lookupRedeemable(ctx context.Context, code string) (*entities.Invite, error) {
	invite, err := u.inviteRepo.GetByCode(ctx, code)
	if errors.Is(err, domainerrors.ErrNotFound) {
		return nil, domainerrors.BadRequest("invalid invite code")
	}
	if err != nil {
		return nil, err
	}
	if lifecycle.CheckInviteExpiry(invite, u.settings.Now()) {
		return nil, domainerrors.IllegalTransition(domainerrors.CodeInviteExpired, "invite has expired")
	}
	if !lifecycle.IsInviteUsable(invite) {
		return nil, domainerrors.IllegalTransition(domainerrors.CodeInviteNotActive, fmt.Sprintf("invite is %s", invite.Status))
	}
	return invite, nil
}

func (u *InviteUsecase) rejected(err error) {
	var appErr *domainerrors.AppError
	if errors.As(err, &appErr) && errors.Is(err, domainerrors.ErrIllegalTransition) {
		u.metrics.Rejection(entityInvite, appErr.Code)
	}
}

// UseInvite consumes the invite with code for userID and counts it against
// the creator's quota. The user row must already exist because the activity
// entry references it. It joins the caller's transaction.
func (u *InviteUsecase) UseInvite(ctx context.Context, code string, userID uuid.UUID, ip string) (*entities.Invite, error) {
	code = lifecycle.NormalizeCode(code)

	var invite *entities.Invite
	err := retryOnConflict(ctx, u.uow, func(txCtx context.Context) error {
		var err error
		if invite, err = u.lookupRedeemable(txCtx, code); err != nil {
			return err
		}

		if !lifecycle.UseInvite(invite, userID, ip, u.settings.Now()) {
			return domainerrors.IllegalTransition(domainerrors.CodeInviteNotActive, fmt.Sprintf("invite is %s", invite.Status))
		}
		if err := u.inviteRepo.Update(txCtx, invite); err != nil {
			return err
		}

		creator, err := u.userRepo.GetByID(txCtx, invite.CreatedBy)
		switch {
		case errors.Is(err, domainerrors.ErrNotFound):
		case err != nil:
			return err
		default:
			if err := u.quota.ConsumeOne(txCtx, creator); err != nil {
				return err
			}
		}

		newUser := entities.Actor{ID: userID}
		return u.history.RecordActivity(txCtx, activity(entities.LogCategoryInvite, newUser, ip,
			fmt.Sprintf("invite %s used", invite.Code)))
	})
	if err != nil {
		u.rejected(err)
		return nil, err
	}

	u.metrics.Transition(entityInvite, string(entities.InviteStatusUsed))
	return invite, nil
}

// RevokeInvite revokes an active invite. Creators may revoke their own;
// invite:revoke holders may revoke any.
func (u *InviteUsecase) RevokeInvite(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.Invite, error) {
	var (
		invite   *entities.Invite
		expired  bool
		rejected bool
	)
	err := retryOnConflict(ctx, u.uow, func(txCtx context.Context) error {
		expired, rejected = false, false
		var err error
		if invite, err = u.inviteRepo.GetByID(txCtx, id); err != nil {
			return err
		}
		if invite.CreatedBy != actor.ID {
			if err := u.authz.Authorize(actor, entities.PermInviteRevoke); err != nil {
				return err
			}
		}
		if lifecycle.CheckInviteExpiry(invite, u.settings.Now()) {
			expired = true
			return u.persistExpiry(txCtx, invite)
		}
		if !lifecycle.RevokeInvite(invite) {
			rejected = true
			return nil
		}
		if err := u.inviteRepo.Update(txCtx, invite); err != nil {
			return err
		}
		return u.history.RecordActivity(txCtx, activity(entities.LogCategoryInvite, actor, "",
			fmt.Sprintf("invite %s revoked by %s", invite.Code, actorName(actor))))
	})
	if err != nil {
		return nil, err
	}
	if expired {
		u.metrics.Transition(entityInvite, string(entities.InviteStatusExpired))
		u.metrics.Rejection(entityInvite, domainerrors.CodeInviteExpired)
		return nil, domainerrors.IllegalTransition(domainerrors.CodeInviteExpired, "invite has expired")
	}
	if rejected {
		u.metrics.Rejection(entityInvite, domainerrors.CodeInviteNotActive)
		return nil, domainerrors.IllegalTransition(domainerrors.CodeInviteNotActive, fmt.Sprintf("invite is %s", invite.Status))
	}

	u.metrics.Transition(entityInvite, string(entities.InviteStatusRevoked))
	return invite, nil
}

// ValidateInvite reports whether code can still be used to register.
func (u *InviteUsecase) ValidateInvite(ctx context.Context, code string) (*entities.InviteValidation, error) {
	invite, err := u.inviteRepo.GetByCode(ctx, lifecycle.NormalizeCode(code))
	if errors.Is(err, domainerrors.ErrNotFound) {
		return &entities.InviteValidation{Valid: false}, nil
	}
	if err != nil {
		return nil, err
	}
	if invite, err = u.refreshExpiry(ctx, invite); err != nil {
		return nil, err
	}

	result := &entities.InviteValidation{
		Valid:  lifecycle.IsInviteUsable(invite),
		Status: invite.Status,
	}
	if result.Valid {
		expiresAt := invite.ExpiresAt
		result.ExpiresAt = &expiresAt
	}
	return result, nil
}

// GetInvite returns an invite visible to actor.
func (u *InviteUsecase) GetInvite(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.Invite, error) {
	invite, err := u.inviteRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if invite.CreatedBy != actor.ID {
		if err := u.authz.Authorize(actor, entities.PermInviteViewAll); err != nil {
			return nil, err
		}
	}
	return u.refreshExpiry(ctx, invite)
}

// ListInvites lists the actor's invites, or all invites for invite:view_all holders.
func (u *InviteUsecase) ListInvites(ctx context.Context, actor entities.Actor, filter entities.InviteFilter) ([]*entities.Invite, int64, error) {
	if err := u.authz.Authorize(actor, entities.PermInviteViewAll); err != nil {
		if actor.IsSystem() {
			return nil, 0, err
		}
		filter.CreatedBy = uuid.NullUUID{UUID: actor.ID, Valid: true}
	}
	if filter.Status != "" {
		if err := drainExpired(ctx, u.ExpireDue); err != nil {
			return nil, 0, err
		}
	}

	invites, total, err := u.inviteRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	result := make([]*entities.Invite, 0, len(invites))
	for _, invite := range invites {
		fresh, err := u.refreshExpiry(ctx, invite)
		if err != nil {
			return nil, 0, err
		}
		if filter.Status != "" && fresh.Status != filter.Status {
			total--
			continue
		}
		result = append(result, fresh)
	}
	return result, total, nil
}

// Quota returns the actor's current invite quota.
func (u *InviteUsecase) Quota(ctx context.Context, actor entities.Actor) (*entities.InviteQuota, error) {
	user, err := u.userRepo.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	quota, err := u.quota.AvailableInvites(ctx, user)
	if err != nil {
		return nil, err
	}
	return &quota, nil
}

// ExpireDue expires up to limit overdue invites and reports how many changed.
func (u *InviteUsecase) ExpireDue(ctx context.Context, limit int) (int, error) {
	candidates, err := u.inviteRepo.ListExpiredCandidates(ctx, u.settings.Now(), limit)
	if err != nil {
		return 0, err
	}

	var errs []error
	expired := 0
	for _, invite := range candidates {
		_, changed, err := u.expire(ctx, invite)
		if err != nil {
			errs = append(errs, fmt.Errorf("invite %s: %w", invite.ID, err))
			continue
		}
		if changed {
			expired++
		}
	}
	u.metrics.SweepExpired(entityInvite, expired)
	return expired, errors.Join(errs...)
}

func (u *InviteUsecase) refreshExpiry(ctx context.Context, invite *entities.Invite) (*entities.Invite, error) {
	fresh, _, err := u.expire(ctx, invite)
	return fresh, err
}

func (u *InviteUsecase) expire(ctx context.Context, invite *entities.Invite) (*entities.Invite, bool, error) {
	snapshot := *invite
	if !lifecycle.CheckInviteExpiry(&snapshot, u.settings.Now()) {
		return invite, false, nil
	}

	var (
		fresh   *entities.Invite
		changed bool
	)
	err := retryOnConflict(ctx, u.uow, func(txCtx context.Context) error {
		changed = false
		var err error
		if fresh, err = u.inviteRepo.GetByID(txCtx, invite.ID); err != nil {
			return err
		}
		if !lifecycle.CheckInviteExpiry(fresh, u.settings.Now()) {
			return nil
		}
		changed = true
		return u.persistExpiry(txCtx, fresh)
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		u.metrics.Transition(entityInvite, string(entities.InviteStatusExpired))
	}
	return fresh, changed, nil
}

func (u *InviteUsecase) persistExpiry(ctx context.Context, invite *entities.Invite) error {
	if err := u.inviteRepo.Update(ctx, invite); err != nil {
		return err
	}
	owner := entities.Actor{ID: invite.CreatedBy}
	return u.history.RecordActivity(ctx, activity(entities.LogCategoryInvite, owner, "",
		fmt.Sprintf("invite %s expired", invite.Code)))
}
