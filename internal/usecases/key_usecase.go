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

const (
	entityKey              = "key"
	defaultKeyDurationDays = 30
)

// KeyUsecase drives the key lifecycle: issue, redeem, revoke and expire.
type KeyUsecase struct {
	uow      repositories.UnitOfWork
	keyRepo  repositories.KeyRepository
	history  *HistoryRecorder
	authz    Authorizer
	events   EventPublisher
	metrics  *metrics.Metrics
	settings Settings
}

// NewKeyUsecase creates a new key usecase
func NewKeyUsecase(
	uow repositories.UnitOfWork,
	keyRepo repositories.KeyRepository,
	history *HistoryRecorder,
	authz Authorizer,
	events EventPublisher,
	m *metrics.Metrics,
	settings Settings,
) *KeyUsecase {
	return &KeyUsecase{
		uow:      uow,
		keyRepo:  keyRepo,
		history:  history,
		authz:    authz,
		events:   publisherOrNoop(events),
		metrics:  m,
		settings: settings.withDefaults(),
	}
}

// CreateKey issues a new active key with a freshly generated code.
func (u *KeyUsecase) CreateKey(ctx context.Context, actor entities.Actor, input *entities.CreateKeyInput) (*entities.KeyView, error) {
	if err := u.authz.Authorize(actor, entities.PermKeyCreate); err != nil {
		return nil, err
	}
	if !input.KeyType.Valid() {
		return nil, domainerrors.BadRequest("invalid key type")
	}

	duration := input.DurationDays
	details := fmt.Sprintf("created lifetime key by %s", actorName(actor))
	if input.KeyType == entities.KeyTypeLifetime {
		duration = 0
	} else {
		if duration == 0 {
			duration = defaultKeyDurationDays
		}
		if duration < 1 {
			return nil, domainerrors.BadRequest("durationDays must be at least 1")
		}
		details = fmt.Sprintf("created %s key for %d days by %s", input.KeyType, duration, actorName(actor))
	}

	for attempt := 0; attempt < u.settings.CodeMaxAttempts; attempt++ {
		code, err := u.settings.NewCode()
		if err != nil {
			return nil, err
		}
		exists, err := u.keyRepo.ExistsByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if exists {
			u.metrics.CodeCollision(entityKey)
			continue
		}

		key := &entities.Key{
			Code:         code,
			KeyType:      input.KeyType,
			Status:       entities.KeyStatusActive,
			CreatedBy:    actor.NullID(),
			DurationDays: duration,
			Notes:        input.Notes,
		}
		err = u.uow.Do(ctx, func(txCtx context.Context) error {
			if err := u.keyRepo.Create(txCtx, key); err != nil {
				return err
			}
			return u.history.RecordKey(txCtx, key.ID, entities.KeyActionCreated, actor, details)
		})
		if errors.Is(err, domainerrors.ErrDuplicateCode) {
			u.metrics.CodeCollision(entityKey)
			continue
		}
		if err != nil {
			return nil, err
		}

		u.metrics.Transition(entityKey, string(entities.KeyStatusActive))
		u.publish(ctx, key, entities.EventActionCreated)
		logger.Category(ctx, "keys").Info("key created",
			zap.String("key_id", key.ID.String()),
			zap.String("key_type", string(key.KeyType)),
		)
		view := lifecycle.View(key, u.settings.Now())
		return &view, nil
	}

	return nil, domainerrors.DuplicateCode("could not generate a unique key code")
}

// ActivateKey redeems the key with id for actor.
func (u *KeyUsecase) ActivateKey(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.KeyView, error) {
	return u.activate(ctx, actor, func(txCtx context.Context) (*entities.Key, error) {
		return u.keyRepo.GetByID(txCtx, id)
	})
}

// ActivateKeyByCode redeems the key with code for actor.
func (u *KeyUsecase) ActivateKeyByCode(ctx context.Context, actor entities.Actor, code string) (*entities.KeyView, error) {
	code = lifecycle.NormalizeCode(code)
	if !lifecycle.ValidCode(code) {
		return nil, domainerrors.BadRequest("invalid key code format")
	}
	return u.activate(ctx, actor, func(txCtx context.Context) (*entities.Key, error) {
		return u.keyRepo.GetByCode(txCtx, code)
	})
}

func (u *KeyUsecase) activate(ctx context.Context, actor entities.Actor, load func(context.Context) (*entities.Key, error)) (*entities.KeyView, error) {
	if err := u.authz.Authorize(actor, entities.PermKeyActivate); err != nil {
		return nil, err
	}
	if actor.IsSystem() {
		return nil, domainerrors.ErrForbidden
	}

	var (
		key      *entities.Key
		expired  bool
		rejected bool
	)
	err := retryOnConflict(ctx, u.uow, func(txCtx context.Context) error {
		expired, rejected = false, false
		var err error
		if key, err = load(txCtx); err != nil {
			return err
		}
		now := u.settings.Now()
		if lifecycle.CheckKeyExpiry(key, now) {
			expired = true
			return u.persistExpiry(txCtx, key)
		}
		if !lifecycle.ActivateKey(key, actor.ID, now) {
			rejected = true
			return nil
		}
		if err := u.keyRepo.Update(txCtx, key); err != nil {
			return err
		}
		details := fmt.Sprintf("activated by %s", actorName(actor))
		if key.ExpiresAt.Valid {
			details += ", expires " + key.ExpiresAt.Time.Format("2006-01-02")
		}
		return u.history.RecordKey(txCtx, key.ID, entities.KeyActionActivated, actor, details)
	})
	if err != nil {
		return nil, err
	}
	if expired {
		u.announceExpiry(ctx, key)
	}
	if expired || rejected {
		return nil, u.rejectActivation(key)
	}

	u.metrics.Transition(entityKey, string(entities.KeyStatusUsed))
	u.publish(ctx, key, entities.EventActionStatusChanged)
	view := lifecycle.View(key, u.settings.Now())
	return &view, nil
}

// RevokeKey revokes an active or used key.
func (u *KeyUsecase) RevokeKey(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.KeyView, error) {
	if err := u.authz.Authorize(actor, entities.PermKeyRevoke); err != nil {
		return nil, err
	}

	var (
		key      *entities.Key
		expired  bool
		rejected bool
	)
	err := retryOnConflict(ctx, u.uow, func(txCtx context.Context) error {
		expired, rejected = false, false
		var err error
		if key, err = u.keyRepo.GetByID(txCtx, id); err != nil {
			return err
		}
		if lifecycle.CheckKeyExpiry(key, u.settings.Now()) {
			expired = true
			return u.persistExpiry(txCtx, key)
		}
		prev := key.Status
		if !lifecycle.RevokeKey(key) {
			rejected = true
			return nil
		}
		if err := u.keyRepo.Update(txCtx, key); err != nil {
			return err
		}
		details := fmt.Sprintf("revoked by %s (was %s)", actorName(actor), prev)
		return u.history.RecordKey(txCtx, key.ID, entities.KeyActionRevoked, actor, details)
	})
	if err != nil {
		return nil, err
	}
	if expired {
		u.announceExpiry(ctx, key)
	}
	if expired || rejected {
		return nil, u.rejectRevoke(key)
	}

	u.metrics.Transition(entityKey, string(entities.KeyStatusRevoked))
	u.publish(ctx, key, entities.EventActionStatusChanged)
	logger.Category(ctx, "keys").Info("key revoked", zap.String("key_id", key.ID.String()))
	view := lifecycle.View(key, u.settings.Now())
	return &view, nil
}

// GetKey returns a key with its history. Users without key:view may only
// see keys they activated.
func (u *KeyUsecase) GetKey(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.KeyDetail, error) {
	key, err := u.viewable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	history, err := u.history.KeyHistory(ctx, key.ID)
	if err != nil {
		return nil, err
	}
	return &entities.KeyDetail{KeyView: lifecycle.View(key, u.settings.Now()), History: history}, nil
}

// KeyStatus returns the current status of a key after a lazy expiry check.
func (u *KeyUsecase) KeyStatus(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.KeyView, error) {
	key, err := u.viewable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	view := lifecycle.View(key, u.settings.Now())
	return &view, nil
}

func (u *KeyUsecase) viewable(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.Key, error) {
	authErr := u.authz.Authorize(actor, entities.PermKeyView)
	key, err := u.keyRepo.GetByID(ctx, id)
	if err != nil {
		if authErr != nil {
			return nil, authErr
		}
		return nil, err
	}
	if authErr != nil && (!key.ActivatedBy.Valid || key.ActivatedBy.UUID != actor.ID) {
		return nil, authErr
	}
	return u.refreshExpiry(ctx, key)
}

// ListKeys lists keys matching filter. Users without key:view only see keys they activated.
func (u *KeyUsecase) ListKeys(ctx context.Context, actor entities.Actor, filter entities.KeyFilter) ([]*entities.KeyView, int64, error) {
	if err := u.authz.Authorize(actor, entities.PermKeyView); err != nil {
		if actor.IsSystem() {
			return nil, 0, err
		}
		filter.CreatedBy = uuid.NullUUID{}
		filter.ActivatedBy = uuid.NullUUID{UUID: actor.ID, Valid: true}
	}
	if filter.Status != "" {
		if err := drainExpired(ctx, u.ExpireDue); err != nil {
			return nil, 0, err
		}
	}

	keys, total, err := u.keyRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	now := u.settings.Now()
	views := make([]*entities.KeyView, 0, len(keys))
	for _, key := range keys {
		fresh, err := u.refreshExpiry(ctx, key)
		if err != nil {
			return nil, 0, err
		}
		if filter.Status != "" && fresh.Status != filter.Status {
			total--
			continue
		}
		view := lifecycle.View(fresh, now)
		views = append(views, &view)
	}
	return views, total, nil
}

// ExpireDue expires up to limit overdue keys and reports how many changed.
func (u *KeyUsecase) ExpireDue(ctx context.Context, limit int) (int, error) {
	candidates, err := u.keyRepo.ListExpiredCandidates(ctx, u.settings.Now(), limit)
	if err != nil {
		return 0, err
	}

	var errs []error
	expired := 0
	for _, key := range candidates {
		_, changed, err := u.expire(ctx, key)
		if err != nil {
			errs = append(errs, fmt.Errorf("key %s: %w", key.ID, err))
			continue
		}
		if changed {
			expired++
		}
	}
	u.metrics.SweepExpired(entityKey, expired)
	return expired, errors.Join(errs...)
}

func (u *KeyUsecase) refreshExpiry(ctx context.Context, key *entities.Key) (*entities.Key, error) {
	fresh, _, err := u.expire(ctx, key)
	return fresh, err
}

// expire persists a due expiry of key, reloading it inside the transaction.
func (u *KeyUsecase) expire(ctx context.Context, key *entities.Key) (*entities.Key, bool, error) {
	snapshot := *key
	if !lifecycle.CheckKeyExpiry(&snapshot, u.settings.Now()) {
		return key, false, nil
	}

	var (
		fresh   *entities.Key
		changed bool
	)
	err := retryOnConflict(ctx, u.uow, func(txCtx context.Context) error {
		changed = false
		var err error
		if fresh, err = u.keyRepo.GetByID(txCtx, key.ID); err != nil {
			return err
		}
		if !lifecycle.CheckKeyExpiry(fresh, u.settings.Now()) {
			return nil
		}
		changed = true
		return u.persistExpiry(txCtx, fresh)
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		u.announceExpiry(ctx, fresh)
	}
	return fresh, changed, nil
}

func (u *KeyUsecase) persistExpiry(ctx context.Context, key *entities.Key) error {
	if err := u.keyRepo.Update(ctx, key); err != nil {
		return err
	}
	details := "expired at " + key.ExpiresAt.Time.UTC().Format(time.RFC3339)
	return u.history.RecordKey(ctx, key.ID, entities.KeyActionExpired, entities.SystemActor, details)
}

func (u *KeyUsecase) announceExpiry(ctx context.Context, key *entities.Key) {
	u.metrics.Transition(entityKey, string(entities.KeyStatusExpired))
	u.publish(ctx, key, entities.EventActionStatusChanged)
}

func (u *KeyUsecase) rejectActivation(key *entities.Key) error {
	if key.Status == entities.KeyStatusExpired {
		u.metrics.Rejection(entityKey, domainerrors.CodeKeyExpired)
		return domainerrors.IllegalTransition(domainerrors.CodeKeyExpired, "key has expired")
	}
	u.metrics.Rejection(entityKey, domainerrors.CodeKeyNotActive)
	return domainerrors.IllegalTransition(domainerrors.CodeKeyNotActive, fmt.Sprintf("key is %s", key.Status))
}

func (u *KeyUsecase) rejectRevoke(key *entities.Key) error {
	if key.Status == entities.KeyStatusExpired {
		u.metrics.Rejection(entityKey, domainerrors.CodeKeyExpired)
		return domainerrors.IllegalTransition(domainerrors.CodeKeyExpired, "key has expired")
	}
	u.metrics.Rejection(entityKey, domainerrors.CodeKeyAlreadyRevoked)
	return domainerrors.IllegalTransition(domainerrors.CodeKeyAlreadyRevoked, "key is already revoked")
}

func (u *KeyUsecase) publish(ctx context.Context, key *entities.Key, action string) {
	u.events.Publish(ctx, entities.TopicKeyStatus, entities.NewKeyEvent(key, action, u.settings.Now()))
}
