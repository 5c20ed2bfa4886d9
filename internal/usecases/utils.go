package usecases

import (
	"context"
	"errors"
	"time"

	"keygate.backend/internal/domain/entities"
	domainerrors "keygate.backend/internal/domain/errors"
	"keygate.backend/internal/domain/lifecycle"
	"keygate.backend/internal/domain/repositories"
)

// maxConflictRetries bounds reload-and-reapply after an optimistic update conflict.
const maxConflictRetries = 3

const (
	drainBatch     = 100
	maxDrainRounds = 50
)

// EventPublisher delivers committed status changes to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, topic entities.Topic, event entities.StatusEvent)
}

// Authorizer checks role permissions for an actor.
type Authorizer interface {
	Authorize(actor entities.Actor, p entities.Permission) error
}

// Settings carries the tunables shared by the lifecycle usecases.
// Zero values fall back to the defaults below.
type Settings struct {
	Now              func() time.Time
	NewCode          lifecycle.CodeGenerator
	NewBindingCode   lifecycle.CodeGenerator
	CodeMaxAttempts  int
	InviteExpiryDays int
	QuotaPeriod      time.Duration
	BindingCodeTTL   time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.Now == nil {
		s.Now = func() time.Time { return time.Now().UTC() }
	}
	if s.NewCode == nil {
		s.NewCode = lifecycle.NewCode
	}
	if s.NewBindingCode == nil {
		s.NewBindingCode = lifecycle.NewBindingCode
	}
	if s.CodeMaxAttempts <= 0 {
		s.CodeMaxAttempts = 5
	}
	if s.InviteExpiryDays <= 0 {
		s.InviteExpiryDays = 7
	}
	if s.QuotaPeriod <= 0 {
		s.QuotaPeriod = 30 * 24 * time.Hour
	}
	if s.BindingCodeTTL <= 0 {
		s.BindingCodeTTL = 15 * time.Minute
	}
	return s
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, entities.Topic, entities.StatusEvent) {}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

// retryOnConflict runs fn in a transaction, reloading and re-applying while
// the optimistic update reports ErrConflict.
func retryOnConflict(ctx context.Context, uow repositories.UnitOfWork, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = uow.Do(ctx, fn)
		if !errors.Is(err, domainerrors.ErrConflict) {
			return err
		}
	}
	return err
}

// drainExpired persists overdue expiries in batches so a query filtering on
// the stored status sees current state.
func drainExpired(ctx context.Context, expireDue func(ctx context.Context, limit int) (int, error)) error {
	for round := 0; round < maxDrainRounds; round++ {
		n, err := expireDue(ctx, drainBatch)
		if err != nil || n < drainBatch {
			return err
		}
	}
	return nil
}

func actorName(actor entities.Actor) string {
	if actor.Username == "" {
		return actor.ID.String()
	}
	return actor.Username
}
