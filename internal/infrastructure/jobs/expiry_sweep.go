package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"keygate.backend/pkg/logger"
)

const defaultSweepBatch = 100

// Expirer expires overdue entities through the lifecycle usecases.
type Expirer interface {
	ExpireDue(ctx context.Context, limit int) (int, error)
}

type namedExpirer struct {
	name string
	Expirer
}

// ExpirySweepJob periodically expires keys and invites that nobody has read
// since they became due.
type ExpirySweepJob struct {
	expirers []namedExpirer
	interval time.Duration
	batch    int
	stop     chan struct{}
	stopOnce sync.Once
}

// NewExpirySweepJob creates a sweep over keys and invites.
func NewExpirySweepJob(interval time.Duration, keys, invites Expirer) *ExpirySweepJob {
	return &ExpirySweepJob{
		expirers: []namedExpirer{{"keys", keys}, {"invites", invites}},
		interval: interval,
		batch:    defaultSweepBatch,
		stop:     make(chan struct{}),
	}
}

// Start runs the sweep until ctx is cancelled or Stop is called.
func (j *ExpirySweepJob) Start(ctx context.Context) {
	log := logger.Category(ctx, "system")
	log.Info("starting expiry sweep", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("expiry sweep stopped (context cancelled)")
			return
		case <-j.stop:
			log.Info("expiry sweep stopped")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

// Stop ends Start. It is safe to call more than once.
func (j *ExpirySweepJob) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
}

func (j *ExpirySweepJob) sweep(ctx context.Context) {
	for _, e := range j.expirers {
		// Drain the backlog in batches so one tick catches up fully.
		for {
			n, err := e.ExpireDue(ctx, j.batch)
			if err != nil {
				logger.Error(ctx, "expiry sweep failed", zap.String("entity", e.name), zap.Error(err))
				break
			}
			if n > 0 {
				logger.Info(ctx, "expired overdue entities", zap.String("entity", e.name), zap.Int("count", n))
			}
			if n < j.batch {
				break
			}
		}
	}
}
