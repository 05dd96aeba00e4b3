package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/notify-gateway/internal/channel"
	"github.com/kursadbilgin/notify-gateway/internal/observability"
	"github.com/kursadbilgin/notify-gateway/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultPollInterval         = 10 * time.Second
	minPollInterval             = 100 * time.Millisecond
	defaultMaxConsecutiveErrors = 5
)

// ErrCycleSkipped is returned by RunOnce when the channel transport was not
// ready and no rows were touched.
var ErrCycleSkipped = errors.New("poll cycle skipped")

// SuccessMarker records the time of the last successful cycle.
type SuccessMarker interface {
	MarkSuccess(at time.Time)
}

// Runner drives a Poller forever, one scoped database connection per cycle.
type Runner struct {
	poller               *Poller
	stores               repository.Acquirer
	health               SuccessMarker
	metrics              *observability.Metrics
	logger               *zap.Logger
	interval             time.Duration
	maxConsecutiveErrors int
	now                  func() time.Time
	sleep                func(ctx context.Context, d time.Duration) error
}

func NewRunner(
	poller *Poller,
	stores repository.Acquirer,
	health SuccessMarker,
	interval time.Duration,
	maxConsecutiveErrors int,
	logger *zap.Logger,
) (*Runner, error) {
	if poller == nil {
		return nil, fmt.Errorf("poller is required")
	}
	if stores == nil {
		return nil, fmt.Errorf("store acquirer is required")
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if maxConsecutiveErrors <= 0 {
		maxConsecutiveErrors = defaultMaxConsecutiveErrors
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		poller:               poller,
		stores:               stores,
		health:               health,
		logger:               logger,
		interval:             interval,
		maxConsecutiveErrors: maxConsecutiveErrors,
		now:                  time.Now,
		sleep:                sleepWithContext,
	}, nil
}

func (r *Runner) SetMetrics(metrics *observability.Metrics) {
	if r == nil {
		return
	}
	r.metrics = metrics
}

// Run loops until ctx is cancelled or MaxConsecutiveErrors cycles in a row
// fail. The latter is returned so the process can exit and be restarted.
func (r *Runner) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	r.logger.Info("outbox runner started",
		zap.String("channel", r.poller.Channel().Name().String()),
		zap.Duration("interval", r.interval),
	)

	consecutiveErrors := 0
	for {
		start := r.now()
		err := r.RunOnce(ctx)

		switch {
		case ctx.Err() != nil:
			r.logger.Info("outbox runner stopped")
			return nil
		case errors.Is(err, ErrCycleSkipped):
			r.metrics.IncPollCycle("skipped")
		case err != nil:
			consecutiveErrors++
			r.metrics.IncPollCycle("error")
			r.logger.Error("poll cycle failed",
				zap.Int("consecutiveErrors", consecutiveErrors),
				zap.Int("maxConsecutiveErrors", r.maxConsecutiveErrors),
				zap.Error(err),
			)
			if consecutiveErrors >= r.maxConsecutiveErrors {
				return fmt.Errorf("too many consecutive poll cycle errors (%d): %w", consecutiveErrors, err)
			}
		default:
			consecutiveErrors = 0
			r.metrics.IncPollCycle("ok")
		}

		wait := r.interval - r.now().Sub(start)
		if wait < minPollInterval {
			wait = minPollInterval
		}
		if err := r.sleep(ctx, wait); err != nil {
			r.logger.Info("outbox runner stopped")
			return nil
		}
	}
}

// RunOnce runs a single cycle and marks health on success.
func (r *Runner) RunOnce(ctx context.Context) error {
	ctx = observability.WithCorrelationID(ctx, observability.NewCorrelationID())
	logger := observability.WithContextLogger(r.logger, ctx)

	if preparer, ok := r.poller.Channel().(channel.Preparer); ok {
		if err := preparer.Prepare(ctx); err != nil {
			logger.Warn("channel not ready, skipping cycle", zap.Error(err))
			return fmt.Errorf("%w: %w", ErrCycleSkipped, err)
		}
	}

	var stats CycleStats
	err := r.stores.WithStore(ctx, func(store *repository.Store) error {
		var cycleErr error
		stats, cycleErr = r.poller.RunCycle(ctx, store)
		return cycleErr
	})
	if err != nil {
		return err
	}

	if r.health != nil {
		r.health.MarkSuccess(r.now())
	}

	if stats.Rows > 0 {
		logger.Info("poll cycle completed",
			zap.Int("rows", stats.Rows),
			zap.Int("sent", stats.Sent),
			zap.Int("failed", stats.Failed),
			zap.Int("skipped", stats.Skipped),
		)
	} else {
		logger.Debug("poll cycle completed, outbox empty")
	}
	return nil
}
