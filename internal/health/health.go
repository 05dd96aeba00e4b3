// Package health tracks poll-cycle liveness and terminates a stalled process.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultWatchdogInterval = 60 * time.Second
	DefaultWatchdogTimeout  = 300 * time.Second
)

// Tracker holds the time of the last successful poll cycle. The start time
// counts as a success so a fresh process is not reported stale.
type Tracker struct {
	mu          sync.RWMutex
	lastSuccess time.Time
	now         func() time.Time
}

func NewTracker() *Tracker {
	return newTracker(time.Now)
}

func newTracker(nowFn func() time.Time) *Tracker {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Tracker{lastSuccess: nowFn(), now: nowFn}
}

func (t *Tracker) MarkSuccess(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if at.After(t.lastSuccess) {
		t.lastSuccess = at
	}
}

func (t *Tracker) LastSuccess() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastSuccess
}

// SinceSuccess is the gap between now and the last successful cycle.
func (t *Tracker) SinceSuccess() time.Duration {
	gap := t.now().Sub(t.LastSuccess())
	if gap < 0 {
		return 0
	}
	return gap
}

// Healthy reports whether the last success is within timeout.
func (t *Tracker) Healthy(timeout time.Duration) bool {
	return t.SinceSuccess() <= timeout
}

// Watchdog calls exit once when the tracker has not seen a success for
// longer than the timeout.
type Watchdog struct {
	tracker  *Tracker
	interval time.Duration
	timeout  time.Duration
	exit     func(code int)
	logger   *zap.Logger
	once     sync.Once
}

func NewWatchdog(tracker *Tracker, interval, timeout time.Duration, exit func(code int), logger *zap.Logger) *Watchdog {
	if interval <= 0 {
		interval = DefaultWatchdogInterval
	}
	if timeout <= 0 {
		timeout = DefaultWatchdogTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watchdog{
		tracker:  tracker,
		interval: interval,
		timeout:  timeout,
		exit:     exit,
		logger:   logger,
	}
}

// Run checks the tracker every interval until ctx is done.
func (w *Watchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if w.Check() {
				return nil
			}
		}
	}
}

// Check fires the exit path when the gap exceeds the timeout and reports
// whether it did.
func (w *Watchdog) Check() bool {
	gap := w.tracker.SinceSuccess()
	if gap <= w.timeout {
		return false
	}

	fired := false
	w.once.Do(func() {
		fired = true
		w.logger.Error("watchdog timeout, terminating process",
			zap.Duration("sinceSuccess", gap),
			zap.Duration("timeout", w.timeout),
			zap.Time("lastSuccess", w.tracker.LastSuccess()),
		)
		if w.exit != nil {
			w.exit(1)
		}
	})
	return fired
}
