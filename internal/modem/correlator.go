package modem

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
)

const (
	defaultReportRetention = time.Hour
	reportPollInterval     = 500 * time.Millisecond
)

// ErrNoDeliveryReport is returned by Await when no report arrived in time.
var ErrNoDeliveryReport = errors.New("no delivery report received")

// WaitFunc blocks for up to d; Session uses it to pump the serial line.
type WaitFunc func(ctx context.Context, d time.Duration)

// Correlator stores delivery reports by message reference. Entries older
// than the retention window are swept on write.
type Correlator struct {
	mu        sync.Mutex
	reports   map[int]domain.DeliveryReport
	retention time.Duration
	now       func() time.Time
}

func NewCorrelator(retention time.Duration) *Correlator {
	if retention <= 0 {
		retention = defaultReportRetention
	}

	return &Correlator{
		reports:   make(map[int]domain.DeliveryReport),
		retention: retention,
		now:       time.Now,
	}
}

func (c *Correlator) Record(report domain.DeliveryReport) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if report.ReceivedAt.IsZero() {
		report.ReceivedAt = c.now()
	}
	c.sweepLocked()
	c.reports[report.Reference] = report
}

func (c *Correlator) Lookup(reference int) (domain.DeliveryReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	report, ok := c.reports[reference]
	if !ok || c.expiredLocked(report) {
		return domain.DeliveryReport{}, false
	}
	return report, true
}

// Sweep removes expired reports and returns how many were dropped.
func (c *Correlator) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked()
}

func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reports)
}

// Await polls for a report on reference received at or after since, calling
// wait between checks until timeout. References wrap at 255, so older
// reports for the same number are ignored.
func (c *Correlator) Await(ctx context.Context, reference int, since time.Time, timeout time.Duration, wait WaitFunc) (domain.DeliveryReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if wait == nil {
		wait = sleepFor
	}

	deadline := c.now().Add(timeout)
	for {
		if report, ok := c.Lookup(reference); ok && !report.ReceivedAt.Before(since) {
			return report, nil
		}
		if err := ctx.Err(); err != nil {
			return domain.DeliveryReport{}, err
		}

		remaining := deadline.Sub(c.now())
		if remaining <= 0 {
			return domain.DeliveryReport{}, ErrNoDeliveryReport
		}
		wait(ctx, min(reportPollInterval, remaining))
	}
}

func (c *Correlator) sweepLocked() int {
	removed := 0
	for ref, report := range c.reports {
		if c.expiredLocked(report) {
			delete(c.reports, ref)
			removed++
		}
	}
	return removed
}

func (c *Correlator) expiredLocked(report domain.DeliveryReport) bool {
	return c.now().Sub(report.ReceivedAt) > c.retention
}

func sleepFor(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
