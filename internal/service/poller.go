package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/notify-gateway/internal/channel"
	"github.com/kursadbilgin/notify-gateway/internal/cooldown"
	"github.com/kursadbilgin/notify-gateway/internal/domain"
	"github.com/kursadbilgin/notify-gateway/internal/observability"
	"github.com/kursadbilgin/notify-gateway/internal/provider"
	"github.com/kursadbilgin/notify-gateway/internal/queue"
	"github.com/kursadbilgin/notify-gateway/internal/ratelimit"
	"github.com/kursadbilgin/notify-gateway/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultBatchLimit      = 100
	defaultSendRetries     = 3
	defaultRetryDelay      = 2 * time.Second
	defaultDeliveryTimeout = 30 * time.Second
)

type PollerConfig struct {
	BatchLimit      int
	SendRetries     int
	RetryDelay      time.Duration
	DeliveryTimeout time.Duration
	// Cooldown is the per-recipient suppression window. Zero disables it.
	Cooldown time.Duration
	// TriggerPattern applies to recipients that carry no event of their own.
	TriggerPattern string
}

// CycleStats summarizes one RunCycle.
type CycleStats struct {
	Rows    int
	Sent    int
	Failed  int
	Skipped int
}

// Poller drains one channel's outbox table. Rows are always marked
// processed, whatever happened to their recipients.
type Poller struct {
	channel   channel.Channel
	cooldown  cooldown.Set
	limiter   ratelimit.RateLimiter
	publisher queue.Publisher
	metrics   *observability.Metrics
	logger    *zap.Logger
	cfg       PollerConfig
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewPoller(ch channel.Channel, cooldownSet cooldown.Set, cfg PollerConfig, logger *zap.Logger) (*Poller, error) {
	if ch == nil {
		return nil, fmt.Errorf("channel is required")
	}
	if cooldownSet == nil {
		cooldownSet = cooldown.NewMemorySet()
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = defaultBatchLimit
	}
	if cfg.SendRetries <= 0 {
		cfg.SendRetries = defaultSendRetries
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = defaultDeliveryTimeout
	}
	if _, err := domain.MatchesTrigger(cfg.TriggerPattern, ""); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Poller{
		channel:   ch,
		cooldown:  cooldownSet,
		limiter:   ratelimit.Unlimited{},
		publisher: queue.NopPublisher{},
		logger:    logger.With(zap.String("channel", ch.Name().String())),
		cfg:       cfg,
		now:       time.Now,
		sleep:     sleepWithContext,
	}, nil
}

func (p *Poller) SetMetrics(metrics *observability.Metrics) {
	if p == nil {
		return
	}
	p.metrics = metrics
}

func (p *Poller) SetRateLimiter(limiter ratelimit.RateLimiter) {
	if p == nil || limiter == nil {
		return
	}
	p.limiter = limiter
}

func (p *Poller) SetPublisher(publisher queue.Publisher) {
	if p == nil || publisher == nil {
		return
	}
	p.publisher = publisher
}

// Channel returns the adapter this poller drives.
func (p *Poller) Channel() channel.Channel {
	return p.channel
}

// RunCycle processes one batch of pending rows. Only a failed fetch is
// returned as an error; per-row problems are logged and the row marked.
func (p *Poller) RunCycle(ctx context.Context, store *repository.Store) (CycleStats, error) {
	var stats CycleStats
	if store == nil || store.Outbox == nil {
		return stats, fmt.Errorf("outbox repository is required")
	}

	logger := observability.WithContextLogger(p.logger, ctx)
	p.purgeCooldown(ctx, logger)

	table := p.channel.OutboxTable()
	rows, err := store.Outbox.FetchPending(ctx, table, p.cfg.BatchLimit)
	if err != nil {
		return stats, fmt.Errorf("failed to fetch pending rows from %s: %w", table, err)
	}

	for _, msg := range rows {
		if ctx.Err() != nil {
			break
		}
		stats.Rows++
		p.processRow(ctx, logger, store, msg, &stats)
	}

	p.purgeCooldown(ctx, logger)
	return stats, nil
}

func (p *Poller) processRow(ctx context.Context, logger *zap.Logger, store *repository.Store, msg domain.OutboxMessage, stats *CycleStats) {
	logger = logger.With(
		zap.Int64("messageId", msg.ID),
		zap.String("clientCode", msg.ClientCode),
	)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while processing outbox row", zap.Any("panic", r), zap.Stack("stack"))
			p.markProcessed(ctx, logger, store, msg)
		}
	}()

	recipients, err := p.channel.ResolveRecipients(ctx, store, msg)
	if err != nil {
		logger.Error("failed to resolve recipients", zap.Error(err))
		p.markProcessed(ctx, logger, store, msg)
		return
	}
	if len(recipients) == 0 {
		logger.Warn("no recipients resolved for outbox message, dropping")
		p.markProcessed(ctx, logger, store, msg)
		return
	}

	for _, recipient := range recipients {
		switch p.deliver(ctx, logger, store, msg, recipient) {
		case outcomeSent:
			stats.Sent++
		case outcomeFailed:
			stats.Failed++
		default:
			stats.Skipped++
		}
	}

	p.markProcessed(ctx, logger, store, msg)
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSent
	outcomeFailed
)

func (p *Poller) deliver(ctx context.Context, logger *zap.Logger, store *repository.Store, msg domain.OutboxMessage, recipient domain.Recipient) outcome {
	channelName := p.channel.Name().String()
	key := recipient.Key()
	logger = logger.With(zap.String("recipient", recipientLabel(recipient)))

	if p.cfg.Cooldown > 0 {
		inCooldown, err := p.cooldown.Contains(ctx, key)
		if err != nil {
			logger.Warn("cooldown lookup failed", zap.Error(err))
		}
		if inCooldown {
			logger.Info("recipient notified recently, skipping")
			p.metrics.IncCooldownSkip(channelName)
			return outcomeSkipped
		}
	}

	pattern := recipient.TriggerPattern
	if strings.TrimSpace(pattern) == "" {
		pattern = p.cfg.TriggerPattern
	}
	matched, err := domain.MatchesTrigger(pattern, msg.Body)
	if err != nil {
		logger.Warn("invalid trigger pattern, skipping recipient", zap.Error(err))
		return outcomeSkipped
	}
	if !matched {
		logger.Debug("message does not match trigger, skipping", zap.String("pattern", pattern))
		return outcomeSkipped
	}

	if p.cfg.Cooldown > 0 {
		if err := p.cooldown.Insert(ctx, key, p.cfg.Cooldown); err != nil {
			logger.Warn("failed to record cooldown", zap.Error(err))
		}
	}

	if recipient.Unresolved != "" {
		return p.fail(ctx, logger, store, msg, recipient, 0, "unresolved", errors.New(recipient.Unresolved))
	}

	address, err := p.channel.FormatRecipient(recipient.Address)
	if err != nil {
		return p.fail(ctx, logger, store, msg, recipient, 0, "invalid_recipient", err)
	}

	result, attempts, err := p.sendWithRetry(ctx, logger, address, msg.Body)
	if err != nil {
		return p.fail(ctx, logger, store, msg, recipient, attempts, failureReason(err), err)
	}

	providerID := ""
	if result != nil {
		providerID = result.ProviderID
	}
	logger.Info("message delivered",
		zap.String("address", address),
		zap.Int("attempts", attempts),
		zap.String("providerId", providerID),
	)
	p.metrics.IncDeliverySent(channelName)
	p.publish(ctx, logger, domain.DeliveryEvent{
		MessageID:  msg.ID,
		ClientCode: msg.ClientCode,
		Recipient:  address,
		Success:    true,
		Attempts:   attempts,
		ProviderID: providerID,
	})
	return outcomeSent
}

func (p *Poller) sendWithRetry(ctx context.Context, logger *zap.Logger, address, body string) (*domain.SendResult, int, error) {
	channelName := p.channel.Name().String()
	maxAttempts := p.cfg.SendRetries

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			p.metrics.IncSendRetry(channelName)
		}

		if err := p.limiter.Wait(ctx, channelName); err != nil {
			return nil, attempt - 1, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		opts := channel.SendOptions{
			WaitForDelivery: attempt == maxAttempts,
			DeliveryTimeout: p.cfg.DeliveryTimeout,
		}
		start := p.now()
		result, err := p.channel.SendOne(ctx, address, body, opts)
		p.metrics.ObserveSendDuration(channelName, p.now().Sub(start))
		if err == nil {
			return result, attempt, nil
		}
		lastErr = err

		logger.Warn("send attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", maxAttempts),
			zap.Error(err),
		)

		if isPermanent(err) || attempt == maxAttempts {
			return nil, attempt, lastErr
		}

		if IsTransportError(err) {
			p.recoverTransport(ctx, logger)
		}
		if err := p.sleep(ctx, p.cfg.RetryDelay); err != nil {
			return nil, attempt, fmt.Errorf("%w (retry aborted: %v)", lastErr, err)
		}
	}
	return nil, maxAttempts, lastErr
}

func (p *Poller) recoverTransport(ctx context.Context, logger *zap.Logger) {
	recoverer, ok := p.channel.(channel.Recoverer)
	if !ok {
		return
	}
	logger.Info("transport error detected, recovering before retry")
	if err := recoverer.Recover(ctx); err != nil {
		logger.Error("transport recovery failed", zap.Error(err))
	}
}

func (p *Poller) fail(
	ctx context.Context,
	logger *zap.Logger,
	store *repository.Store,
	msg domain.OutboxMessage,
	recipient domain.Recipient,
	attempts int,
	reason string,
	cause error,
) outcome {
	logger.Error("message delivery failed",
		zap.Int("attempts", attempts),
		zap.String("reason", reason),
		zap.Error(cause),
	)
	p.metrics.IncDeliveryFailed(p.channel.Name().String(), reason)

	text := fmt.Sprintf("%d attempts failed for %s: %s", attempts, recipientLabel(recipient), cause.Error())
	obs := domain.NewObservation(text, p.now())
	if store.Observations == nil {
		logger.Warn("no observation repository, audit entry dropped")
	} else if err := store.Observations.Create(ctx, &obs); err != nil {
		logger.Error("failed to record observation", zap.Error(err))
	}

	p.publish(ctx, logger, domain.DeliveryEvent{
		MessageID:  msg.ID,
		ClientCode: msg.ClientCode,
		Recipient:  recipientLabel(recipient),
		Success:    false,
		Attempts:   attempts,
		Error:      cause.Error(),
	})
	return outcomeFailed
}

func (p *Poller) publish(ctx context.Context, logger *zap.Logger, event domain.DeliveryEvent) {
	event.EventID = uuid.NewString()
	event.CycleID, _ = observability.CorrelationIDFromContext(ctx)
	event.Channel = p.channel.Name().String()
	event.OccurredAt = p.now().UTC()

	if err := p.publisher.PublishDelivery(ctx, event); err != nil {
		logger.Warn("failed to publish delivery event", zap.Error(err))
	}
}

func (p *Poller) markProcessed(ctx context.Context, logger *zap.Logger, store *repository.Store, msg domain.OutboxMessage) {
	if err := store.Outbox.MarkProcessed(ctx, p.channel.OutboxTable(), msg.ID); err != nil {
		logger.Error("failed to mark outbox row processed", zap.Error(err))
		return
	}
	p.metrics.IncRowProcessed(p.channel.Name().String())
}

func (p *Poller) purgeCooldown(ctx context.Context, logger *zap.Logger) {
	removed, err := p.cooldown.Purge(ctx)
	if err != nil {
		logger.Warn("cooldown purge failed", zap.Error(err))
		return
	}
	if removed > 0 {
		logger.Debug("cooldown entries expired", zap.Int("removed", removed))
	}
}

func recipientLabel(r domain.Recipient) string {
	if name := strings.TrimSpace(r.Name); name != "" && r.Address == "" {
		return name
	}
	if addr := strings.TrimSpace(r.Address); addr != "" {
		return addr
	}
	return r.Key()
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case IsTransportError(err):
		return "transport"
	case isPermanent(err):
		return "permanent"
	case provider.IsTransient(err):
		return "provider_unavailable"
	default:
		return "retry_exhausted"
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
