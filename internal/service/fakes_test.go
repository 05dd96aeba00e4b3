package service

import (
	"context"
	"sync"
	"time"

	"github.com/kursadbilgin/notify-gateway/internal/channel"
	"github.com/kursadbilgin/notify-gateway/internal/domain"
	"github.com/kursadbilgin/notify-gateway/internal/modem"
	"github.com/kursadbilgin/notify-gateway/internal/repository"
)

type fakeOutboxRepo struct {
	mu             sync.Mutex
	fetchPendingFn func(ctx context.Context, table string, limit int) ([]domain.OutboxMessage, error)
	markErr        error
	marked         []int64
}

func (f *fakeOutboxRepo) FetchPending(ctx context.Context, table string, limit int) ([]domain.OutboxMessage, error) {
	if f.fetchPendingFn == nil {
		return nil, nil
	}
	return f.fetchPendingFn(ctx, table, limit)
}

func (f *fakeOutboxRepo) MarkProcessed(_ context.Context, _ string, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, id)
	return f.markErr
}

type fakeClientRepo struct {
	phones map[string][]string
}

func (f *fakeClientRepo) PhonesByCode(_ context.Context, code string) ([]string, error) {
	return f.phones[code], nil
}

func (f *fakeClientRepo) EmailsByCode(context.Context, string) ([]string, error) {
	return nil, nil
}

func (f *fakeClientRepo) AlarmContact(context.Context, string, string) (*domain.Recipient, error) {
	return nil, domain.ErrNotFound
}

type fakeObservationRepo struct {
	mu    sync.Mutex
	saved []domain.Observation
}

func (f *fakeObservationRepo) Create(_ context.Context, obs *domain.Observation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, *obs)
	return nil
}

type fakeChannel struct {
	name      domain.ChannelName
	resolveFn func(ctx context.Context, store *repository.Store, msg domain.OutboxMessage) ([]domain.Recipient, error)
	formatFn  func(raw string) (string, error)
	sendFn    func(ctx context.Context, address, body string, opts channel.SendOptions) (*domain.SendResult, error)
	sends     []string
	opts      []channel.SendOptions
}

func (f *fakeChannel) Name() domain.ChannelName {
	if f.name == "" {
		return domain.ChannelTelegram
	}
	return f.name
}

func (f *fakeChannel) OutboxTable() string { return f.Name().OutboxTable() }

func (f *fakeChannel) ResolveRecipients(ctx context.Context, store *repository.Store, msg domain.OutboxMessage) ([]domain.Recipient, error) {
	if f.resolveFn == nil {
		return nil, nil
	}
	return f.resolveFn(ctx, store, msg)
}

func (f *fakeChannel) FormatRecipient(raw string) (string, error) {
	if f.formatFn == nil {
		return raw, nil
	}
	return f.formatFn(raw)
}

func (f *fakeChannel) SendOne(ctx context.Context, address, body string, opts channel.SendOptions) (*domain.SendResult, error) {
	f.sends = append(f.sends, address)
	f.opts = append(f.opts, opts)
	if f.sendFn == nil {
		return &domain.SendResult{ProviderID: "ok"}, nil
	}
	return f.sendFn(ctx, address, body, opts)
}

// recoveringChannel adds the Recoverer hook to fakeChannel.
type recoveringChannel struct {
	*fakeChannel
	recovers int
}

func (r *recoveringChannel) Recover(context.Context) error {
	r.recovers++
	return nil
}

// preparingChannel adds the Preparer hook to fakeChannel.
type preparingChannel struct {
	*fakeChannel
	prepareFn func(ctx context.Context) error
}

func (p *preparingChannel) Prepare(ctx context.Context) error {
	return p.prepareFn(ctx)
}

type fakeSMSModem struct {
	sent []string
}

func (f *fakeSMSModem) SendSMS(_ context.Context, number string, _ string, _ modem.SMSOptions) (*domain.SendResult, error) {
	f.sent = append(f.sent, number)
	return &domain.SendResult{ProviderID: "7"}, nil
}

func (f *fakeSMSModem) EnsureReady(context.Context) error { return nil }

func (f *fakeSMSModem) Recover(context.Context) error { return nil }

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.DeliveryEvent
}

func (f *fakePublisher) PublishDelivery(_ context.Context, event domain.DeliveryEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type fakeAcquirer struct {
	store *repository.Store
	err   error
	calls int
}

func (f *fakeAcquirer) WithStore(_ context.Context, fn func(store *repository.Store) error) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return fn(f.store)
}

type fakeMarker struct {
	mu    sync.Mutex
	marks []time.Time
}

func (f *fakeMarker) MarkSuccess(at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks = append(f.marks, at)
}

func noSleep(context.Context, time.Duration) error { return nil }
