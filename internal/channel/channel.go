// Package channel adapts each outbound provider to the shape the outbox
// poller drives: resolve recipients for a row, normalize an address, send
// one message.
package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
	"github.com/kursadbilgin/notify-gateway/internal/repository"
)

type SendOptions struct {
	// WaitForDelivery asks for a delivery confirmation. Only the modem
	// channel can honour it; the others ignore it.
	WaitForDelivery bool
	DeliveryTimeout time.Duration
}

type Channel interface {
	Name() domain.ChannelName
	// OutboxTable is the mailbox table this channel drains.
	OutboxTable() string
	ResolveRecipients(ctx context.Context, store *repository.Store, msg domain.OutboxMessage) ([]domain.Recipient, error)
	FormatRecipient(raw string) (string, error)
	SendOne(ctx context.Context, address string, body string, opts SendOptions) (*domain.SendResult, error)
}

// Preparer is implemented by channels that must check their transport
// before a cycle starts.
type Preparer interface {
	Prepare(ctx context.Context) error
}

// Recoverer is implemented by channels that can repair their transport
// between send retries.
type Recoverer interface {
	Recover(ctx context.Context) error
}

func phoneRecipients(ctx context.Context, store *repository.Store, code string) ([]domain.Recipient, error) {
	if store == nil || store.Clients == nil {
		return nil, fmt.Errorf("client repository is required")
	}

	phones, err := store.Clients.PhonesByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve phones for client %s: %w", code, err)
	}

	recipients := make([]domain.Recipient, 0, len(phones))
	for _, p := range phones {
		recipients = append(recipients, domain.Recipient{Address: p})
	}
	return recipients, nil
}
