package channel

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
	"github.com/kursadbilgin/notify-gateway/internal/modem"
	"github.com/kursadbilgin/notify-gateway/internal/phone"
	"github.com/kursadbilgin/notify-gateway/internal/repository"
	"github.com/kursadbilgin/notify-gateway/internal/sanitize"
)

// SMSModem is the part of *modem.Session the SMS channel uses.
type SMSModem interface {
	SendSMS(ctx context.Context, number string, text string, opts modem.SMSOptions) (*domain.SendResult, error)
	EnsureReady(ctx context.Context) error
	Recover(ctx context.Context) error
}

type ModemSMS struct {
	modem SMSModem
}

func NewModemSMS(m SMSModem) (*ModemSMS, error) {
	if m == nil {
		return nil, fmt.Errorf("modem session is required")
	}
	return &ModemSMS{modem: m}, nil
}

func (c *ModemSMS) Name() domain.ChannelName { return domain.ChannelSMSModem }

func (c *ModemSMS) OutboxTable() string { return domain.ChannelSMSModem.OutboxTable() }

func (c *ModemSMS) ResolveRecipients(ctx context.Context, store *repository.Store, msg domain.OutboxMessage) ([]domain.Recipient, error) {
	return phoneRecipients(ctx, store, msg.ClientCode)
}

func (c *ModemSMS) FormatRecipient(raw string) (string, error) {
	return phone.Normalize(raw)
}

// SendOne strips the body to 7-bit ASCII before handing it to the modem.
func (c *ModemSMS) SendOne(ctx context.Context, address string, body string, opts SendOptions) (*domain.SendResult, error) {
	return c.modem.SendSMS(ctx, address, sanitize.Clean(body), modem.SMSOptions{
		WaitForDelivery: opts.WaitForDelivery,
		DeliveryTimeout: opts.DeliveryTimeout,
	})
}

func (c *ModemSMS) Prepare(ctx context.Context) error {
	return c.modem.EnsureReady(ctx)
}

func (c *ModemSMS) Recover(ctx context.Context) error {
	return c.modem.Recover(ctx)
}
