package channel

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
	"github.com/kursadbilgin/notify-gateway/internal/phone"
	"github.com/kursadbilgin/notify-gateway/internal/repository"
	"github.com/kursadbilgin/notify-gateway/internal/sanitize"
)

type MessageSender interface {
	SendMessage(ctx context.Context, from, to, body string) (*domain.SendResult, error)
}

type CallPlacer interface {
	CreateCall(ctx context.Context, from, to, callbackURL string) (*domain.SendResult, error)
}

const whatsAppScheme = "whatsapp:"

// TwilioSMS sends plain SMS through the Twilio Messages API.
type TwilioSMS struct {
	sender MessageSender
	from   string
}

func NewTwilioSMS(sender MessageSender, from string) (*TwilioSMS, error) {
	if sender == nil {
		return nil, fmt.Errorf("twilio sender is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("twilio number is required")
	}
	return &TwilioSMS{sender: sender, from: strings.TrimSpace(from)}, nil
}

func (c *TwilioSMS) Name() domain.ChannelName { return domain.ChannelSMSTwilio }

func (c *TwilioSMS) OutboxTable() string { return domain.ChannelSMSTwilio.OutboxTable() }

func (c *TwilioSMS) ResolveRecipients(ctx context.Context, store *repository.Store, msg domain.OutboxMessage) ([]domain.Recipient, error) {
	return phoneRecipients(ctx, store, msg.ClientCode)
}

func (c *TwilioSMS) FormatRecipient(raw string) (string, error) {
	return phone.Normalize(raw)
}

func (c *TwilioSMS) SendOne(ctx context.Context, address string, body string, _ SendOptions) (*domain.SendResult, error) {
	return c.sender.SendMessage(ctx, c.from, address, body)
}

// WhatsApp delivers alarm notifications to the per-client WhatsApp contact.
type WhatsApp struct {
	sender MessageSender
	from   string
}

func NewWhatsApp(sender MessageSender, from string) (*WhatsApp, error) {
	if sender == nil {
		return nil, fmt.Errorf("twilio sender is required")
	}
	from = strings.TrimSpace(from)
	if from == "" {
		return nil, fmt.Errorf("twilio whatsapp number is required")
	}
	if !strings.HasPrefix(from, whatsAppScheme) {
		from = whatsAppScheme + from
	}
	return &WhatsApp{sender: sender, from: from}, nil
}

func (c *WhatsApp) Name() domain.ChannelName { return domain.ChannelWhatsApp }

func (c *WhatsApp) OutboxTable() string { return domain.ChannelWhatsApp.OutboxTable() }

func (c *WhatsApp) ResolveRecipients(ctx context.Context, store *repository.Store, msg domain.OutboxMessage) ([]domain.Recipient, error) {
	return alarmContact(ctx, store, repository.ContactTableWhatsApp, msg.ClientCode)
}

func (c *WhatsApp) FormatRecipient(raw string) (string, error) {
	normalized, err := phone.Normalize(strings.TrimPrefix(strings.TrimSpace(raw), whatsAppScheme))
	if err != nil {
		return "", err
	}
	return whatsAppScheme + normalized, nil
}

func (c *WhatsApp) SendOne(ctx context.Context, address string, body string, _ SendOptions) (*domain.SendResult, error) {
	return c.sender.SendMessage(ctx, c.from, address, FrameAlarm(body))
}

// FrameAlarm wraps an alarm body in the WhatsApp template.
func FrameAlarm(body string) string {
	return "🚨 ALARMA INTEGRALCOM 🚨\n\n" + sanitize.AlphanumericOnly(body) + "\n\nEste es un mensaje automático de seguridad."
}

// Voice places a Twilio call that plays the alarm text through the IVR.
type Voice struct {
	placer     CallPlacer
	from       string
	ivrBaseURL string
}

func NewVoice(placer CallPlacer, from, ivrBaseURL string) (*Voice, error) {
	if placer == nil {
		return nil, fmt.Errorf("twilio call placer is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("twilio number is required")
	}
	base := strings.TrimRight(strings.TrimSpace(ivrBaseURL), "/")
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid ivr base url: %w", err)
	}
	return &Voice{placer: placer, from: strings.TrimSpace(from), ivrBaseURL: base}, nil
}

func (c *Voice) Name() domain.ChannelName { return domain.ChannelVoice }

func (c *Voice) OutboxTable() string { return domain.ChannelVoice.OutboxTable() }

func (c *Voice) ResolveRecipients(ctx context.Context, store *repository.Store, msg domain.OutboxMessage) ([]domain.Recipient, error) {
	return alarmContact(ctx, store, repository.ContactTableVoice, msg.ClientCode)
}

func (c *Voice) FormatRecipient(raw string) (string, error) {
	return phone.Normalize(raw)
}

func (c *Voice) SendOne(ctx context.Context, address string, body string, _ SendOptions) (*domain.SendResult, error) {
	return c.placer.CreateCall(ctx, c.from, address, c.CallbackURL(body))
}

// CallbackURL is the IVR entry point that reads body to the callee.
func (c *Voice) CallbackURL(body string) string {
	return c.ivrBaseURL + "/inicio?mensaje=" + url.QueryEscape(strings.TrimSpace(body))
}

func alarmContact(ctx context.Context, store *repository.Store, table, code string) ([]domain.Recipient, error) {
	if store == nil || store.Clients == nil {
		return nil, fmt.Errorf("client repository is required")
	}

	contact, err := store.Clients.AlarmContact(ctx, table, code)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load alarm contact for client %s: %w", code, err)
	}
	return []domain.Recipient{*contact}, nil
}
