package channel

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
	"github.com/kursadbilgin/notify-gateway/internal/repository"
)

const DefaultEmailSubject = "Sistema de Mensajes"

type MailSender interface {
	Send(ctx context.Context, to, subject, body string) (*domain.SendResult, error)
}

type Email struct {
	sender  MailSender
	subject string
}

func NewEmail(sender MailSender, subject string) (*Email, error) {
	if sender == nil {
		return nil, fmt.Errorf("mail sender is required")
	}
	if strings.TrimSpace(subject) == "" {
		subject = DefaultEmailSubject
	}
	return &Email{sender: sender, subject: subject}, nil
}

func (c *Email) Name() domain.ChannelName { return domain.ChannelEmail }

func (c *Email) OutboxTable() string { return domain.ChannelEmail.OutboxTable() }

func (c *Email) ResolveRecipients(ctx context.Context, store *repository.Store, msg domain.OutboxMessage) ([]domain.Recipient, error) {
	if store == nil || store.Clients == nil {
		return nil, fmt.Errorf("client repository is required")
	}

	addresses, err := store.Clients.EmailsByCode(ctx, msg.ClientCode)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve emails for client %s: %w", msg.ClientCode, err)
	}

	recipients := make([]domain.Recipient, 0, len(addresses))
	for _, addr := range addresses {
		recipients = append(recipients, domain.Recipient{Address: addr})
	}
	return recipients, nil
}

func (c *Email) FormatRecipient(raw string) (string, error) {
	parsed, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: invalid email %q", domain.ErrValidation, raw)
	}
	return parsed.Address, nil
}

func (c *Email) SendOne(ctx context.Context, address string, body string, _ SendOptions) (*domain.SendResult, error) {
	return c.sender.Send(ctx, address, c.subject, body)
}
