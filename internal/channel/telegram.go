package channel

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
	"github.com/kursadbilgin/notify-gateway/internal/phone"
	"github.com/kursadbilgin/notify-gateway/internal/repository"
)

type TelegramSender interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup any) (*domain.SendResult, error)
}

// Telegram reaches subscribers through the chat they opened with the bot.
// Recipients are matched to chats by the last seven digits of their phone.
type Telegram struct {
	sender TelegramSender
}

func NewTelegram(sender TelegramSender) (*Telegram, error) {
	if sender == nil {
		return nil, fmt.Errorf("telegram sender is required")
	}
	return &Telegram{sender: sender}, nil
}

func (c *Telegram) Name() domain.ChannelName { return domain.ChannelTelegram }

func (c *Telegram) OutboxTable() string { return domain.ChannelTelegram.OutboxTable() }

func (c *Telegram) ResolveRecipients(ctx context.Context, store *repository.Store, msg domain.OutboxMessage) ([]domain.Recipient, error) {
	if store == nil || store.Chats == nil {
		return nil, fmt.Errorf("chat binding repository is required")
	}

	phones, err := phoneRecipients(ctx, store, msg.ClientCode)
	if err != nil {
		return nil, err
	}

	recipients := make([]domain.Recipient, 0, len(phones))
	for _, p := range phones {
		raw := p.Address
		r := domain.Recipient{CooldownKey: raw, Name: raw}

		digits, err := phone.Digits(raw)
		if err != nil {
			r.Unresolved = err.Error()
			recipients = append(recipients, r)
			continue
		}

		binding, err := store.Chats.FindBySuffix(ctx, domain.PhoneSuffix(digits))
		switch {
		case errors.Is(err, domain.ErrNotFound):
			r.Unresolved = fmt.Sprintf("no telegram chat registered for %s", raw)
		case err != nil:
			return nil, fmt.Errorf("failed to look up telegram chat for %s: %w", raw, err)
		default:
			r.Address = strconv.FormatInt(binding.ChatID, 10)
		}
		recipients = append(recipients, r)
	}
	return recipients, nil
}

// FormatRecipient validates a chat id.
func (c *Telegram) FormatRecipient(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id == 0 {
		return "", fmt.Errorf("%w: invalid telegram chat id %q", domain.ErrValidation, raw)
	}
	return raw, nil
}

func (c *Telegram) SendOne(ctx context.Context, address string, body string, _ SendOptions) (*domain.SendResult, error) {
	chatID, err := strconv.ParseInt(address, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid telegram chat id %q", domain.ErrValidation, address)
	}
	return c.sender.SendMessage(ctx, chatID, body, nil)
}
