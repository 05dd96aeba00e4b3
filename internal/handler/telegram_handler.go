package handler

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/notify-gateway/internal/domain"
	"github.com/kursadbilgin/notify-gateway/internal/provider"
	"github.com/kursadbilgin/notify-gateway/internal/repository"
	"go.uber.org/zap"
)

const (
	telegramWelcomeText    = "Hola. Soy el Bot de Integralcom. Necesito que me compartas tu teléfono para poder enviarte los mensajes. Gracias"
	telegramContactButton  = "Mi contacto"
	telegramRegisteredText = "Gracias. Estás registrado para recibir nuestras notificaciones"
	telegramFailedText     = "Ocurrió un problema. No pudimos registrar su contacto. Intente nuevamente"
	telegramGoodbyeText    = "Hasta luego. Cuando quieras volver a registrarte enviá /start."
	telegramOwnContactText = "Solo podés registrar tu propio teléfono. Usá el botón Mi contacto."

	// TelegramSecretHeader carries the secret_token configured with setWebhook.
	TelegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"
)

// TelegramReplier is satisfied by *provider.TelegramClient.
type TelegramReplier interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup any) (*domain.SendResult, error)
}

// TelegramHandler registers subscribers who share their phone with the bot.
type TelegramHandler struct {
	replier TelegramReplier
	stores  repository.Acquirer
	secret  []byte
	logger  *zap.Logger
}

func NewTelegramHandler(replier TelegramReplier, stores repository.Acquirer, secret string, logger *zap.Logger) (*TelegramHandler, error) {
	if replier == nil {
		return nil, fmt.Errorf("telegram replier is required")
	}
	if stores == nil {
		return nil, fmt.Errorf("store acquirer is required")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("%w: telegram webhook secret is required", domain.ErrValidation)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramHandler{replier: replier, stores: stores, secret: []byte(secret), logger: logger}, nil
}

func RegisterTelegramRoutes(router fiber.Router, replier TelegramReplier, stores repository.Acquirer, secret string, logger *zap.Logger) error {
	h, err := NewTelegramHandler(replier, stores, secret, logger)
	if err != nil {
		return err
	}
	router.Post("/telegram/webhook", h.Webhook)
	return nil
}

// Webhook always acknowledges with 200 once the update parses, otherwise the
// Bot API keeps redelivering it.
func (h *TelegramHandler) Webhook(c *fiber.Ctx) error {
	if subtle.ConstantTimeCompare([]byte(c.Get(TelegramSecretHeader)), h.secret) != 1 {
		h.logger.Warn("rejected telegram update with bad secret", zap.String("ip", c.IP()))
		return fiber.NewError(fiber.StatusUnauthorized, "invalid telegram secret token")
	}

	var update provider.TelegramUpdate
	if err := c.BodyParser(&update); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid telegram update")
	}

	msg := update.Message
	if msg == nil || msg.Chat.ID == 0 {
		return c.SendStatus(fiber.StatusOK)
	}

	ctx := c.UserContext()
	logger := h.logger.With(zap.Int64("chatId", msg.Chat.ID), zap.Int64("updateId", update.UpdateID))

	var text string
	var markup any
	switch {
	case msg.Contact != nil && !ownContact(msg):
		logger.Warn("rejected contact that does not belong to the sender",
			zap.Int64("contactUserId", msg.Contact.UserID),
		)
		text, markup = telegramOwnContactText, provider.ContactRequestKeyboard(telegramContactButton)
	case msg.Contact != nil:
		text, markup = h.register(ctx, logger, msg), provider.RemoveKeyboard()
	case isCommand(msg.Text, "/start"):
		text, markup = telegramWelcomeText, provider.ContactRequestKeyboard(telegramContactButton)
	case isCommand(msg.Text, "/cancel"):
		if msg.From != nil {
			logger.Info("user cancelled the conversation", zap.String("user", msg.From.FirstName))
		}
		text, markup = telegramGoodbyeText, provider.RemoveKeyboard()
	default:
		return c.SendStatus(fiber.StatusOK)
	}

	if _, err := h.replier.SendMessage(ctx, msg.Chat.ID, text, markup); err != nil {
		logger.Error("failed to reply to telegram user", zap.Error(err))
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *TelegramHandler) register(ctx context.Context, logger *zap.Logger, msg *provider.TelegramMessage) string {
	binding := &domain.ChatBinding{
		Phone:  strings.TrimSpace(msg.Contact.PhoneNumber),
		ChatID: msg.Chat.ID,
	}
	if err := binding.Validate(); err != nil {
		logger.Warn("invalid contact shared", zap.Error(err))
		return telegramFailedText
	}

	err := h.stores.WithStore(ctx, func(store *repository.Store) error {
		return store.Chats.Upsert(ctx, binding)
	})
	if err != nil {
		logger.Error("failed to register telegram chat", zap.String("phone", binding.Phone), zap.Error(err))
		return telegramFailedText
	}

	logger.Info("telegram chat registered", zap.String("phone", binding.Phone))
	return telegramRegisteredText
}

// ownContact reports whether the shared contact is the sender's own, which
// is what the request_contact button produces.
func ownContact(msg *provider.TelegramMessage) bool {
	return msg.From != nil && msg.Contact.UserID != 0 && msg.Contact.UserID == msg.From.ID
}

func isCommand(text, command string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	// Group chats address commands as /start@BotName.
	name, _, _ := strings.Cut(fields[0], "@")
	return strings.EqualFold(name, command)
}
