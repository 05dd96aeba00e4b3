package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// SMTPAccount is one sending mailbox. Accounts are tried in order until one
// accepts the message.
type SMTPAccount struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (a SMTPAccount) sender() string {
	if a.From != "" {
		return a.From
	}
	return a.Username
}

func (a SMTPAccount) valid() bool {
	return strings.TrimSpace(a.Host) != "" && a.Port > 0 && a.sender() != ""
}

type Mailer struct {
	accounts []SMTPAccount
	send     func(account SMTPAccount, msg *gomail.Message) error
	logger   *zap.Logger
}

// NewMailer keeps the accounts that have a host, port and sender; at least
// one is required.
func NewMailer(accounts []SMTPAccount, logger *zap.Logger) (*Mailer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	usable := make([]SMTPAccount, 0, len(accounts))
	for _, account := range accounts {
		if account.valid() {
			usable = append(usable, account)
		}
	}
	if len(usable) == 0 {
		return nil, fmt.Errorf("at least one smtp account is required")
	}

	return &Mailer{
		accounts: usable,
		send:     dialAndSend,
		logger:   logger,
	}, nil
}

func (m *Mailer) Send(ctx context.Context, to, subject, body string) (*domain.SendResult, error) {
	if m == nil || len(m.accounts) == 0 {
		return nil, fmt.Errorf("mailer is not initialized")
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return nil, fmt.Errorf("%w: email recipient is required", domain.ErrValidation)
	}

	var errs []error
	for _, account := range m.accounts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		msg := gomail.NewMessage()
		msg.SetHeader("From", account.sender())
		msg.SetHeader("To", to)
		msg.SetHeader("Subject", subject)
		msg.SetBody("text/plain", body)

		if err := m.send(account, msg); err != nil {
			m.logger.Warn("smtp account rejected message",
				zap.String("smtpHost", account.Host),
				zap.String("from", account.sender()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", account.Host, err))
			continue
		}

		return &domain.SendResult{ProviderID: account.sender()}, nil
	}

	return nil, &ProviderError{
		Provider:  "smtp",
		Message:   fmt.Sprintf("all %d accounts failed", len(m.accounts)),
		Transient: true,
		Cause:     errors.Join(errs...),
	}
}

func dialAndSend(account SMTPAccount, msg *gomail.Message) error {
	dialer := gomail.NewDialer(account.Host, account.Port, account.Username, account.Password)
	return dialer.DialAndSend(msg)
}

const AlertSubjectPrefix = "[ALERTA SMS MODEM] "

// EmailAlerter mails operational alerts to a fixed address.
type EmailAlerter struct {
	mailer *Mailer
	to     string
	logger *zap.Logger
}

func NewEmailAlerter(mailer *Mailer, to string, logger *zap.Logger) *EmailAlerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailAlerter{mailer: mailer, to: strings.TrimSpace(to), logger: logger}
}

func (a *EmailAlerter) Alert(ctx context.Context, subject, body string) error {
	if a == nil || a.mailer == nil || a.to == "" {
		if a != nil {
			a.logger.Warn("alert not sent, no alert recipient configured", zap.String("subject", subject))
		}
		return nil
	}

	if _, err := a.mailer.Send(ctx, a.to, AlertSubjectPrefix+subject, body); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	a.logger.Info("alert email sent", zap.String("subject", subject), zap.String("to", a.to))
	return nil
}
