package service

import (
	"errors"
	"strings"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
	"github.com/kursadbilgin/notify-gateway/internal/provider"
)

var transportKeywords = []string{
	"modem",
	"módem",
	"desconectado",
	"disconnected",
	"timeout",
	"no responde",
	"not responding",
}

// IsTransportError reports whether err points at the link to the provider
// rather than at the message, so a reconnect is worth trying before the
// next attempt.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrTransport) || errors.Is(err, domain.ErrModemUnavailable) {
		return true
	}

	text := strings.ToLower(err.Error())
	for _, keyword := range transportKeywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

// isPermanent errors will fail the same way on every attempt.
func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvalidPhone) ||
		provider.IsPermanent(err)
}
