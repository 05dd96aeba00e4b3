package repository

import (
	"fmt"
	"regexp"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
)

const (
	ContactTableWhatsApp = "clientes_whatsapp"
	ContactTableVoice    = "clientes_llamada"

	DefaultObservationsTable = "telegram_observaciones"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// checkTable guards table names that are spliced into SQL text.
func checkTable(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: invalid table name %q", domain.ErrValidation, name)
	}
	return nil
}
