package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// RecipientSeparator splits multi-valued contact fields such as CLI_CELULAR.
const RecipientSeparator = ";"

// Recipient is one resolved delivery target for an outbox message.
type Recipient struct {
	Address string
	// CooldownKey identifies the recipient in the cooldown set. Alarm contacts
	// use the subscriber id, phone lists use the address itself.
	CooldownKey    string
	Name           string
	TriggerPattern string
	// Unresolved is set when the contact exists but has no deliverable
	// address, e.g. a phone that never opened a Telegram chat. The poller
	// records it as a failed delivery without calling the provider.
	Unresolved string
}

func (r Recipient) Key() string {
	if key := strings.TrimSpace(r.CooldownKey); key != "" {
		return key
	}
	return strings.TrimSpace(r.Address)
}

// SplitRecipients splits a delimited contact field, dropping blanks.
func SplitRecipients(field string) []string {
	parts := strings.Split(field, RecipientSeparator)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// MatchesTrigger reports whether body contains the event pattern, ignoring case.
// An empty pattern matches everything.
func MatchesTrigger(pattern string, body string) (bool, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return true, nil
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return false, fmt.Errorf("%w: invalid trigger pattern %q: %v", ErrValidation, pattern, err)
	}
	return re.MatchString(body), nil
}
