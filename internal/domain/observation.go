package domain

import (
	"strings"
	"time"
)

// MaxObservationLength bounds audit text stored per failed recipient.
const MaxObservationLength = 500

// Observation is an audit log entry written when a recipient cannot be reached.
type Observation struct {
	CreatedAt time.Time
	Text      string
}

// NewObservation quote-escapes text and truncates it to MaxObservationLength runes.
func NewObservation(text string, now time.Time) Observation {
	return Observation{
		CreatedAt: now,
		Text:      truncateRunes(EscapeQuotes(text), MaxObservationLength),
	}
}

func EscapeQuotes(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
