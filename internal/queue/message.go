package queue

import (
	"fmt"
	"strings"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
)

func validateEvent(e domain.DeliveryEvent) error {
	if strings.TrimSpace(e.EventID) == "" {
		return fmt.Errorf("eventId is required")
	}
	if _, err := domain.ParseChannelName(e.Channel); err != nil {
		return fmt.Errorf("invalid channel %q", e.Channel)
	}
	if e.MessageID <= 0 {
		return fmt.Errorf("messageId must be positive")
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("occurredAt is required")
	}
	return nil
}
