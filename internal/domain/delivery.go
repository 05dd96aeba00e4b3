package domain

import (
	"fmt"
	"strings"
	"time"
)

// DeliveryStatus is the network-reported state of a sent SMS.
type DeliveryStatus string

const (
	DeliveryEnroute   DeliveryStatus = "ENROUTE"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryFailed    DeliveryStatus = "FAILED"
)

func (s DeliveryStatus) String() string { return string(s) }

func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryEnroute, DeliveryDelivered, DeliveryFailed:
		return true
	}
	return false
}

func ParseDeliveryStatusFromString(s string) (DeliveryStatus, error) {
	st := DeliveryStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid delivery status %q", ErrValidation, s)
	}
	return st, nil
}

// DeliveryStatusFromTP maps a GSM 03.40 TP-Status octet to a DeliveryStatus.
func DeliveryStatusFromTP(st int) DeliveryStatus {
	switch {
	case st < 0x20:
		return DeliveryDelivered
	case st < 0x40:
		return DeliveryEnroute
	default:
		return DeliveryFailed
	}
}

// DeliveryReport is a status report correlated by the modem message reference.
type DeliveryReport struct {
	Reference  int
	Status     DeliveryStatus
	Recipient  string
	ReceivedAt time.Time
}

// SendResult describes a single accepted send.
type SendResult struct {
	// ProviderID is the Twilio SID, Telegram message id or modem reference.
	ProviderID string
	// Delivery is set only when a report was awaited and received.
	Delivery *DeliveryReport
}

// DeliveryEvent is the per-recipient outcome published after a send completes.
type DeliveryEvent struct {
	EventID    string    `json:"eventId"`
	CycleID    string    `json:"cycleId,omitempty"`
	Channel    string    `json:"channel"`
	MessageID  int64     `json:"messageId"`
	ClientCode string    `json:"clientCode"`
	Recipient  string    `json:"recipient"`
	Success    bool      `json:"success"`
	Attempts   int       `json:"attempts"`
	ProviderID string    `json:"providerId,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
