package domain

import (
	"fmt"
	"strings"
)

// OutboxStatus mirrors the men_status column of the legacy mailbox tables.
type OutboxStatus int

const (
	OutboxPending   OutboxStatus = 0
	OutboxProcessed OutboxStatus = 1
)

func (s OutboxStatus) String() string {
	switch s {
	case OutboxPending:
		return "pending"
	case OutboxProcessed:
		return "processed"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// OutboxMessage is one row of a channel mailbox table.
type OutboxMessage struct {
	ID         int64
	Body       string
	ClientCode string
	Status     OutboxStatus
}

func (m OutboxMessage) Validate() error {
	if m.ID <= 0 {
		return fmt.Errorf("%w: outbox id must be positive", ErrValidation)
	}
	if strings.TrimSpace(m.ClientCode) == "" {
		return fmt.Errorf("%w: client code is required", ErrValidation)
	}
	return nil
}
