package domain

import "errors"

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrInvalidPhone     = errors.New("invalid phone")
	ErrNoRecipients     = errors.New("no recipients resolved")
	ErrTransport        = errors.New("transport failure")
	ErrModemUnavailable = errors.New("modem unavailable")
)
