package domain

import (
	"fmt"
	"strings"
)

// ChatSuffixLength is how many trailing phone digits identify a Telegram binding.
const ChatSuffixLength = 7

// ChatBinding links a subscriber phone to a Telegram chat.
type ChatBinding struct {
	Phone  string
	ChatID int64
}

func (b ChatBinding) Validate() error {
	if strings.TrimSpace(b.Phone) == "" {
		return fmt.Errorf("%w: phone is required", ErrValidation)
	}
	if b.ChatID == 0 {
		return fmt.Errorf("%w: chat id is required", ErrValidation)
	}
	return nil
}

// PhoneSuffix returns the last ChatSuffixLength characters of phone.
func PhoneSuffix(phone string) string {
	phone = strings.TrimSpace(phone)
	if len(phone) <= ChatSuffixLength {
		return phone
	}
	return phone[len(phone)-ChatSuffixLength:]
}
