// Package phone turns free-form Argentine phone numbers into the dialable
// +549... form expected by the modem and Twilio.
package phone

import (
	"fmt"
	"strings"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
)

const (
	countryCode  = "54"
	mobilePrefix = "549"
	minDigits    = 7
)

// Normalize cleans raw and applies the country-prefix rules. Inputs with fewer
// than 7 digits fail with domain.ErrInvalidPhone.
func Normalize(raw string) (string, error) {
	digits := digitsOnly(raw)
	if len(digits) < minDigits {
		return "", fmt.Errorf("%w: %q has fewer than %d digits", domain.ErrInvalidPhone, raw, minDigits)
	}

	digits = fixRedundantPrefixes(digits)

	switch {
	case strings.HasPrefix(digits, mobilePrefix):
		return "+" + digits, nil
	case strings.HasPrefix(digits, countryCode):
		return "+" + mobilePrefix + digits[len(countryCode):], nil
	case strings.HasPrefix(digits, "0"):
		return "+" + mobilePrefix + digits[1:], nil
	default:
		return "+" + mobilePrefix + digits, nil
	}
}

// Digits returns the normalized number without the leading plus.
func Digits(raw string) (string, error) {
	normalized, err := Normalize(raw)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(normalized, "+"), nil
}

func digitsOnly(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.TrimSpace(raw) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// fixRedundantPrefixes strips international dialing and doubled country
// codes, e.g. 00549..., 540549..., 54054..., 0549..., 054....
func fixRedundantPrefixes(digits string) string {
	if strings.HasPrefix(digits, "00") {
		digits = digits[2:]
	}

	if strings.HasPrefix(digits, "540549") {
		digits = digits[2:]
	} else if strings.HasPrefix(digits, "54054") {
		digits = mobilePrefix + digits[5:]
	}

	if strings.HasPrefix(digits, "0549") {
		digits = digits[1:]
	} else if strings.HasPrefix(digits, "054") {
		digits = mobilePrefix + digits[3:]
	}

	return digits
}
