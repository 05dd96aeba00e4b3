package domain

import (
	"fmt"
	"strings"
)

// ChannelName identifies the outbound adapter a gateway process runs.
type ChannelName string

const (
	ChannelSMSModem  ChannelName = "sms-modem"
	ChannelSMSTwilio ChannelName = "sms-twilio"
	ChannelWhatsApp  ChannelName = "whatsapp"
	ChannelVoice     ChannelName = "voice"
	ChannelTelegram  ChannelName = "telegram"
	ChannelEmail     ChannelName = "email"
)

func (c ChannelName) String() string { return string(c) }

func (c ChannelName) IsValid() bool {
	switch c {
	case ChannelSMSModem, ChannelSMSTwilio, ChannelWhatsApp, ChannelVoice, ChannelTelegram, ChannelEmail:
		return true
	}
	return false
}

func ParseChannelName(s string) (ChannelName, error) {
	ch := ChannelName(strings.ToLower(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// OutboxTable returns the mailbox table polled for the channel.
func (c ChannelName) OutboxTable() string {
	switch c {
	case ChannelSMSModem, ChannelSMSTwilio:
		return "mensaje_a_sms"
	case ChannelWhatsApp:
		return "mensaje_a_whatsapp"
	case ChannelVoice:
		return "mensaje_llamada_por_robo"
	case ChannelTelegram:
		return "mensaje_a_telegram"
	case ChannelEmail:
		return "mensaje_a_python_email"
	}
	return ""
}
