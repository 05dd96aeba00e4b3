package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseDeliveryStatusFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    DeliveryStatus
		wantErr bool
	}{
		{name: "valid uppercase", input: "DELIVERED", want: DeliveryDelivered},
		{name: "valid lowercase with spaces", input: " enroute ", want: DeliveryEnroute},
		{name: "invalid", input: "lost", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseDeliveryStatusFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseDeliveryStatusFromString() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseDeliveryStatusFromString() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseDeliveryStatusFromString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDeliveryStatusFromTP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		st   int
		want DeliveryStatus
	}{
		{st: 0, want: DeliveryDelivered},
		{st: 31, want: DeliveryDelivered},
		{st: 32, want: DeliveryEnroute},
		{st: 63, want: DeliveryEnroute},
		{st: 64, want: DeliveryFailed},
		{st: 127, want: DeliveryFailed},
	}

	for _, tt := range tests {
		if got := DeliveryStatusFromTP(tt.st); got != tt.want {
			t.Fatalf("DeliveryStatusFromTP(%d) = %s, want %s", tt.st, got, tt.want)
		}
	}
}

func TestParseChannelName(t *testing.T) {
	t.Parallel()

	got, err := ParseChannelName(" SMS-Modem ")
	if err != nil {
		t.Fatalf("ParseChannelName() unexpected error = %v", err)
	}
	if got != ChannelSMSModem {
		t.Fatalf("ParseChannelName() = %s, want %s", got, ChannelSMSModem)
	}
	if got.OutboxTable() != "mensaje_a_sms" {
		t.Fatalf("OutboxTable() = %s, want mensaje_a_sms", got.OutboxTable())
	}

	_, err = ParseChannelName("fax")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseChannelName() error = %v, want ErrValidation", err)
	}
}

func TestSplitRecipients(t *testing.T) {
	t.Parallel()

	got := SplitRecipients(" 3511111111 ; ;3512222222;")
	if len(got) != 2 {
		t.Fatalf("SplitRecipients() len = %d, want 2 (%v)", len(got), got)
	}
	if got[0] != "3511111111" || got[1] != "3512222222" {
		t.Fatalf("SplitRecipients() = %v", got)
	}

	if got := SplitRecipients("   "); len(got) != 0 {
		t.Fatalf("SplitRecipients(blank) = %v, want empty", got)
	}
}

func TestMatchesTrigger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		body    string
		want    bool
		wantErr bool
	}{
		{name: "case insensitive", pattern: "robo", body: "ROBO detectado en sucursal", want: true},
		{name: "regex alternation", pattern: "robo|asalto", body: "Asalto en curso", want: true},
		{name: "no match", pattern: "robo", body: "Apertura normal", want: false},
		{name: "empty pattern matches", pattern: "", body: "anything", want: true},
		{name: "invalid pattern", pattern: "(", body: "x", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := MatchesTrigger(tt.pattern, tt.body)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("MatchesTrigger() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("MatchesTrigger() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("MatchesTrigger() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecipientKey(t *testing.T) {
	t.Parallel()

	if got := (Recipient{Address: "+5493511111111"}).Key(); got != "+5493511111111" {
		t.Fatalf("Key() = %q, want address", got)
	}
	if got := (Recipient{Address: "+5493511111111", CooldownKey: "42"}).Key(); got != "42" {
		t.Fatalf("Key() = %q, want 42", got)
	}
}

func TestNewObservation(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)

	obs := NewObservation("it's broken", now)
	if obs.Text != "it''s broken" {
		t.Fatalf("Text = %q, want escaped quote", obs.Text)
	}
	if !obs.CreatedAt.Equal(now) {
		t.Fatalf("CreatedAt = %v, want %v", obs.CreatedAt, now)
	}

	long := NewObservation(strings.Repeat("'", 400), now)
	if got := len([]rune(long.Text)); got != MaxObservationLength {
		t.Fatalf("len(Text) = %d, want %d", got, MaxObservationLength)
	}
}

func TestOutboxMessageValidate(t *testing.T) {
	t.Parallel()

	if err := (OutboxMessage{ID: 1, ClientCode: "42"}).Validate(); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}
	if err := (OutboxMessage{ID: 0, ClientCode: "42"}).Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}
	if err := (OutboxMessage{ID: 1}).Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}
}

func TestPhoneSuffix(t *testing.T) {
	t.Parallel()

	if got := PhoneSuffix("+5493511234567"); got != "1234567" {
		t.Fatalf("PhoneSuffix() = %q, want 1234567", got)
	}
	if got := PhoneSuffix("12345"); got != "12345" {
		t.Fatalf("PhoneSuffix(short) = %q, want 12345", got)
	}
}
