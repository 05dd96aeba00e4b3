package modem

import (
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
)

func TestParseStatusReport(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name          string
		line          string
		wantReference int
		wantStatus    domain.DeliveryStatus
		wantRecipient string
	}{
		{name: "delivered", line: testCDSLine, wantReference: 12, wantStatus: domain.DeliveryDelivered, wantRecipient: "+5493511234567"},
		{name: "enroute", line: `+CDS: 6,200,"3511234567",129,"24/01/15,10:30:00-12","24/01/15,10:30:05-12",48`, wantReference: 200, wantStatus: domain.DeliveryEnroute, wantRecipient: "3511234567"},
		{name: "failed", line: `+CDS: 6,7,"+5493511234567",145,"24/01/15,10:30:00-12","24/01/15,10:30:05-12",70`, wantReference: 7, wantStatus: domain.DeliveryFailed, wantRecipient: "+5493511234567"},
		{name: "short form without address", line: "+CDS: 6,9,0", wantReference: 9, wantStatus: domain.DeliveryDelivered},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			report, err := ParseStatusReport(tt.line, now)
			if err != nil {
				t.Fatalf("ParseStatusReport() error = %v", err)
			}
			if report.Reference != tt.wantReference {
				t.Fatalf("Reference = %d, want %d", report.Reference, tt.wantReference)
			}
			if report.Status != tt.wantStatus {
				t.Fatalf("Status = %s, want %s", report.Status, tt.wantStatus)
			}
			if report.Recipient != tt.wantRecipient {
				t.Fatalf("Recipient = %q, want %q", report.Recipient, tt.wantRecipient)
			}
			if !report.ReceivedAt.Equal(now) {
				t.Fatalf("ReceivedAt = %s, want %s", report.ReceivedAt, now)
			}
		})
	}
}

func TestParseStatusReportRejectsMalformed(t *testing.T) {
	t.Parallel()

	for _, line := range []string{"+CMGS: 12", "+CDS: 25", "+CDS: 6,abc,0", "+CDS: 6,1,x"} {
		if _, err := ParseStatusReport(line, time.Now()); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("ParseStatusReport(%q) error = %v, want ErrValidation", line, err)
		}
	}
}

func TestParseResponses(t *testing.T) {
	t.Parallel()

	if ref, ok := ParseMessageReference("\r\n+CMGS: 42\r\n\r\nOK\r\n"); !ok || ref != 42 {
		t.Fatalf("ParseMessageReference() = %d, %v, want 42", ref, ok)
	}
	if _, ok := ParseMessageReference("\r\nOK\r\n"); ok {
		t.Fatal("ParseMessageReference() found a reference in a bare OK")
	}
	if rssi, ok := ParseSignalQuality("+CSQ: 21,99\r\nOK"); !ok || rssi != 21 {
		t.Fatalf("ParseSignalQuality() = %d, %v, want 21", rssi, ok)
	}
	if operator, ok := ParseOperator(`+COPS: 0,0,"Claro AR",7`); !ok || operator != "Claro AR" {
		t.Fatalf("ParseOperator() = %q, %v, want Claro AR", operator, ok)
	}
	if got := informationText("AT+CGMI", "AT+CGMI\r\nQuectel\r\n\r\nOK\r\n"); got != "Quectel" {
		t.Fatalf("informationText() = %q, want Quectel", got)
	}
}
