package modem

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
	"github.com/kursadbilgin/notify-gateway/internal/sanitize"
)

func TestSendSMSWithoutDeliveryWait(t *testing.T) {
	t.Parallel()

	port := newFakePort(healthyModem(12, ""))
	s := newTestSession(t, openerFor(port), nil)
	mustOpen(t, s)

	result, err := s.SendSMS(context.Background(), "+5493511234567", "ROBO detectado", SMSOptions{})
	if err != nil {
		t.Fatalf("SendSMS() error = %v", err)
	}
	if result.ProviderID != "12" {
		t.Fatalf("ProviderID = %q, want 12", result.ProviderID)
	}
	if result.Delivery != nil {
		t.Fatalf("Delivery = %+v, want nil", result.Delivery)
	}

	for _, cmd := range []string{"AT+CMGF=1", "AT+CSMP=17,167,0,0", "AT+CMGS=\"+5493511234567\"\r", "ROBO detectado\x1a"} {
		if !port.wroteCommand(cmd) {
			t.Fatalf("expected %q to be written, got %q", cmd, port.written())
		}
	}
}

func TestSendSMSStripsControlBytesFromBody(t *testing.T) {
	t.Parallel()

	port := newFakePort(healthyModem(12, ""))
	s := newTestSession(t, openerFor(port), nil)
	mustOpen(t, s)

	body := sanitize.Clean("ROBO\x1aAT+CMGD=1,4\x1b\r\nzona 2\x00")
	if _, err := s.SendSMS(context.Background(), "+5493511234567", body, SMSOptions{}); err != nil {
		t.Fatalf("SendSMS() error = %v", err)
	}

	var payload string
	for _, w := range port.written() {
		if strings.HasSuffix(w, "\x1a") {
			payload = w
		}
	}
	if got := strings.Count(payload, "\x1a"); got != 1 {
		t.Fatalf("body write carries %d Ctrl-Z bytes: %q", got, payload)
	}
	if strings.ContainsRune(payload, 0x1b) || strings.ContainsRune(payload, 0) {
		t.Fatalf("body write carries control bytes: %q", payload)
	}
	if want := "ROBOAT+CMGD=1,4\r\nzona 2\x1a"; payload != want {
		t.Fatalf("payload = %q, want %q", payload, want)
	}
}

func TestSendSMSWaitsForDeliveryReport(t *testing.T) {
	t.Parallel()

	port := newFakePort(healthyModem(12, "\r\n"+testCDSLine+"\r\n"))
	s := newTestSession(t, openerFor(port), nil)
	mustOpen(t, s)

	result, err := s.SendSMS(context.Background(), "+5493511234567", "hola", SMSOptions{
		WaitForDelivery: true,
		DeliveryTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("SendSMS() error = %v", err)
	}
	if !port.wroteCommand("AT+CSMP=49,167,0,0") {
		t.Fatal("expected status report request in CSMP")
	}
	if result.Delivery == nil {
		t.Fatal("Delivery = nil, want report")
	}
	if result.Delivery.Status != domain.DeliveryDelivered || result.Delivery.Reference != 12 {
		t.Fatalf("Delivery = %+v, want delivered ref 12", result.Delivery)
	}
}

func TestSendSMSPicksUpLateReport(t *testing.T) {
	t.Parallel()

	port := newFakePort(healthyModem(12, ""))
	s := newTestSession(t, openerFor(port), nil)
	mustOpen(t, s)

	go func() {
		time.Sleep(100 * time.Millisecond)
		port.inject("\r\n" + testCDSLine + "\r\n")
	}()

	result, err := s.SendSMS(context.Background(), "+5493511234567", "hola", SMSOptions{
		WaitForDelivery: true,
		DeliveryTimeout: 3 * time.Second,
	})
	if err != nil {
		t.Fatalf("SendSMS() error = %v", err)
	}
	if result.Delivery == nil || result.Delivery.Status != domain.DeliveryDelivered {
		t.Fatalf("Delivery = %+v, want delivered", result.Delivery)
	}
}

func TestSendSMSNoReportIsNotAFailure(t *testing.T) {
	t.Parallel()

	port := newFakePort(healthyModem(12, ""))
	s := newTestSession(t, openerFor(port), nil)
	mustOpen(t, s)

	result, err := s.SendSMS(context.Background(), "+5493511234567", "hola", SMSOptions{
		WaitForDelivery: true,
		DeliveryTimeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("SendSMS() error = %v", err)
	}
	if result.ProviderID != "12" || result.Delivery != nil {
		t.Fatalf("result = %+v, want ref 12 without delivery", result)
	}
}

func TestSendSMSFailedReport(t *testing.T) {
	t.Parallel()

	failed := `+CDS: 6,12,"+5493511234567",145,"24/01/15,10:30:00-12","24/01/15,10:30:05-12",70`
	port := newFakePort(healthyModem(12, "\r\n"+failed+"\r\n"))
	s := newTestSession(t, openerFor(port), nil)
	mustOpen(t, s)

	result, err := s.SendSMS(context.Background(), "+5493511234567", "hola", SMSOptions{
		WaitForDelivery: true,
		DeliveryTimeout: time.Second,
	})
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("SendSMS() error = %v, want ErrDeliveryFailed", err)
	}
	if result == nil || result.Delivery == nil || result.Delivery.Status != domain.DeliveryFailed {
		t.Fatalf("result = %+v, want failed delivery", result)
	}
}

func TestSendSMSPromptTimeoutIsTransportError(t *testing.T) {
	t.Parallel()

	healthy := healthyModem(12, "")
	port := newFakePort(func(w string) string {
		if strings.HasPrefix(w, "AT+CMGS=") {
			return ""
		}
		return healthy(w)
	})
	s := newTestSession(t, openerFor(port), nil)
	mustOpen(t, s)

	start := time.Now()
	_, err := s.SendSMS(context.Background(), "+5493511234567", "hola", SMSOptions{})
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("SendSMS() error = %v, want ErrTransport", err)
	}
	if elapsed := time.Since(start); elapsed >= promptTimeout+2*time.Second {
		t.Fatalf("SendSMS() took %s", elapsed)
	}
	if s.State() != StateDegraded {
		t.Fatalf("State() = %s, want degraded", s.State())
	}
	if !port.wroteCommand("\x1b") {
		t.Fatal("expected ESC to abort the pending message")
	}
}

func TestSendSMSRejectedByNetwork(t *testing.T) {
	t.Parallel()

	healthy := healthyModem(12, "")
	port := newFakePort(func(w string) string {
		if strings.HasSuffix(w, "\x1a") {
			return "\r\n+CMS ERROR: 38\r\n"
		}
		return healthy(w)
	})
	s := newTestSession(t, openerFor(port), nil)
	mustOpen(t, s)

	_, err := s.SendSMS(context.Background(), "+5493511234567", "hola", SMSOptions{})
	if err == nil {
		t.Fatal("SendSMS() error = nil, want rejection")
	}
	if errors.Is(err, domain.ErrTransport) {
		t.Fatalf("SendSMS() error = %v, network rejection is not a transport failure", err)
	}
	if !strings.Contains(err.Error(), "+CMS ERROR: 38") {
		t.Fatalf("SendSMS() error = %v, want CMS code", err)
	}
}

func TestSendSMSOnClosedSession(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, openerFor(newFakePort(nil)), nil)
	_, err := s.SendSMS(context.Background(), "+5493511234567", "hola", SMSOptions{})
	if !errors.Is(err, domain.ErrModemUnavailable) || !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("SendSMS() error = %v, want unavailable transport error", err)
	}
}

func TestDetectBaudRate(t *testing.T) {
	t.Parallel()

	var tried []int
	opener := func(name string, baudRate int) (Port, error) {
		tried = append(tried, baudRate)
		if baudRate != 9600 {
			return newFakePort(silentModem), nil
		}
		return newFakePort(healthyModem(1, "")), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := DetectBaudRate(ctx, opener, "/dev/ttyUSB0", []int{115200, 9600, 19200}, nil)
	if err != nil {
		t.Fatalf("DetectBaudRate() error = %v", err)
	}
	if result.BaudRate != 9600 || result.Signal != 17 || result.Operator != "Personal" {
		t.Fatalf("result = %+v", result)
	}
	if result.Manufacturer != "Quectel" || result.Model != "EC25" {
		t.Fatalf("identity = %q/%q, want Quectel/EC25", result.Manufacturer, result.Model)
	}
	if !reflect.DeepEqual(tried, []int{115200, 9600}) {
		t.Fatalf("tried = %v, want [115200 9600]", tried)
	}
}

func TestDetectBaudRateNoResponse(t *testing.T) {
	t.Parallel()

	opener := func(name string, baudRate int) (Port, error) {
		return nil, fmt.Errorf("cannot open at %d", baudRate)
	}

	if _, err := DetectBaudRate(context.Background(), opener, "/dev/ttyUSB0", []int{9600}, nil); err == nil {
		t.Fatal("expected error when no rate answers")
	}
}
