package modem

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestTransport(port Port) *Transport {
	t := NewTransport(port, zap.NewNop())
	t.gracePeriod = time.Millisecond
	t.readInterval = 5 * time.Millisecond
	return t
}

func TestTransportSendReturnsOnOK(t *testing.T) {
	t.Parallel()

	port := newFakePort(healthyModem(1, ""))
	port.inject("stale bytes")
	transport := newTestTransport(port)

	resp, err := transport.Send(context.Background(), "AT+CSQ", time.Second)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !strings.Contains(resp, "+CSQ: 17,99") || !IsOK(resp) {
		t.Fatalf("Send() = %q, want CSQ answer with OK", resp)
	}
	if strings.Contains(resp, "stale") {
		t.Fatalf("Send() = %q, input buffer was not reset", resp)
	}
	if got := port.written(); !reflect.DeepEqual(got, []string{"AT+CSQ\r\n"}) {
		t.Fatalf("written = %q", got)
	}
}

func TestTransportSendReturnsOnError(t *testing.T) {
	t.Parallel()

	port := newFakePort(func(string) string { return "\r\n+CMS ERROR: 500\r\n" })
	transport := newTestTransport(port)

	resp, err := transport.Send(context.Background(), "AT+CMGF=1", time.Second)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !HasFinalResultCode(resp) || IsOK(resp) {
		t.Fatalf("Send() = %q, want final ERROR", resp)
	}
}

func TestTransportSendTimesOutWithoutError(t *testing.T) {
	t.Parallel()

	port := newFakePort(silentModem)
	transport := newTestTransport(port)

	start := time.Now()
	resp, err := transport.Send(context.Background(), "AT", 100*time.Millisecond)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp != "" {
		t.Fatalf("Send() = %q, want empty", resp)
	}
	if elapsed >= time.Second {
		t.Fatalf("Send() took %s on a silent modem", elapsed)
	}
}

func TestTransportSendReturnsPartialResponseOnTimeout(t *testing.T) {
	t.Parallel()

	port := newFakePort(func(string) string { return "\r\n+CSQ: 17" })
	transport := newTestTransport(port)

	resp, err := transport.Send(context.Background(), "AT+CSQ", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp != "\r\n+CSQ: 17" {
		t.Fatalf("Send() = %q, want partial response", resp)
	}
}

func TestTransportSendHonorsContext(t *testing.T) {
	t.Parallel()

	port := newFakePort(silentModem)
	transport := newTestTransport(port)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := transport.Send(ctx, "AT", 10*time.Second); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed >= 2*time.Second {
		t.Fatalf("Send() took %s after context expiry", elapsed)
	}
}

func TestTransportSendWriteFailure(t *testing.T) {
	t.Parallel()

	port := newFakePort(silentModem)
	if err := port.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	transport := newTestTransport(port)

	_, err := transport.Send(context.Background(), "AT", time.Second)
	if err == nil || !strings.Contains(err.Error(), "modem write failed") {
		t.Fatalf("Send() error = %v, want write failure", err)
	}
}

func TestTransportDispatchesStatusReports(t *testing.T) {
	t.Parallel()

	port := newFakePort(nil)
	transport := newTestTransport(port)

	var lines []string
	transport.SetUnsolicitedHandler(func(line string) { lines = append(lines, line) })

	port.inject("\r\n" + testCDSLine + "\r\n+CMTI: \"SM\",3\r\n")
	transport.Listen(context.Background(), 30*time.Millisecond)

	if !reflect.DeepEqual(lines, []string{testCDSLine}) {
		t.Fatalf("unsolicited lines = %q, want only the +CDS line", lines)
	}
}
