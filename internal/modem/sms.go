package modem

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
	"go.uber.org/zap"
)

const (
	promptTimeout          = 10 * time.Second
	submitTimeout          = 30 * time.Second
	defaultDeliveryTimeout = 30 * time.Second

	// SMS-SUBMIT first octet with and without the status report request bit.
	firstOctetWithReport = 49
	firstOctetNoReport   = 17
)

// ErrDeliveryFailed is returned when the network reports a permanent failure.
var ErrDeliveryFailed = errors.New("delivery report: failed")

type SMSOptions struct {
	WaitForDelivery bool
	DeliveryTimeout time.Duration
}

// SendSMS submits text to number in GSM text mode. When WaitForDelivery is
// set it blocks until the status report for the returned reference arrives.
// A missing report is logged and not treated as a failure.
func (s *Session) SendSMS(ctx context.Context, number string, text string, opts SMSOptions) (*domain.SendResult, error) {
	submittedAt := s.now()
	reference, err := s.submit(ctx, number, text, opts.WaitForDelivery)
	if err != nil {
		return nil, err
	}

	result := &domain.SendResult{}
	if reference < 0 {
		return result, nil
	}
	result.ProviderID = strconv.Itoa(reference)

	if !opts.WaitForDelivery {
		return result, nil
	}

	timeout := opts.DeliveryTimeout
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}

	s.logger.Info("waiting for delivery report",
		zap.Int("reference", reference),
		zap.Duration("timeout", timeout),
	)
	report, err := s.correlator.Await(ctx, reference, submittedAt, timeout, s.pump)
	if errors.Is(err, ErrNoDeliveryReport) {
		s.logger.Warn("no delivery report received",
			zap.Int("reference", reference),
			zap.Duration("timeout", timeout),
		)
		return result, nil
	}
	if err != nil {
		return result, err
	}

	result.Delivery = &report
	if report.Status == domain.DeliveryFailed {
		return result, fmt.Errorf("%w: reference %d to %s", ErrDeliveryFailed, reference, number)
	}
	return result, nil
}

// submit runs the CMGF/CSMP/CMGS exchange and returns the message reference,
// or -1 when the modem accepted the message without echoing one.
func (s *Session) submit(ctx context.Context, number string, text string, requestReport bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transport == nil || s.state == StateClosed {
		return 0, fmt.Errorf("%w: %w: modem not connected", domain.ErrTransport, domain.ErrModemUnavailable)
	}
	t := s.transport

	resp, err := t.Send(ctx, "AT+CMGF=1", s.cfg.CommandTimeout)
	if err != nil {
		return 0, err
	}
	if !IsOK(resp) {
		s.degradeLocked()
		return 0, fmt.Errorf("%w: modem rejected text mode: %s", domain.ErrTransport, compact(resp))
	}

	firstOctet := firstOctetNoReport
	if requestReport {
		firstOctet = firstOctetWithReport
	}
	if resp, _ := t.Send(ctx, fmt.Sprintf("AT+CSMP=%d,167,0,0", firstOctet), s.cfg.CommandTimeout); !IsOK(resp) {
		s.logger.Warn("modem rejected text mode parameters", zap.String("response", compact(resp)))
	}

	if err := t.port.ResetInputBuffer(); err != nil {
		s.logger.Debug("failed to reset modem input buffer", zap.Error(err))
	}
	if err := t.WriteRaw([]byte(fmt.Sprintf("AT+CMGS=\"%s\"\r", number))); err != nil {
		return 0, err
	}

	prompt, ok := t.Expect(ctx, func(text string) bool {
		return strings.Contains(text, ">") || strings.Contains(text, "ERROR")
	}, promptTimeout)
	if !ok || !strings.Contains(prompt, ">") {
		_ = t.WriteRaw([]byte{escape})
		if strings.Contains(prompt, "ERROR") {
			return 0, fmt.Errorf("modem refused recipient %s: %s", number, compact(prompt))
		}
		s.degradeLocked()
		return 0, fmt.Errorf("%w: timeout waiting for modem prompt", domain.ErrTransport)
	}

	if err := t.WriteRaw(append(smsPayload(text), ctrlZ)); err != nil {
		return 0, err
	}

	resp, ok = t.Expect(ctx, HasFinalResultCode, submitTimeout)
	if !ok {
		s.degradeLocked()
		return 0, fmt.Errorf("%w: timeout waiting for send confirmation", domain.ErrTransport)
	}
	if strings.Contains(resp, "ERROR") {
		return 0, fmt.Errorf("modem rejected message to %s: %s", number, compact(resp))
	}

	reference, ok := ParseMessageReference(resp)
	if !ok {
		s.logger.Warn("modem accepted message without a reference", zap.String("response", compact(resp)))
		return -1, nil
	}

	s.logger.Info("sms submitted", zap.String("number", number), zap.Int("reference", reference))
	return reference, nil
}

func (s *Session) degradeLocked() {
	if s.state == StateVerified {
		s.state = StateDegraded
	}
}

// smsPayload drops C0 control bytes other than CR and LF. A Ctrl-Z or ESC
// inside the body would end the PDU early and hand the remainder to the
// command interpreter.
func smsPayload(text string) []byte {
	out := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if (c < 0x20 && c != '\n' && c != '\r') || c == 0x7f {
			continue
		}
		out = append(out, c)
	}
	return out
}

func compact(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
