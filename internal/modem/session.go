package modem

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultBaudRate          = 115200
	defaultReconnectAttempts = 3
	defaultCloseWait         = 2 * time.Second
	defaultReconnectBackoff  = 5 * time.Second
	defaultCommandTimeout    = 5 * time.Second
	pinTimeout               = 10 * time.Second

	// Route SMS-STATUS-REPORTs to the TE as +CDS lines.
	cnmiCommand = "AT+CNMI=2,1,0,1,0"
)

// State is the lifecycle position of a Session.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateVerified
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateVerified:
		return "verified"
	case StateDegraded:
		return "degraded"
	}
	return "unknown"
}

// Alerter notifies operators through a channel independent of the modem.
type Alerter interface {
	Alert(ctx context.Context, subject string, body string) error
}

type Config struct {
	Port              string
	BaudRate          int
	PIN               string
	ReconnectAttempts int
	CloseWait         time.Duration
	ReconnectBackoff  time.Duration
	CommandTimeout    time.Duration
}

// Status is the probe result reported by /health.
type Status struct {
	Status   string `json:"status"`
	State    string `json:"state"`
	Signal   *int   `json:"signal,omitempty"`
	Operator string `json:"operator,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (s Status) OK() bool { return s.Status == "ok" }

// Session owns the modem connection. Every AT exchange runs under mu.
type Session struct {
	mu         sync.Mutex
	cfg        Config
	opener     Opener
	transport  *Transport
	state      State
	correlator *Correlator
	alerter    Alerter
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time
	onRecover  func(success bool)

	// zero values keep the transport defaults
	gracePeriod  time.Duration
	readInterval time.Duration
}

func NewSession(cfg Config, opener Opener, correlator *Correlator, alerter Alerter, logger *zap.Logger) (*Session, error) {
	if strings.TrimSpace(cfg.Port) == "" {
		return nil, fmt.Errorf("modem port is required")
	}
	if opener == nil {
		opener = OpenSerial
	}
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = defaultBaudRate
	}
	if cfg.ReconnectAttempts <= 0 {
		cfg.ReconnectAttempts = defaultReconnectAttempts
	}
	if cfg.CloseWait <= 0 {
		cfg.CloseWait = defaultCloseWait
	}
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = defaultReconnectBackoff
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}
	if correlator == nil {
		correlator = NewCorrelator(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Session{
		cfg:        cfg,
		opener:     opener,
		correlator: correlator,
		alerter:    alerter,
		logger:     logger,
		sleep:      sleepWithContext,
		now:        time.Now,
	}, nil
}

// OnRecover registers a hook called after every recovery run.
func (s *Session) OnRecover(fn func(success bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRecover = fn
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Correlator() *Correlator {
	return s.correlator
}

// Open acquires the port and runs the verification probes. Probe failures
// leave the session open but unverified.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLocked(ctx)
}

func (s *Session) openLocked(ctx context.Context) error {
	if s.transport != nil {
		return nil
	}

	port, err := s.opener(s.cfg.Port, s.cfg.BaudRate)
	if err != nil {
		s.state = StateClosed
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}

	s.transport = NewTransport(port, s.logger)
	if s.gracePeriod > 0 {
		s.transport.gracePeriod = s.gracePeriod
	}
	if s.readInterval > 0 {
		s.transport.readInterval = s.readInterval
	}
	s.transport.SetUnsolicitedHandler(s.handleUnsolicited)
	s.state = StateOpen
	s.logger.Info("modem port opened",
		zap.String("port", s.cfg.Port),
		zap.Int("baudRate", s.cfg.BaudRate),
	)

	if err := s.verifyLocked(ctx); err != nil {
		s.logger.Warn("modem verification failed", zap.Error(err))
	}
	return nil
}

func (s *Session) verifyLocked(ctx context.Context) error {
	resp, err := s.transport.Send(ctx, "AT", s.cfg.CommandTimeout)
	if err != nil {
		return err
	}
	if !IsOK(resp) {
		return fmt.Errorf("%w: modem not responding to AT", domain.ErrTransport)
	}

	_, _ = s.transport.Send(ctx, "ATE0", s.cfg.CommandTimeout)

	if err := s.unlockSIMLocked(ctx); err != nil {
		return err
	}

	var probeErr error
	if resp, _ := s.transport.Send(ctx, "AT+CSQ", s.cfg.CommandTimeout); IsOK(resp) {
		rssi, _ := ParseSignalQuality(resp)
		s.logger.Info("modem signal quality", zap.Int("rssi", rssi))
	} else {
		probeErr = fmt.Errorf("%w: signal probe failed: %s", domain.ErrTransport, compact(resp))
	}

	if resp, _ := s.transport.Send(ctx, "AT+COPS?", s.cfg.CommandTimeout); IsOK(resp) {
		operator, _ := ParseOperator(resp)
		s.logger.Info("modem network registration", zap.String("operator", operator))
	} else if probeErr == nil {
		probeErr = fmt.Errorf("%w: network probe failed: %s", domain.ErrTransport, compact(resp))
	}

	if resp, _ := s.transport.Send(ctx, cnmiCommand, s.cfg.CommandTimeout); !IsOK(resp) {
		s.logger.Warn("modem rejected status report routing", zap.String("response", strings.TrimSpace(resp)))
	}

	// Stays open until every probe has answered.
	if probeErr != nil {
		return probeErr
	}
	s.state = StateVerified
	return nil
}

func (s *Session) unlockSIMLocked(ctx context.Context) error {
	resp, _ := s.transport.Send(ctx, "AT+CPIN?", s.cfg.CommandTimeout)
	if !strings.Contains(resp, "SIM PIN") {
		return nil
	}
	if s.cfg.PIN == "" {
		return fmt.Errorf("%w: sim requires a PIN and none is configured", domain.ErrTransport)
	}

	resp, err := s.transport.Send(ctx, fmt.Sprintf("AT+CPIN=\"%s\"", s.cfg.PIN), pinTimeout)
	if err != nil {
		return err
	}
	if !IsOK(resp) {
		return fmt.Errorf("%w: sim PIN rejected", domain.ErrTransport)
	}
	return nil
}

// Status probes liveness. A failed probe on a verified session degrades it.
func (s *Session) Status(ctx context.Context) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked(ctx)
}

func (s *Session) statusLocked(ctx context.Context) Status {
	if s.transport == nil {
		return Status{Status: "error", State: s.state.String(), Error: "modem not connected"}
	}

	resp, err := s.transport.Send(ctx, "AT", s.cfg.CommandTimeout)
	if err != nil || !IsOK(resp) {
		if s.state == StateVerified {
			s.state = StateDegraded
		}
		msg := "modem not responding"
		if err != nil {
			msg = err.Error()
		}
		return Status{Status: "error", State: s.state.String(), Error: msg}
	}

	status := Status{Status: "ok"}
	probesOK := true
	if resp, _ := s.transport.Send(ctx, "AT+CSQ", s.cfg.CommandTimeout); IsOK(resp) {
		if rssi, ok := ParseSignalQuality(resp); ok {
			status.Signal = &rssi
		}
	} else {
		probesOK = false
	}
	if resp, _ := s.transport.Send(ctx, "AT+COPS?", s.cfg.CommandTimeout); IsOK(resp) {
		status.Operator, _ = ParseOperator(resp)
	} else {
		probesOK = false
	}

	if probesOK && (s.state == StateDegraded || s.state == StateOpen) {
		s.state = StateVerified
	}
	status.State = s.state.String()
	return status
}

// EnsureReady checks liveness and runs Recover when the probe fails.
func (s *Session) EnsureReady(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if status := s.statusLocked(ctx); status.OK() {
		return nil
	}
	s.logger.Warn("modem unavailable, reconnecting")
	return s.recoverLocked(ctx)
}

// Recover closes and reopens the port up to ReconnectAttempts times. When
// every attempt fails an alert is sent and ErrModemUnavailable returned.
func (s *Session) Recover(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recoverLocked(ctx)
}

func (s *Session) recoverLocked(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.ReconnectAttempts; attempt++ {
		s.logger.Info("modem reconnect attempt",
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", s.cfg.ReconnectAttempts),
		)

		s.closeLocked()
		if err := s.sleep(ctx, s.cfg.CloseWait); err != nil {
			return err
		}

		lastErr = s.openLocked(ctx)
		if lastErr == nil && s.state == StateVerified {
			s.logger.Info("modem reconnected", zap.Int("attempt", attempt))
			s.notifyRecover(true)
			return nil
		}
		if lastErr == nil {
			lastErr = fmt.Errorf("%w: modem opened but failed verification", domain.ErrTransport)
		}
		s.logger.Warn("modem reconnect attempt failed", zap.Int("attempt", attempt), zap.Error(lastErr))

		if attempt < s.cfg.ReconnectAttempts {
			if err := s.sleep(ctx, s.cfg.ReconnectBackoff); err != nil {
				return err
			}
		}
	}

	s.notifyRecover(false)
	s.logger.Error("modem reconnect exhausted",
		zap.Int("attempts", s.cfg.ReconnectAttempts),
		zap.Error(lastErr),
	)
	s.sendAlert(ctx, lastErr)

	return fmt.Errorf("%w: %w after %d reconnect attempts", domain.ErrTransport, domain.ErrModemUnavailable, s.cfg.ReconnectAttempts)
}

func (s *Session) sendAlert(ctx context.Context, cause error) {
	if s.alerter == nil {
		return
	}

	body := fmt.Sprintf(
		"El modem GSM en %s no pudo reconectarse despues de %d intentos.\nHora: %s\nUltimo error: %v",
		s.cfg.Port,
		s.cfg.ReconnectAttempts,
		s.now().Format(time.RFC3339),
		cause,
	)
	if err := s.alerter.Alert(ctx, "Modem desconectado", body); err != nil {
		s.logger.Error("failed to send modem alert", zap.Error(err))
	}
}

func (s *Session) notifyRecover(success bool) {
	if s.onRecover != nil {
		s.onRecover(success)
	}
}

// Close releases the port. It is safe to call on a closed session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Session) closeLocked() error {
	if s.transport == nil {
		s.state = StateClosed
		return nil
	}

	err := s.transport.Close()
	s.transport = nil
	s.state = StateClosed
	if err != nil {
		s.logger.Warn("failed to close modem port", zap.Error(err))
	}
	return err
}

func (s *Session) handleUnsolicited(line string) {
	report, err := ParseStatusReport(line, s.now())
	if err != nil {
		s.logger.Debug("ignoring unsolicited line", zap.String("line", line), zap.Error(err))
		return
	}

	s.logger.Info("delivery report received",
		zap.Int("reference", report.Reference),
		zap.String("status", report.Status.String()),
		zap.String("recipient", report.Recipient),
	)
	s.correlator.Record(report)
}

// pump reads unsolicited traffic for d without holding the lock between
// calls, so health probes can interleave with a delivery wait.
func (s *Session) pump(ctx context.Context, d time.Duration) {
	s.mu.Lock()
	transport := s.transport
	if transport == nil {
		s.mu.Unlock()
		_ = s.sleep(ctx, d)
		return
	}
	transport.Listen(ctx, d)
	s.mu.Unlock()
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsModemUnavailable reports whether err came from exhausted recovery.
func IsModemUnavailable(err error) bool {
	return errors.Is(err, domain.ErrModemUnavailable)
}
