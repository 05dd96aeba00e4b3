package modem

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultGracePeriod  = 300 * time.Millisecond
	defaultReadInterval = 100 * time.Millisecond
	readChunkSize       = 256

	ctrlZ  = 0x1A
	escape = 0x1B
)

// Transport frames AT command exchanges over a Port. It is not safe for
// concurrent use; Session serializes access.
type Transport struct {
	port         Port
	logger       *zap.Logger
	gracePeriod  time.Duration
	readInterval time.Duration
	unsolicited  func(line string)
}

func NewTransport(port Port, logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Transport{
		port:         port,
		logger:       logger,
		gracePeriod:  defaultGracePeriod,
		readInterval: defaultReadInterval,
	}
}

// SetUnsolicitedHandler registers fn for +CDS lines seen in any exchange.
func (t *Transport) SetUnsolicitedHandler(fn func(line string)) {
	t.unsolicited = fn
}

// Send clears stale input, writes command+CRLF and reads until OK or ERROR
// shows up or timeout elapses. A timeout is not an error: the caller gets
// whatever arrived, possibly nothing. Only write failures are returned.
func (t *Transport) Send(ctx context.Context, command string, timeout time.Duration) (string, error) {
	if err := t.port.ResetInputBuffer(); err != nil {
		t.logger.Debug("failed to reset modem input buffer", zap.Error(err))
	}

	if err := t.WriteRaw([]byte(command + "\r\n")); err != nil {
		return "", err
	}

	response, _ := t.readUntil(ctx, HasFinalResultCode, timeout)
	t.logger.Debug("at exchange",
		zap.String("command", command),
		zap.String("response", strings.TrimSpace(response)),
	)
	return response, nil
}

// Expect reads until match accepts the accumulated text or timeout elapses.
func (t *Transport) Expect(ctx context.Context, match func(string) bool, timeout time.Duration) (string, bool) {
	return t.readUntil(ctx, match, timeout)
}

// Listen reads for d, dispatching any unsolicited lines that arrive.
func (t *Transport) Listen(ctx context.Context, d time.Duration) string {
	text, _ := t.readUntil(ctx, nil, d)
	return text
}

func (t *Transport) WriteRaw(data []byte) error {
	if _, err := t.port.Write(data); err != nil {
		return fmt.Errorf("%w: modem write failed: %v", domain.ErrTransport, err)
	}
	return nil
}

func (t *Transport) Close() error {
	return t.port.Close()
}

func (t *Transport) readUntil(ctx context.Context, match func(string) bool, timeout time.Duration) (string, bool) {
	if ctx == nil {
		ctx = context.Background()
	}

	var buf strings.Builder
	matched := t.readInto(ctx, &buf, match, time.Now().Add(timeout))
	if matched {
		t.readInto(ctx, &buf, nil, time.Now().Add(t.gracePeriod))
	}

	text := buf.String()
	t.dispatchUnsolicited(text)
	return text, matched
}

func (t *Transport) readInto(ctx context.Context, buf *strings.Builder, match func(string) bool, deadline time.Time) bool {
	chunk := make([]byte, readChunkSize)
	for ctx.Err() == nil {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}

		if err := t.port.SetReadTimeout(min(t.readInterval, remaining)); err != nil {
			t.logger.Debug("failed to set modem read timeout", zap.Error(err))
		}

		n, err := t.port.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			if match != nil && match(buf.String()) {
				return true
			}
		}
		if err != nil {
			t.logger.Warn("modem read failed", zap.Error(err))
			return false
		}
	}
	return false
}

func (t *Transport) dispatchUnsolicited(text string) {
	if t.unsolicited == nil || !strings.Contains(text, cdsPrefix) {
		return
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, cdsPrefix) {
			t.unsolicited(line)
		}
	}
}

// HasFinalResultCode reports whether text carries the OK or ERROR sentinel.
func HasFinalResultCode(text string) bool {
	return strings.Contains(text, "OK") || strings.Contains(text, "ERROR")
}

// IsOK reports whether text carries OK and no ERROR.
func IsOK(text string) bool {
	return strings.Contains(text, "OK") && !strings.Contains(text, "ERROR")
}
