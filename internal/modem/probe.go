package modem

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const probeTimeout = 3 * time.Second

// CommonBaudRates lists the rates GSM modems usually ship with, most likely first.
var CommonBaudRates = []int{115200, 9600, 19200, 38400, 57600, 230400}

type ProbeResult struct {
	BaudRate     int
	Signal       int
	Operator     string
	Manufacturer string
	Model        string
}

// DetectBaudRate opens port at each rate in turn and returns the first one
// where the modem answers AT with OK.
func DetectBaudRate(ctx context.Context, opener Opener, port string, rates []int, logger *zap.Logger) (*ProbeResult, error) {
	if opener == nil {
		opener = OpenSerial
	}
	if len(rates) == 0 {
		rates = CommonBaudRates
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, rate := range rates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		logger.Info("probing modem", zap.String("port", port), zap.Int("baudRate", rate))
		result, err := probeRate(ctx, opener, port, rate, logger)
		if err != nil {
			logger.Warn("modem did not respond", zap.Int("baudRate", rate), zap.Error(err))
			continue
		}
		return result, nil
	}

	return nil, fmt.Errorf("no response from modem on %s at any of %v bps", port, rates)
}

func probeRate(ctx context.Context, opener Opener, port string, rate int, logger *zap.Logger) (*ProbeResult, error) {
	p, err := opener(port, rate)
	if err != nil {
		return nil, err
	}

	t := NewTransport(p, logger)
	defer t.Close()

	resp, err := t.Send(ctx, "AT", probeTimeout)
	if err != nil {
		return nil, err
	}
	if !IsOK(resp) {
		return nil, fmt.Errorf("no OK to AT at %d bps", rate)
	}

	result := &ProbeResult{BaudRate: rate}
	if resp, _ := t.Send(ctx, "AT+CSQ", probeTimeout); IsOK(resp) {
		result.Signal, _ = ParseSignalQuality(resp)
	}
	if resp, _ := t.Send(ctx, "AT+COPS?", probeTimeout); IsOK(resp) {
		result.Operator, _ = ParseOperator(resp)
	}
	if resp, _ := t.Send(ctx, "AT+CGMI", probeTimeout); IsOK(resp) {
		result.Manufacturer = informationText("AT+CGMI", resp)
	}
	if resp, _ := t.Send(ctx, "AT+CGMM", probeTimeout); IsOK(resp) {
		result.Model = informationText("AT+CGMM", resp)
	}
	return result, nil
}
