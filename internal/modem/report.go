package modem

import (
	"encoding/csv"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
)

const cdsPrefix = "+CDS:"

var (
	cmgsPattern = regexp.MustCompile(`\+CMGS:\s*(\d+)`)
	csqPattern  = regexp.MustCompile(`\+CSQ:\s*(\d+)\s*,\s*(\d+)`)
	copsPattern = regexp.MustCompile(`\+COPS:\s*\d+\s*,\s*\d+\s*,\s*"([^"]*)"`)
)

// ParseStatusReport decodes a text-mode status report line:
//
//	+CDS: <fo>,<mr>,"<ra>",<tora>,"<scts>","<dt>",<st>
//
// PDU-mode reports (a bare length) are rejected.
func ParseStatusReport(line string, receivedAt time.Time) (domain.DeliveryReport, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, cdsPrefix) {
		return domain.DeliveryReport{}, fmt.Errorf("%w: not a status report: %q", domain.ErrValidation, line)
	}

	reader := csv.NewReader(strings.NewReader(strings.TrimSpace(strings.TrimPrefix(trimmed, cdsPrefix))))
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true
	fields, err := reader.Read()
	if err != nil {
		return domain.DeliveryReport{}, fmt.Errorf("%w: malformed status report %q: %v", domain.ErrValidation, line, err)
	}
	if len(fields) < 3 {
		return domain.DeliveryReport{}, fmt.Errorf("%w: status report %q has %d fields", domain.ErrValidation, line, len(fields))
	}

	reference, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return domain.DeliveryReport{}, fmt.Errorf("%w: invalid message reference in %q", domain.ErrValidation, line)
	}
	st, err := strconv.Atoi(strings.TrimSpace(fields[len(fields)-1]))
	if err != nil {
		return domain.DeliveryReport{}, fmt.Errorf("%w: invalid status in %q", domain.ErrValidation, line)
	}

	report := domain.DeliveryReport{
		Reference:  reference,
		Status:     domain.DeliveryStatusFromTP(st),
		ReceivedAt: receivedAt,
	}
	if len(fields) >= 7 {
		report.Recipient = strings.TrimSpace(fields[2])
	}
	return report, nil
}

// ParseMessageReference extracts <mr> from a +CMGS response.
func ParseMessageReference(response string) (int, bool) {
	m := cmgsPattern.FindStringSubmatch(response)
	if m == nil {
		return 0, false
	}
	ref, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return ref, true
}

// ParseSignalQuality extracts the RSSI from a +CSQ response. 99 means unknown.
func ParseSignalQuality(response string) (int, bool) {
	m := csqPattern.FindStringSubmatch(response)
	if m == nil {
		return 0, false
	}
	rssi, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return rssi, true
}

// ParseOperator extracts the operator name from a +COPS? response.
func ParseOperator(response string) (string, bool) {
	m := copsPattern.FindStringSubmatch(response)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// informationText returns the response body without the echoed command and
// the final result code, e.g. the model name for AT+CGMM.
func informationText(command string, response string) string {
	lines := make([]string, 0, 2)
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "OK" || line == command {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, " ")
}
