package modem

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	testCDSLine = `+CDS: 6,12,"+5493511234567",145,"24/01/15,10:30:00-12","24/01/15,10:30:05-12",0`
)

// fakePort is an in-memory modem. respond maps each write to the bytes the
// modem would emit in reply.
type fakePort struct {
	mu          sync.Mutex
	buf         bytes.Buffer
	writes      []string
	readTimeout time.Duration
	respond     func(written string) string
	closed      bool
}

func newFakePort(respond func(written string) string) *fakePort {
	return &fakePort{respond: respond, readTimeout: 5 * time.Millisecond}
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, errors.New("port closed")
	}
	if p.buf.Len() > 0 {
		n, err := p.buf.Read(b)
		p.mu.Unlock()
		return n, err
	}
	timeout := p.readTimeout
	p.mu.Unlock()

	time.Sleep(timeout)
	return 0, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, errors.New("port closed")
	}
	written := string(b)
	p.writes = append(p.writes, written)
	if p.respond != nil {
		p.buf.WriteString(p.respond(written))
	}
	return len(b), nil
}

func (p *fakePort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf.Reset()
	return nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readTimeout = t
	return nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) inject(data string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf.WriteString(data)
}

func (p *fakePort) setRespond(fn func(written string) string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.respond = fn
}

func (p *fakePort) written() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.writes...)
}

func (p *fakePort) wroteCommand(prefix string) bool {
	for _, w := range p.written() {
		if strings.HasPrefix(w, prefix) {
			return true
		}
	}
	return false
}

// healthyModem answers every command like a registered modem and confirms
// submissions with reference ref. extraAfterSubmit is appended to the
// +CMGS confirmation.
func healthyModem(ref int, extraAfterSubmit string) func(string) string {
	return func(w string) string {
		switch {
		case strings.HasSuffix(w, "\x1a"):
			return fmt.Sprintf("\r\n+CMGS: %d\r\n\r\nOK\r\n%s", ref, extraAfterSubmit)
		case strings.HasPrefix(w, "AT+CMGS="):
			return "\r\n> "
		case strings.HasPrefix(w, "AT+CSQ"):
			return "\r\n+CSQ: 17,99\r\n\r\nOK\r\n"
		case strings.HasPrefix(w, "AT+COPS?"):
			return "\r\n+COPS: 0,0,\"Personal\",2\r\n\r\nOK\r\n"
		case strings.HasPrefix(w, "AT+CPIN?"):
			return "\r\n+CPIN: READY\r\n\r\nOK\r\n"
		case strings.HasPrefix(w, "AT+CGMI"):
			return "\r\nQuectel\r\n\r\nOK\r\n"
		case strings.HasPrefix(w, "AT+CGMM"):
			return "\r\nEC25\r\n\r\nOK\r\n"
		case strings.HasPrefix(w, "AT"):
			return "\r\nOK\r\n"
		}
		return ""
	}
}

func silentModem(string) string { return "" }
