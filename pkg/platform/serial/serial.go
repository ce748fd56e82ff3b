// Package serial reaches boards over serial ports.
package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/term"
	"github.com/robotalks/strata.go/pkg/board"
	"github.com/robotalks/strata.go/pkg/bridge"
	"github.com/robotalks/strata.go/pkg/enumerate"
	"github.com/robotalks/strata.go/pkg/link"
	"github.com/robotalks/strata.go/pkg/status"
)

// DefaultBaudRate is used when none is configured.
const DefaultBaudRate = 921600

// BaudRates are the rates the boards support.
var BaudRates = []int{
	9600, 19200, 38400, 57600, 115200, 230400, 460800, 500000, 576000,
	921600, 1000000, 1152000, 1500000, 2000000, 2500000, 3000000,
	3500000, 4000000,
}

// BaudRateError is the cause of a connection error for a rate outside
// BaudRates.
type BaudRateError struct {
	Rate int
}

func (e *BaudRateError) Error() string {
	return fmt.Sprintf("unsupported baud rate %d", e.Rate)
}

// CheckBaudRate fails with a connection error wrapping a BaudRateError
// for rates outside BaudRates.
func CheckBaudRate(baud int) error {
	for _, rate := range BaudRates {
		if rate == baud {
			return nil
		}
	}
	return status.Wrap(status.KindConnection, status.CodeInvalidParameter, "baudRate", &BaudRateError{Rate: baud})
}

// Link is a stream link over a serial port in raw mode.
type Link struct {
	Port string
	Baud int

	lock    sync.Mutex
	term    *term.Term
	timeout time.Duration
}

var _ link.Link = &Link{}

// NewLink creates a link on port at baud.
func NewLink(port string, baud int) *Link {
	return &Link{Port: port, Baud: baud}
}

// Open implements link.Link.
func (l *Link) Open() error {
	if err := CheckBaudRate(l.Baud); err != nil {
		return err
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.term != nil {
		return nil
	}
	t, err := term.Open(l.Port, term.Speed(l.Baud), term.RawMode)
	if err != nil {
		return link.ConnectionError("open "+l.Port, err)
	}
	l.term, l.timeout = t, 0
	return nil
}

// Close implements link.Link.
func (l *Link) Close() error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.term == nil {
		return nil
	}
	err := l.term.Close()
	l.term = nil
	return link.ConnectionError("close", err)
}

func (l *Link) get() (*term.Term, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.term == nil {
		return nil, status.ErrNotOpen
	}
	return l.term, nil
}

// Send implements link.Link.
func (l *Link) Send(p []byte) error {
	t, err := l.get()
	if err != nil {
		return err
	}
	for len(p) > 0 {
		n, err := t.Write(p)
		if err != nil {
			return link.ConnectionError("send", err)
		}
		p = p[n:]
	}
	return nil
}

// Receive implements link.Link. The port resolves timeouts in tenths of
// a second.
func (l *Link) Receive(p []byte, timeout time.Duration) (int, error) {
	t, err := l.get()
	if err != nil {
		return 0, err
	}
	if timeout != l.timeout {
		if err := t.SetReadTimeout(timeout); err != nil {
			return 0, link.ConnectionError("receive", err)
		}
		l.timeout = timeout
	}
	n, err := t.Read(p)
	if n > 0 {
		return n, nil
	}
	if errors.Is(err, io.EOF) {
		return 0, status.Errorf(status.KindConnection, status.CodeTimeout, "receive", "nothing within %s", timeout)
	}
	return 0, link.ConnectionError("receive", err)
}

// MaxPayload implements link.Link.
func (l *Link) MaxPayload() int {
	return link.SerialMaxPayload
}

// ClearInput implements link.Link.
func (l *Link) ClearInput() error {
	t, err := l.get()
	if err != nil {
		return err
	}
	return link.ConnectionError("flush", t.Flush())
}

// DefaultPatterns are the device globs of board serial ports.
func DefaultPatterns() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"/dev/cu.usbmodem*", "/dev/cu.usbserial*"}
	case "linux":
		return []string{"/dev/ttyACM*", "/dev/ttyUSB*"}
	}
	return nil
}

// ListPorts returns the ports matching patterns, sorted.
func ListPorts(patterns []string) ([]string, error) {
	var ports []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, status.Wrap(status.KindConnection, status.CodeInvalidParameter, "listPorts", err)
		}
		ports = append(ports, matches...)
	}
	sort.Strings(ports)
	return ports, nil
}

// Enumerator probes serial ports for boards.
type Enumerator struct {
	// Ports is probed when set, otherwise ports matching Patterns.
	Ports    []string
	Patterns []string
	Baud     int

	// NewControl overrides the transport, for tests.
	NewControl func(port string) *bridge.VendorControl
}

var _ enumerate.Enumerator = &Enumerator{}

func (e *Enumerator) ports() ([]string, error) {
	if len(e.Ports) > 0 {
		return e.Ports, nil
	}
	patterns := e.Patterns
	if patterns == nil {
		patterns = DefaultPatterns()
	}
	return ListPorts(patterns)
}

func (e *Enumerator) control(port string) *bridge.VendorControl {
	if e.NewControl != nil {
		return e.NewControl(port)
	}
	baud := e.Baud
	if baud == 0 {
		baud = DefaultBaudRate
	}
	return bridge.NewStreamControl(NewLink(port, baud))
}

// Enumerate implements enumerate.Enumerator. Ports are probed one at a
// time.
func (e *Enumerator) Enumerate(ctx context.Context, listener enumerate.Listener, list board.List) error {
	ports, err := e.ports()
	if err != nil {
		return err
	}
	glog.V(2).Infof("serial: probing %v", ports)
	candidates := make([]enumerate.Candidate, 0, len(ports))
	for _, port := range ports {
		port := port
		candidates = append(candidates, &enumerate.VendorCandidate{
			Addr:       port,
			NewControl: func() *bridge.VendorControl { return e.control(port) },
		})
	}
	return enumerate.Scan(ctx, candidates, list, listener, 1)
}
