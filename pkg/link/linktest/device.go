// Package linktest provides in-memory devices and link doubles for tests.
package linktest

import (
	"encoding/binary"
	"sync"
	"syscall"
	"time"

	"github.com/robotalks/strata.go/pkg/bridge/protocol"
	"github.com/robotalks/strata.go/pkg/link"
	"github.com/robotalks/strata.go/pkg/status"
)

// Handler serves one decoded request. For read requests the returned
// payload is the response data.
type Handler func(h protocol.RequestHeader, payload []byte) (status.Code, []byte)

// Request is a request recorded by a Device.
type Request struct {
	Header  protocol.RequestHeader
	Payload []byte
}

// Device is a scripted device speaking the vendor command protocol.
type Device struct {
	handlers  map[byte]Handler
	requests  []Request
	lastError status.Code
	lock      sync.Mutex
}

// NewDevice creates a Device answering ReqLastError.
func NewDevice() *Device {
	return &Device{handlers: make(map[byte]Handler)}
}

// Handle installs the handler for a request code.
func (d *Device) Handle(request byte, handler Handler) *Device {
	d.lock.Lock()
	d.handlers[request] = handler
	d.lock.Unlock()
	return d
}

// HandleBoardInfo answers ReqBoardInfo with identity and version words.
func (d *Device) HandleBoardInfo(vid, pid uint16, name string, version []uint16) *Device {
	return d.Handle(protocol.ReqBoardInfo, func(h protocol.RequestHeader, _ []byte) (status.Code, []byte) {
		switch h.Value {
		case protocol.BoardInfoValue:
			b := make([]byte, h.Length)
			binary.LittleEndian.PutUint16(b, vid)
			binary.LittleEndian.PutUint16(b[2:], pid)
			copy(b[4:], name)
			return status.CodeSuccess, b
		case protocol.VersionInfoValue:
			b := make([]byte, 2*len(version))
			for i, w := range version {
				binary.LittleEndian.PutUint16(b[2*i:], w)
			}
			return status.CodeSuccess, fit(b, h.Length)
		}
		return status.CodeInvalidParameter, nil
	})
}

// Requests returns the recorded requests.
func (d *Device) Requests() []Request {
	d.lock.Lock()
	defer d.lock.Unlock()
	return append([]Request(nil), d.requests...)
}

// RequestsOf returns the recorded requests with the given code.
func (d *Device) RequestsOf(request byte) []Request {
	var reqs []Request
	for _, r := range d.Requests() {
		if r.Header.Request == request {
			reqs = append(reqs, r)
		}
	}
	return reqs
}

// Reset clears the recorded requests.
func (d *Device) Reset() {
	d.lock.Lock()
	d.requests = nil
	d.lock.Unlock()
}

// Serve processes one request and returns status and response payload.
func (d *Device) Serve(h protocol.RequestHeader, payload []byte) (status.Code, []byte) {
	d.lock.Lock()
	if h.Request == protocol.ReqLastError {
		code := d.lastError
		d.lastError = status.CodeSuccess
		d.lock.Unlock()
		return status.CodeSuccess, []byte{byte(code), byte(code >> 8)}
	}
	d.requests = append(d.requests, Request{Header: h, Payload: append([]byte(nil), payload...)})
	handler := d.handlers[h.Request]
	d.lock.Unlock()
	if handler == nil {
		return d.fail(status.CodeNotImplemented)
	}
	code, resp := handler(h, payload)
	if code != status.CodeSuccess {
		return d.fail(code)
	}
	if !h.IsWrite() {
		resp = fit(resp, h.Length)
	}
	return code, resp
}

func (d *Device) fail(code status.Code) (status.Code, []byte) {
	d.lock.Lock()
	d.lastError = code
	d.lock.Unlock()
	return code, nil
}

func fit(b []byte, n uint16) []byte {
	if len(b) > int(n) {
		return b[:n]
	}
	return b
}

// StreamLink returns a stream link attached to the device.
func (d *Device) StreamLink(maxPayload int) *StreamLink {
	return &StreamLink{Device: d, Max: maxPayload}
}

// StreamLink is an in-memory link.Link feeding a Device.
type StreamLink struct {
	Device *Device
	Max    int
	// Datagram makes Receive return one response message per call.
	Datagram bool

	Sends  int
	opened bool
	in     []byte
	out    [][]byte
	lock   sync.Mutex
}

// Open implements link.Link.
func (l *StreamLink) Open() error {
	l.lock.Lock()
	l.opened = true
	l.lock.Unlock()
	return nil
}

// Close implements link.Link.
func (l *StreamLink) Close() error {
	l.lock.Lock()
	l.opened = false
	l.lock.Unlock()
	return nil
}

// IsDatagram implements link.Datagram.
func (l *StreamLink) IsDatagram() bool {
	return l.Datagram
}

// MaxPayload implements link.Link.
func (l *StreamLink) MaxPayload() int {
	return l.Max
}

// ClearInput implements link.Link.
func (l *StreamLink) ClearInput() error {
	l.lock.Lock()
	l.out = nil
	l.lock.Unlock()
	return nil
}

// Send implements link.Link.
func (l *StreamLink) Send(p []byte) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if !l.opened {
		return status.ErrNotOpen
	}
	if len(p) > l.Max {
		return status.Connection("send", uint16(syscall.EMSGSIZE), nil)
	}
	l.Sends++
	l.in = append(l.in, p...)
	for len(l.in) >= protocol.RequestHeaderSize {
		h, err := protocol.DecodeRequestHeader(l.in)
		if err != nil {
			return err
		}
		size := protocol.RequestHeaderSize
		if h.IsWrite() {
			size += int(h.Length)
		}
		if len(l.in) < size {
			break
		}
		payload := l.in[protocol.RequestHeaderSize:size]
		code, resp := l.Device.Serve(h, payload)
		msg := protocol.EncodeResponse(code, resp)
		for l.Datagram && len(msg) > l.Max {
			l.out = append(l.out, msg[:l.Max])
			msg = msg[l.Max:]
		}
		l.out = append(l.out, msg)
		l.in = l.in[size:]
	}
	return nil
}

// Receive implements link.Link.
func (l *StreamLink) Receive(p []byte, timeout time.Duration) (int, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if !l.opened {
		return 0, status.ErrNotOpen
	}
	if len(l.out) == 0 {
		return 0, status.Wrap(status.KindConnection, status.CodeTimeout, "receive", nil)
	}
	msg := l.out[0]
	n := copy(p, msg)
	if l.Datagram || n == len(msg) {
		l.out = l.out[1:]
	} else {
		l.out[0] = msg[n:]
	}
	return n, nil
}

var _ link.Datagram = &StreamLink{}
