package bridge

import (
	"math"
	"time"

	"github.com/robotalks/strata.go/pkg/bridge/protocol"
	"github.com/robotalks/strata.go/pkg/link"
	"github.com/robotalks/strata.go/pkg/status"
)

// NewStreamControl creates a Control framing requests over a byte link
// (TCP, UDP or serial). Frames are split into MaxPayload sized sends.
func NewStreamControl(l link.Link) *VendorControl {
	return newVendorControl(&streamTransport{link: l, timeout: link.DefaultTimeout})
}

// NewUsbControl creates a Control over a vendor control endpoint. The
// setup stage carries the request header.
func NewUsbControl(l link.ControlLink) *VendorControl {
	return newVendorControl(&usbTransport{link: l})
}

// NewPropertyControl creates a Control over a UVC extension unit. Each
// request and its response are exchanged under one extension unit lock.
func NewPropertyControl(l link.PropertyLink) *VendorControl {
	return newVendorControl(&propertyTransport{link: l})
}

type streamTransport struct {
	link    link.Link
	timeout time.Duration
	scratch []byte
	pending []byte
}

func (s *streamTransport) open() error {
	if err := s.link.Open(); err != nil {
		return link.ConnectionError("open", err)
	}
	s.scratch = make([]byte, s.link.MaxPayload())
	return nil
}

func (s *streamTransport) close() error {
	return s.link.Close()
}

func (s *streamTransport) maxTransfer() int {
	return math.MaxUint16
}

func (s *streamTransport) write(op string, h protocol.RequestHeader, data []byte) error {
	if err := s.send(protocol.EncodeRequest(h, data)); err != nil {
		return err
	}
	return s.response(op, nil)
}

func (s *streamTransport) read(op string, h protocol.RequestHeader, buf []byte) error {
	if err := s.send(protocol.EncodeRequest(h, nil)); err != nil {
		return err
	}
	return s.response(op, buf)
}

func (s *streamTransport) send(frame []byte) error {
	s.pending = nil
	max := s.link.MaxPayload()
	for len(frame) > 0 {
		n := len(frame)
		if n > max {
			n = max
		}
		if err := s.link.Send(frame[:n]); err != nil {
			return link.ConnectionError("send", err)
		}
		frame = frame[n:]
	}
	return nil
}

// receive fills p, reading as many link packets as needed.
func (s *streamTransport) receive(p []byte) error {
	for n := 0; n < len(p); {
		if len(s.pending) == 0 {
			m, err := s.link.Receive(s.scratch, s.timeout)
			if err != nil {
				return link.ConnectionError("receive", err)
			}
			if m == 0 {
				return status.Timeout(status.KindConnection, "receive", s.timeout)
			}
			s.pending = s.scratch[:m]
		}
		c := copy(p[n:], s.pending)
		s.pending = s.pending[c:]
		n += c
	}
	return nil
}

func (s *streamTransport) discard(n int) error {
	return s.receive(make([]byte, n))
}

func (s *streamTransport) response(op string, buf []byte) error {
	var hdr [protocol.ResponseHeaderSize]byte
	if err := s.receive(hdr[:]); err != nil {
		return err
	}
	h, _ := protocol.DecodeResponseHeader(hdr[:])
	return checkResponse(op, h, buf, s.receive, s.discard)
}

func checkResponse(op string, h protocol.ResponseHeader, buf []byte, receive func([]byte) error, discard func(int) error) error {
	if h.Status != status.CodeSuccess {
		discard(int(h.Length))
		return status.Protocol(op, h.Status)
	}
	if int(h.Length) > len(buf) {
		discard(int(h.Length))
		return status.Errorf(status.KindProtocol, status.CodeUnexpectedValue, op,
			"response length %d, expected %d", h.Length, len(buf))
	}
	if err := receive(buf[:h.Length]); err != nil {
		return err
	}
	if int(h.Length) < len(buf) {
		return status.Errorf(status.KindProtocol, status.CodeUnderflow, op,
			"received %d of %d bytes", h.Length, len(buf))
	}
	return nil
}

type usbTransport struct {
	link link.ControlLink
}

func (u *usbTransport) open() error {
	if err := u.link.Open(); err != nil {
		return link.ConnectionError("open", err)
	}
	return nil
}

func (u *usbTransport) close() error {
	return u.link.Close()
}

func (u *usbTransport) maxTransfer() int {
	return u.link.MaxPayload()
}

// write sends data in MaxPayload sized control transfers, all with the
// same setup stage.
func (u *usbTransport) write(op string, h protocol.RequestHeader, data []byte) error {
	setup := link.Setup{Request: h.Request, Value: h.Value, Index: h.Index}
	max := u.link.MaxPayload()
	for {
		n := len(data)
		if n > max {
			n = max
		}
		if err := u.link.VendorWrite(setup, data[:n]); err != nil {
			return u.deviceError(op, err)
		}
		data = data[n:]
		if len(data) == 0 {
			return nil
		}
	}
}

func (u *usbTransport) read(op string, h protocol.RequestHeader, buf []byte) error {
	setup := link.Setup{Request: h.Request, Value: h.Value, Index: h.Index}
	max := u.link.MaxPayload()
	for total := 0; ; {
		n := len(buf) - total
		if n > max {
			n = max
		}
		got, err := u.link.VendorRead(setup, buf[total:total+n])
		if err != nil {
			return u.deviceError(op, err)
		}
		total += got
		if got < n {
			return status.Errorf(status.KindProtocol, status.CodeUnderflow, op, "received %d of %d bytes", total, len(buf))
		}
		if total == len(buf) {
			return nil
		}
	}
}

// deviceError asks the device why a transfer stalled. The transfer error
// is returned if the device reports no status.
func (u *usbTransport) deviceError(op string, err error) error {
	var code [2]byte
	n, lastErr := u.link.VendorRead(link.Setup{Request: protocol.ReqLastError}, code[:])
	if lastErr == nil && n == len(code) {
		if c := status.Code(uint16(code[0]) | uint16(code[1])<<8); c != status.CodeSuccess {
			return status.Protocol(op, c)
		}
	}
	return link.ConnectionError(op, err)
}

type propertyTransport struct {
	link link.PropertyLink
	size int
}

func (p *propertyTransport) open() error {
	if err := p.link.Open(); err != nil {
		return link.ConnectionError("open", err)
	}
	size, err := p.link.PropertySize(protocol.PropertyRequest)
	if err != nil {
		p.link.Close()
		return link.ConnectionError("propertySize", err)
	}
	if size <= protocol.RequestHeaderSize {
		p.link.Close()
		return status.Errorf(status.KindConnection, status.CodeInvalidSize, "propertySize", "%d bytes", size)
	}
	p.size = size
	return nil
}

func (p *propertyTransport) close() error {
	return p.link.Close()
}

func (p *propertyTransport) maxTransfer() int {
	return math.MaxUint16
}

func (p *propertyTransport) write(op string, h protocol.RequestHeader, data []byte) error {
	p.link.Lock()
	defer p.link.Unlock()
	if err := p.request(protocol.EncodeRequest(h, data)); err != nil {
		return err
	}
	return p.response(op, nil)
}

func (p *propertyTransport) read(op string, h protocol.RequestHeader, buf []byte) error {
	p.link.Lock()
	defer p.link.Unlock()
	if err := p.request(protocol.EncodeRequest(h, nil)); err != nil {
		return err
	}
	return p.response(op, buf)
}

func (p *propertyTransport) request(frame []byte) error {
	chunk := make([]byte, p.size)
	for len(frame) > 0 {
		n := copy(chunk, frame)
		for i := n; i < len(chunk); i++ {
			chunk[i] = 0
		}
		if err := p.link.SetProperty(protocol.PropertyRequest, chunk); err != nil {
			return link.ConnectionError("setProperty", err)
		}
		frame = frame[n:]
	}
	return nil
}

func (p *propertyTransport) response(op string, buf []byte) error {
	chunk := make([]byte, p.size)
	if err := p.link.GetProperty(protocol.PropertyResponse, chunk); err != nil {
		return link.ConnectionError("getProperty", err)
	}
	h, _ := protocol.DecodeResponseHeader(chunk)
	pending := chunk[protocol.ResponseHeaderSize:]
	receive := func(b []byte) error {
		for n := 0; n < len(b); {
			if len(pending) == 0 {
				if err := p.link.GetProperty(protocol.PropertyResponse, chunk); err != nil {
					return link.ConnectionError("getProperty", err)
				}
				pending = chunk
			}
			c := copy(b[n:], pending)
			pending = pending[c:]
			n += c
		}
		return nil
	}
	discard := func(n int) error {
		return receive(make([]byte, n))
	}
	return checkResponse(op, h, buf, receive, discard)
}
