// Package ethernet reaches boards over TCP and UDP.
package ethernet

import (
	"errors"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/robotalks/strata.go/pkg/link"
	"github.com/robotalks/strata.go/pkg/status"
)

// DefaultDialTimeout bounds connection setup.
const DefaultDialTimeout = 3 * time.Second

// HostPort adds port to host unless it carries one.
func HostPort(host string, port int) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

type conn struct {
	network     string
	addr        string
	dialTimeout time.Duration
	lock        sync.Mutex
	conn        net.Conn
}

func (c *conn) open() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.conn != nil {
		return nil
	}
	timeout := c.dialTimeout
	if timeout == 0 {
		timeout = DefaultDialTimeout
	}
	d := net.Dialer{Timeout: timeout}
	nc, err := d.Dial(c.network, c.addr)
	if err != nil {
		return link.ConnectionError("dial "+c.addr, err)
	}
	c.conn = nc
	return nil
}

func (c *conn) close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return link.ConnectionError("close", err)
}

func (c *conn) get() (net.Conn, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.conn == nil {
		return nil, status.ErrNotOpen
	}
	return c.conn, nil
}

func (c *conn) send(p []byte) error {
	nc, err := c.get()
	if err != nil {
		return err
	}
	for len(p) > 0 {
		n, err := nc.Write(p)
		if err != nil {
			return link.ConnectionError("send", err)
		}
		p = p[n:]
	}
	return nil
}

func (c *conn) receive(p []byte, timeout time.Duration) (int, error) {
	nc, err := c.get()
	if err != nil {
		return 0, err
	}
	if err := nc.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, link.ConnectionError("receive", err)
	}
	n, err := nc.Read(p)
	if n > 0 {
		return n, nil
	}
	return 0, link.ConnectionError("receive", err)
}

func (c *conn) clearInput() error {
	var buf [1024]byte
	for {
		if _, err := c.receive(buf[:], time.Millisecond); err != nil {
			if errors.Is(err, status.ErrTimeout) {
				return nil
			}
			return err
		}
	}
}

// TCPLink is a stream link over TCP.
type TCPLink struct {
	conn
}

var _ link.Link = &TCPLink{}

// NewTCPLink creates a link to addr, EthControlPort unless addr has a
// port.
func NewTCPLink(addr string) *TCPLink {
	return &TCPLink{conn: conn{network: "tcp", addr: HostPort(addr, link.EthControlPort)}}
}

// Open implements link.Link.
func (l *TCPLink) Open() error { return l.open() }

// Close implements link.Link.
func (l *TCPLink) Close() error { return l.close() }

// Send implements link.Link.
func (l *TCPLink) Send(p []byte) error { return l.send(p) }

// Receive implements link.Link.
func (l *TCPLink) Receive(p []byte, timeout time.Duration) (int, error) {
	return l.receive(p, timeout)
}

// MaxPayload implements link.Link.
func (l *TCPLink) MaxPayload() int { return link.EthTCPMaxPayload }

// ClearInput implements link.Link.
func (l *TCPLink) ClearInput() error { return l.clearInput() }

// UDPLink is a datagram link over UDP.
type UDPLink struct {
	conn
}

var _ link.Datagram = &UDPLink{}

// NewUDPLink creates a link to addr, EthControlPort unless addr has a
// port.
func NewUDPLink(addr string) *UDPLink {
	return &UDPLink{conn: conn{network: "udp", addr: HostPort(addr, link.EthControlPort)}}
}


// Open implements link.Link.
func (l *UDPLink) Open() error { return l.open() }

// Close implements link.Link.
func (l *UDPLink) Close() error { return l.close() }

// Send implements link.Link.
func (l *UDPLink) Send(p []byte) error {
	if len(p) > link.EthUDPMaxPayload {
		return status.Connection("send", uint16(syscall.EMSGSIZE), nil)
	}
	return l.send(p)
}

// Receive implements link.Link. The rest of a datagram larger than p is
// discarded.
func (l *UDPLink) Receive(p []byte, timeout time.Duration) (int, error) {
	return l.receive(p, timeout)
}

// MaxPayload implements link.Link.
func (l *UDPLink) MaxPayload() int { return link.EthUDPMaxPayload }

// ClearInput implements link.Link.
func (l *UDPLink) ClearInput() error { return l.clearInput() }

// IsDatagram implements link.Datagram.
func (l *UDPLink) IsDatagram() bool { return true }

// DataLink receives the frames a board streams to EthDataPort of the
// host. The board sends to the port regardless of the control
// connection, so the link listens there and keeps only datagrams from the
// board address.
type DataLink struct {
	// Local is the listen address, ":55057" unless set before Open.
	Local string

	board string
	lock  sync.Mutex
	pc    net.PacketConn
	peer  *net.UDPAddr
}

var _ link.Datagram = &DataLink{}

// NewDataLink creates the UDP link receiving frames from host.
func NewDataLink(host string) *DataLink {
	return &DataLink{
		Local: ":" + strconv.Itoa(link.EthDataPort),
		board: HostPort(host, link.EthDataPort),
	}
}

// Open implements link.Link.
func (l *DataLink) Open() error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.pc != nil {
		return nil
	}
	peer, err := net.ResolveUDPAddr("udp", l.board)
	if err != nil {
		return link.ConnectionError("resolve "+l.board, err)
	}
	pc, err := net.ListenPacket("udp", l.Local)
	if err != nil {
		return link.ConnectionError("listen "+l.Local, err)
	}
	l.pc, l.peer = pc, peer
	return nil
}

// Close implements link.Link.
func (l *DataLink) Close() error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.pc == nil {
		return nil
	}
	err := l.pc.Close()
	l.pc = nil
	return link.ConnectionError("close", err)
}

// LocalAddr is the bound address, nil before Open.
func (l *DataLink) LocalAddr() net.Addr {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.pc == nil {
		return nil
	}
	return l.pc.LocalAddr()
}

func (l *DataLink) get() (net.PacketConn, *net.UDPAddr, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.pc == nil {
		return nil, nil, status.ErrNotOpen
	}
	return l.pc, l.peer, nil
}

// Send implements link.Link. The datagram goes to the board data port.
func (l *DataLink) Send(p []byte) error {
	if len(p) > link.EthUDPMaxPayload {
		return status.Connection("send", uint16(syscall.EMSGSIZE), nil)
	}
	pc, peer, err := l.get()
	if err != nil {
		return err
	}
	_, err = pc.WriteTo(p, peer)
	return link.ConnectionError("send", err)
}

// Receive implements link.Link. Datagrams from other hosts are skipped,
// the rest of a datagram larger than p is discarded.
func (l *DataLink) Receive(p []byte, timeout time.Duration) (int, error) {
	pc, peer, err := l.get()
	if err != nil {
		return 0, err
	}
	if err := pc.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, link.ConnectionError("receive", err)
	}
	for {
		n, from, err := pc.ReadFrom(p)
		if err != nil {
			return 0, link.ConnectionError("receive", err)
		}
		if ua, ok := from.(*net.UDPAddr); ok && ua.IP.Equal(peer.IP) {
			return n, nil
		}
	}
}

// MaxPayload implements link.Link.
func (l *DataLink) MaxPayload() int { return link.EthUDPMaxPayload }

// ClearInput implements link.Link.
func (l *DataLink) ClearInput() error {
	var buf [1024]byte
	for {
		if _, err := l.Receive(buf[:], time.Millisecond); err != nil {
			if errors.Is(err, status.ErrTimeout) {
				return nil
			}
			return err
		}
	}
}

// IsDatagram implements link.Datagram.
func (l *DataLink) IsDatagram() bool { return true }
