// Package websocket serves forwarded frames to websocket clients.
package websocket

import (
	"context"
	"sync"

	"github.com/golang/glog"
	"github.com/robotalks/strata.go/pkg/stream"
	"github.com/robotalks/strata.go/pkg/stream/msgs"
	"golang.org/x/net/websocket"
)

// Sink broadcasts every frame as one binary message to the connected
// clients. Clients failing a send are dropped.
type Sink struct {
	lock    sync.Mutex
	clients map[*websocket.Conn]chan struct{}
}

var _ stream.Sink = &Sink{}

// NewSink creates a Sink.
func NewSink() *Sink {
	return &Sink{clients: make(map[*websocket.Conn]chan struct{})}
}

// Handler accepts clients. Each handler call blocks until its client is
// dropped or ctx is done, as the connection closes when it returns.
func (s *Sink) Handler(ctx context.Context) websocket.Handler {
	return func(conn *websocket.Conn) {
		done := make(chan struct{})
		s.lock.Lock()
		s.clients[conn] = done
		s.lock.Unlock()
		glog.V(1).Infof("websocket client %s", conn.Request().RemoteAddr)
		select {
		case <-done:
		case <-ctx.Done():
			s.drop(conn)
		}
	}
}

// Clients returns the number of connected clients.
func (s *Sink) Clients() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.clients)
}

func (s *Sink) drop(conn *websocket.Conn) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if done, ok := s.clients[conn]; ok {
		delete(s.clients, conn)
		close(done)
	}
}

// Write implements stream.Sink.
func (s *Sink) Write(_ context.Context, f *msgs.Frame) error {
	payload, err := f.Encode()
	if err != nil {
		return err
	}
	s.lock.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	s.lock.Unlock()
	for _, conn := range conns {
		if err := websocket.Message.Send(conn, payload); err != nil {
			glog.V(1).Infof("websocket client %s dropped: %v", conn.Request().RemoteAddr, err)
			s.drop(conn)
		}
	}
	return nil
}

// Receive reads one frame from a client connection.
func Receive(conn *websocket.Conn) (*msgs.Frame, error) {
	var payload []byte
	if err := websocket.Message.Receive(conn, &payload); err != nil {
		return nil, err
	}
	return msgs.DecodeFrame(payload)
}
