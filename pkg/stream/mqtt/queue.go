// Package mqtt publishes frames to and takes data commands from an MQTT
// broker.
package mqtt

import (
	"context"
	"net/url"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
	"github.com/robotalks/strata.go/pkg/status"
)

// Handler is called with the topic relative to the queue prefix.
type Handler func(topic string, payload []byte)

// Queue is an MQTT client scoped to a topic prefix.
type Queue struct {
	Client      paho.Client
	TopicPrefix string
	// OnConnect is called after every (re)connection.
	OnConnect func(*Queue)

	subsLock sync.RWMutex
	subs     map[string][]*Subscription
}

// Subscription is a handler registered on a topic filter.
type Subscription struct {
	queue   *Queue
	filter  string
	handler Handler
}

// MatchTopic reports whether topic matches filter with the + and #
// wildcards.
func MatchTopic(topic, filter string) bool {
	t, f := strings.Split(topic, "/"), strings.Split(filter, "/")
	for i, token := range f {
		if token == "#" && i+1 == len(f) {
			return true
		}
		if i >= len(t) {
			return false
		}
		if token != "+" && token != t[i] {
			return false
		}
	}
	return len(t) == len(f)
}

// ClientOptionsFromURL parses mqtt://[user[:password]@]host:port/prefix
// with an optional client-id query parameter. The prefix always ends
// with a slash when not empty.
func ClientOptionsFromURL(brokerURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, "", status.Wrap(status.KindConnection, status.CodeInvalidParameter, "brokerURL", err)
	}
	scheme := u.Scheme
	switch scheme {
	case "", "mqtt":
		scheme = "tcp"
	case "mqtts":
		scheme = "ssl"
	}
	prefix := strings.TrimPrefix(u.Path, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	opts := paho.NewClientOptions().
		AddBroker(scheme + "://" + u.Host).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}
	if id := u.Query().Get("client-id"); id != "" {
		opts.SetClientID(id)
	}
	return opts, prefix, nil
}

// NewQueue creates a Queue. The connection handlers of options are
// replaced.
func NewQueue(options *paho.ClientOptions, topicPrefix string) *Queue {
	q := &Queue{TopicPrefix: topicPrefix}
	options.SetOnConnectHandler(q.onConnect)
	options.SetConnectionLostHandler(q.onConnectionLost)
	q.Client = paho.NewClient(options)
	return q
}

// NewQueueFromURL creates a Queue from a broker URL.
func NewQueueFromURL(brokerURL string) (*Queue, error) {
	opts, prefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	return NewQueue(opts, prefix), nil
}

// Wait blocks until token completes or ctx is done.
func Wait(ctx context.Context, op string, token paho.Token) error {
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return status.Wrap(status.KindConnection, status.CodeFailed, op, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect connects to the broker.
func (q *Queue) Connect(ctx context.Context) error {
	return Wait(ctx, "connect", q.Client.Connect())
}

// Close implements io.Closer.
func (q *Queue) Close() error {
	q.Client.Disconnect(250)
	return nil
}

// Pub publishes payload at QoS 0.
func (q *Queue) Pub(topic string, payload []byte) paho.Token {
	return q.Client.Publish(q.TopicPrefix+topic, 0, false, payload)
}

// Sub registers handler on filter. The broker subscription is made for
// the first handler of a filter.
func (q *Queue) Sub(filter string, handler Handler) *Subscription {
	sub := &Subscription{queue: q, filter: filter, handler: handler}
	q.subsLock.Lock()
	if q.subs == nil {
		q.subs = make(map[string][]*Subscription)
	}
	first := len(q.subs[filter]) == 0
	q.subs[filter] = append(q.subs[filter], sub)
	q.subsLock.Unlock()
	if first && q.Client.IsConnected() {
		glog.V(2).Infof("SUB %q", q.TopicPrefix+filter)
		q.Client.Subscribe(q.TopicPrefix+filter, 0, q.dispatch)
	}
	return sub
}

// Close removes the handler, unsubscribing when it was the last one of
// its filter.
func (s *Subscription) Close() error {
	q := s.queue
	q.subsLock.Lock()
	subs := q.subs[s.filter]
	for i, sub := range subs {
		if sub == s {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	last := len(subs) == 0
	if last {
		delete(q.subs, s.filter)
	} else {
		q.subs[s.filter] = subs
	}
	q.subsLock.Unlock()
	if !last || !q.Client.IsConnected() {
		return nil
	}
	glog.V(2).Infof("UNSUB %q", q.TopicPrefix+s.filter)
	token := q.Client.Unsubscribe(q.TopicPrefix + s.filter)
	token.Wait()
	return token.Error()
}

func (q *Queue) resubscribe() {
	filters := make(map[string]byte)
	q.subsLock.RLock()
	for filter := range q.subs {
		filters[q.TopicPrefix+filter] = 0
	}
	q.subsLock.RUnlock()
	if len(filters) > 0 {
		q.Client.SubscribeMultiple(filters, q.dispatch)
	}
}

func (q *Queue) onConnect(paho.Client) {
	glog.Info("mqtt connected")
	q.resubscribe()
	if h := q.OnConnect; h != nil {
		h(q)
	}
}

func (q *Queue) onConnectionLost(_ paho.Client, err error) {
	glog.Warningf("mqtt connection lost: %v", err)
}

func (q *Queue) dispatch(_ paho.Client, msg paho.Message) {
	q.Dispatch(msg.Topic(), msg.Payload())
}

// Dispatch delivers a message received on the full topic to the
// matching handlers.
func (q *Queue) Dispatch(topic string, payload []byte) {
	if !strings.HasPrefix(topic, q.TopicPrefix) {
		return
	}
	topic = topic[len(q.TopicPrefix):]
	glog.V(3).Infof("RCV %q", topic)
	var handlers []Handler
	q.subsLock.RLock()
	for filter, subs := range q.subs {
		if MatchTopic(topic, filter) {
			for _, sub := range subs {
				handlers = append(handlers, sub.handler)
			}
		}
	}
	q.subsLock.RUnlock()
	for _, h := range handlers {
		h(topic, payload)
	}
}
