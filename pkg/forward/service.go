// Package forward opens the discovered boards and forwards their radar
// frames to MQTT and websocket clients.
package forward

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	xws "golang.org/x/net/websocket"

	"github.com/robotalks/strata.go/pkg/board"
	"github.com/robotalks/strata.go/pkg/boards"
	"github.com/robotalks/strata.go/pkg/bridge"
	"github.com/robotalks/strata.go/pkg/component"
	"github.com/robotalks/strata.go/pkg/config"
	"github.com/robotalks/strata.go/pkg/enumerate"
	"github.com/robotalks/strata.go/pkg/framework"
	"github.com/robotalks/strata.go/pkg/stream"
	"github.com/robotalks/strata.go/pkg/stream/mqtt"
	"github.com/robotalks/strata.go/pkg/stream/websocket"
)

// DiscoverTimeout bounds the initial discovery.
const DiscoverTimeout = 10 * time.Second

// Service forwards the frames of every board found at start.
type Service struct {
	Config *config.Config
	List   board.List
	// Discover defaults to the config enumerators.
	Discover func(ctx context.Context) ([]*board.Descriptor, error)

	Metrics  *bridge.Metrics
	Registry *prometheus.Registry
	Sink     *websocket.Sink
	Queue    *mqtt.Queue

	instances []*board.Instance
	subs      []*mqtt.Subscription
}

// New creates a Service with its metrics registered.
func New(conf *config.Config) *Service {
	s := &Service{
		Config:   conf,
		List:     boards.DefaultList,
		Metrics:  bridge.NewMetrics("strata"),
		Registry: prometheus.NewRegistry(),
		Sink:     websocket.NewSink(),
	}
	s.Registry.MustRegister(s.Metrics, collectors.NewGoCollector())
	return s
}

// BoardName names the topics of inst: the board UUID when it reports one.
func BoardName(inst *board.Instance, index int) string {
	if ctl := inst.Bridge().Control(); ctl != nil {
		if id, err := bridge.ReadUUID(ctl); err == nil {
			return id.String()
		}
	}
	entry := inst.Entry()
	return fmt.Sprintf("%04x-%04x-%d", entry.VID, entry.PID, index)
}

// Handler serves /metrics and the /frames websocket.
func (s *Service) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}))
	mux.Handle("/frames", xws.Handler(s.Sink.Handler(ctx)))
	return mux
}

func (s *Service) connect(ctx context.Context) error {
	if s.Queue != nil || s.Config.MQTTURL == "" {
		return nil
	}
	opts, prefix, err := mqtt.ClientOptionsFromURL(s.Config.MQTTURL)
	if err != nil {
		return err
	}
	if opts.ClientID == "" {
		opts.SetClientID(s.Config.ClientID)
	}
	s.Queue = mqtt.NewQueue(opts, prefix)
	return s.Queue.Connect(ctx)
}

func (s *Service) discover(ctx context.Context) ([]*board.Descriptor, error) {
	ctx, cancel := context.WithTimeout(ctx, DiscoverTimeout)
	defer cancel()
	if s.Discover != nil {
		return s.Discover(ctx)
	}
	return enumerate.Discover(ctx, s.List, s.Config.Enumerators(s.Metrics)...)
}

// Start opens the boards and starts a forwarder per radar module on
// runner. Boards failing to open are skipped.
func (s *Service) Start(ctx context.Context, runner *framework.Runner) error {
	if err := s.connect(ctx); err != nil {
		return err
	}
	found, err := s.discover(ctx)
	if err != nil {
		glog.Warningf("discover: %v", err)
	}
	host := config.HostID()
	for n, d := range found {
		inst, err := enumerate.OpenWithBackoff(ctx, d, nil)
		if err != nil {
			glog.Errorf("open %s: %v", d, err)
			d.Release()
			continue
		}
		s.instances = append(s.instances, inst)
		name := BoardName(inst, n)
		for _, m := range inst.Board().Modules() {
			module, ok := m.(*component.RadarModule)
			if !ok {
				continue
			}
			frames, err := module.Frames()
			if err != nil {
				glog.Infof("%s: %s %d has no data path", name, m.Type(), m.ID())
				continue
			}
			sinks := []stream.Sink{s.Sink}
			if s.Queue != nil {
				sinks = append(sinks, &mqtt.Publisher{Queue: s.Queue})
				s.subs = append(s.subs, (&mqtt.Commands{Queue: s.Queue, Board: name, Switch: module}).Subscribe())
			}
			runner.Go(&stream.Forwarder{Board: name, Host: host, Queue: frames, Sinks: sinks})
			// all modules share the bridge queue
			break
		}
	}
	glog.Infof("forwarding %d boards", len(s.instances))
	return nil
}

// Boards returns the opened boards.
func (s *Service) Boards() []*board.Instance {
	return s.instances
}

// Close closes the boards and the broker connection.
func (s *Service) Close() error {
	var errs framework.AggregatedError
	for _, sub := range s.subs {
		errs.Add(sub.Close())
	}
	s.subs = nil
	for _, inst := range s.instances {
		errs.Add(inst.Close())
	}
	s.instances = nil
	if s.Queue != nil {
		errs.Add(s.Queue.Close())
	}
	return errs.Aggregate()
}

// Serve runs the HTTP server until ctx is done.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler}
	return framework.RunWithContextCancel(ctx, func() { srv.Close() }, func() error {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
}
