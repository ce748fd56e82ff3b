package ethernet

import (
	"context"
	"encoding/binary"
	"net"

	"github.com/golang/glog"
	"github.com/robotalks/strata.go/pkg/board"
	"github.com/robotalks/strata.go/pkg/bridge"
	"github.com/robotalks/strata.go/pkg/enumerate"
	"github.com/robotalks/strata.go/pkg/link"
	"github.com/robotalks/strata.go/pkg/status"
)

// Defaults of the Enumerator.
const (
	DefaultParallel   = 32
	DefaultSubnetSize = 1024
)

// Source lists the hosts to probe.
type Source interface {
	Hosts(ctx context.Context) ([]string, error)
}

// StaticSource is a fixed host list.
type StaticSource []string

// Hosts implements Source.
func (s StaticSource) Hosts(context.Context) ([]string, error) {
	return s, nil
}

// SubnetSource expands an IPv4 CIDR into its host addresses.
type SubnetSource struct {
	CIDR string
	// Max bounds the number of hosts, DefaultSubnetSize if zero.
	Max int
}

// Hosts implements Source. Network and broadcast addresses are skipped
// for prefixes shorter than /31.
func (s SubnetSource) Hosts(context.Context) ([]string, error) {
	_, ipnet, err := net.ParseCIDR(s.CIDR)
	if err != nil {
		return nil, status.Wrap(status.KindConnection, status.CodeInvalidParameter, "subnet", err)
	}
	ip4 := ipnet.IP.To4()
	if ip4 == nil {
		return nil, status.Errorf(status.KindConnection, status.CodeNotSupported, "subnet", "%s is not IPv4", s.CIDR)
	}
	ones, bits := ipnet.Mask.Size()
	size := uint64(1) << uint(bits-ones)
	max := s.Max
	if max <= 0 {
		max = DefaultSubnetSize
	}
	first, last := uint64(0), size-1
	if size > 2 {
		first, last = 1, size-2
	}
	if last-first+1 > uint64(max) {
		return nil, status.Errorf(status.KindConnection, status.CodeOutOfBounds, "subnet", "%s has more than %d hosts", s.CIDR, max)
	}
	base := binary.BigEndian.Uint32(ip4)
	hosts := make([]string, 0, last-first+1)
	for i := first; i <= last; i++ {
		var ip [4]byte
		binary.BigEndian.PutUint32(ip[:], base+uint32(i))
		hosts = append(hosts, net.IP(ip[:]).String())
	}
	return hosts, nil
}

// Enumerator probes the hosts of Source for boards.
type Enumerator struct {
	Source Source
	// UDP selects UDP for the control path.
	UDP bool
	// NoData skips the data path when opening.
	NoData    bool
	Parallel  int
	QueueSize int
	Metrics   *bridge.Metrics

	// NewControl and NewDataLink override the transports, for tests.
	NewControl  func(host string) *bridge.VendorControl
	NewDataLink func(host string) link.Link
}

var _ enumerate.Enumerator = &Enumerator{}

func (e *Enumerator) control(host string) *bridge.VendorControl {
	if e.NewControl != nil {
		return e.NewControl(host)
	}
	if e.UDP {
		return bridge.NewStreamControl(NewUDPLink(host))
	}
	return bridge.NewStreamControl(NewTCPLink(host))
}

func (e *Enumerator) dataLink(host string) link.Link {
	if e.NewDataLink != nil {
		return e.NewDataLink(host)
	}
	return NewDataLink(host)
}

// Candidate creates the candidate for host.
func (e *Enumerator) Candidate(host string) *enumerate.VendorCandidate {
	c := &enumerate.VendorCandidate{
		Addr:       host,
		NewControl: func() *bridge.VendorControl { return e.control(host) },
		QueueSize:  e.QueueSize,
		Metrics:    e.Metrics,
	}
	if !e.NoData {
		c.NewDataLink = func() link.Link { return e.dataLink(host) }
	}
	return c
}

// Enumerate implements enumerate.Enumerator.
func (e *Enumerator) Enumerate(ctx context.Context, listener enumerate.Listener, list board.List) error {
	hosts, err := e.Source.Hosts(ctx)
	if err != nil {
		return err
	}
	glog.V(2).Infof("ethernet: probing %d hosts", len(hosts))
	candidates := make([]enumerate.Candidate, 0, len(hosts))
	for _, host := range hosts {
		candidates = append(candidates, e.Candidate(host))
	}
	parallel := e.Parallel
	if parallel <= 0 {
		parallel = DefaultParallel
	}
	return enumerate.Scan(ctx, candidates, list, listener, parallel)
}
