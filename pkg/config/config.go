// Package config holds the settings of the strata commands: where to look
// for boards and where to forward their data.
package config

import (
	"bytes"
	"flag"
	"os"
	"strings"

	"github.com/denisbrodbeck/machineid"
	"github.com/robotalks/strata.go/pkg/bridge"
	"github.com/robotalks/strata.go/pkg/enumerate"
	"github.com/robotalks/strata.go/pkg/platform/ethernet"
	"github.com/robotalks/strata.go/pkg/platform/serial"
	"github.com/robotalks/strata.go/pkg/platform/usb"
	"github.com/robotalks/strata.go/pkg/platform/uvc"
	"github.com/robotalks/strata.go/pkg/platform/wiggler"
	"github.com/robotalks/strata.go/pkg/status"
	"gopkg.in/yaml.v3"
)

// Ethernet selects the hosts probed over the network.
type Ethernet struct {
	Hosts    []string `yaml:"hosts,omitempty"`
	Subnets  []string `yaml:"subnets,omitempty"`
	UDP      bool     `yaml:"udp,omitempty"`
	Parallel int      `yaml:"parallel,omitempty"`
}

// Serial selects the serial ports probed.
type Serial struct {
	// Ports are probed instead of the platform default patterns.
	Ports []string `yaml:"ports,omitempty"`
	Baud  int      `yaml:"baud,omitempty"`
	// Disabled skips serial ports.
	Disabled bool `yaml:"disabled,omitempty"`
}

// Config is the command configuration.
type Config struct {
	// MQTTURL is mqtt://host:port/topic-prefix, no forwarding when empty.
	MQTTURL  string   `yaml:"mqtt,omitempty"`
	ClientID string   `yaml:"clientId,omitempty"`
	Listen   string   `yaml:"listen,omitempty"`
	Ethernet Ethernet `yaml:"ethernet,omitempty"`
	Serial   Serial   `yaml:"serial,omitempty"`
	USB      bool     `yaml:"usb,omitempty"`
	UVC      bool     `yaml:"uvc,omitempty"`
	Wiggler  bool     `yaml:"wiggler,omitempty"`

	QueueSize int `yaml:"queueSize,omitempty"`

	// File is the YAML file Resolve loads.
	File string `yaml:"-"`
}

var defaultConfig = Config{
	Listen:    ":9110",
	Serial:    Serial{Baud: serial.DefaultBaudRate},
	USB:       true,
	UVC:       true,
	QueueSize: bridge.DefaultQueueSize,
}

func init() {
	applyEnv(&defaultConfig, os.Getenv)
	defaultConfig.ClientID = "strata-" + HostID()
}

func applyEnv(c *Config, getenv func(string) string) {
	if val := getenv("STRATA_MQTT_URL"); val != "" {
		c.MQTTURL = val
	}
	if val := getenv("STRATA_SUBNET"); val != "" {
		c.Ethernet.Subnets = splitList(val)
	}
	if val := getenv("STRATA_CONFIG"); val != "" {
		c.File = val
	}
}

// HostID identifies this machine, derived from the machine id without
// exposing it.
func HostID() string {
	id, err := machineid.ProtectedID("strata")
	if err != nil {
		if name, err := os.Hostname(); err == nil {
			return name
		}
		return "unknown"
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

// Default returns the process wide config.
func Default() *Config {
	return &defaultConfig
}

// SetupFlags binds the process wide config to the command line flags.
func SetupFlags() {
	defaultConfig.Bind(flag.CommandLine)
}

// Bind registers flags for c on fs.
func (c *Config) Bind(fs *flag.FlagSet) {
	fs.StringVar(&c.File, "config", c.File, "YAML configuration file")
	fs.StringVar(&c.MQTTURL, "mqtt", c.MQTTURL, "MQTT broker URL to forward frames to")
	fs.StringVar(&c.ClientID, "client-id", c.ClientID, "MQTT client id")
	fs.StringVar(&c.Listen, "listen", c.Listen, "HTTP address for metrics and websocket frames")
	fs.Var((*listFlag)(&c.Ethernet.Hosts), "hosts", "Comma separated board hosts")
	fs.Var((*listFlag)(&c.Ethernet.Subnets), "subnet", "Comma separated IPv4 subnets to scan")
	fs.BoolVar(&c.Ethernet.UDP, "udp", c.Ethernet.UDP, "Use UDP for the Ethernet control path")
	fs.Var((*listFlag)(&c.Serial.Ports), "serial", "Comma separated serial ports")
	fs.IntVar(&c.Serial.Baud, "baud", c.Serial.Baud, "Serial baud rate")
	fs.BoolVar(&c.USB, "usb", c.USB, "Enumerate USB devices")
	fs.BoolVar(&c.UVC, "uvc", c.UVC, "Enumerate UVC devices")
	fs.BoolVar(&c.Wiggler, "wiggler", c.Wiggler, "Enumerate debugger probes")
	fs.IntVar(&c.QueueSize, "queue", c.QueueSize, "Frames buffered per board")
}

// Resolve loads File when set. Flags set on fs take precedence over the
// file.
func (c *Config) Resolve(fs *flag.FlagSet) error {
	if c.File == "" {
		return nil
	}
	set := make(map[string]string)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = f.Value.String() })
	if err := c.Load(c.File); err != nil {
		return err
	}
	for name, val := range set {
		if err := fs.Set(name, val); err != nil {
			return status.Wrap(status.KindUnknown, status.CodeInvalidParameter, "flag "+name, err)
		}
	}
	return nil
}

// Load merges the YAML file at path into c. Unknown keys are rejected.
func (c *Config) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return status.Wrap(status.KindUnknown, status.CodeNotAvailable, "config", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return status.Wrap(status.KindUnknown, status.CodeInvalidParameter, "config "+path, err)
	}
	return nil
}

// Enumerators creates the enumerators selected by c.
func (c *Config) Enumerators(metrics *bridge.Metrics) []enumerate.Enumerator {
	var list []enumerate.Enumerator
	var ethernetSources []ethernet.Source
	if len(c.Ethernet.Hosts) > 0 {
		ethernetSources = append(ethernetSources, ethernet.StaticSource(c.Ethernet.Hosts))
	}
	for _, subnet := range c.Ethernet.Subnets {
		ethernetSources = append(ethernetSources, ethernet.SubnetSource{CIDR: subnet})
	}
	for _, src := range ethernetSources {
		list = append(list, &ethernet.Enumerator{
			Source:    src,
			UDP:       c.Ethernet.UDP,
			Parallel:  c.Ethernet.Parallel,
			QueueSize: c.QueueSize,
			Metrics:   metrics,
		})
	}
	if !c.Serial.Disabled {
		list = append(list, &serial.Enumerator{Ports: c.Serial.Ports, Baud: c.Serial.Baud})
	}
	if c.USB {
		list = append(list, &usb.Enumerator{QueueSize: c.QueueSize, Metrics: metrics})
	}
	if c.UVC {
		list = append(list, &uvc.Enumerator{})
	}
	if c.Wiggler {
		list = append(list, &wiggler.Enumerator{})
	}
	return list
}

type listFlag []string

func (l *listFlag) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(*l, ",")
}

func (l *listFlag) Set(val string) error {
	*l = splitList(val)
	return nil
}

func splitList(val string) []string {
	var items []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
