package component

import (
	"github.com/robotalks/strata.go/pkg/bridge"
	"github.com/robotalks/strata.go/pkg/bridge/protocol"
	"github.com/robotalks/strata.go/pkg/status"
)

// Module is a board function built from several components.
type Module interface {
	Component
}

// RadarModule streams the data of one radar front-end. Configuration is
// done by the firmware, frames arrive on the bridge data queue.
type RadarModule struct {
	remote Remote
	radar  Radar
	data   bridge.Data
}

// NewRadarModule creates the module driving radar. data may be nil when
// the transport has no data path.
func NewRadarModule(c bridge.Control, data bridge.Data, radar Radar, id uint8) *RadarModule {
	remote := NewRemote(c, ModuleTypeRadar, id, InterfaceFunction)
	remote.Request = protocol.ReqModule
	return &RadarModule{remote: remote, radar: radar, data: data}
}

// Type implements Component.
func (m *RadarModule) Type() TypeID {
	return ModuleTypeRadar
}

// ID implements Component.
func (m *RadarModule) ID() uint8 {
	return m.remote.ID
}

// Radar returns the front-end of the module.
func (m *RadarModule) Radar() Radar {
	return m.radar
}

// Configure sends the front-end configuration and sets up the data path
// for its data index.
func (m *RadarModule) Configure(props bridge.DataProperties, settings []byte, config []byte) error {
	if err := m.remote.Call(FnModuleConfigure, config...); err != nil {
		return err
	}
	if m.data == nil {
		return nil
	}
	index, err := m.radar.DataIndex()
	if err != nil {
		return err
	}
	return m.data.Configure(index, props, settings)
}

// StartData starts the data path, then the module.
func (m *RadarModule) StartData() error {
	if m.data != nil {
		index, err := m.radar.DataIndex()
		if err != nil {
			return err
		}
		if err := m.data.Start(index); err != nil {
			return err
		}
	}
	return m.remote.Call(FnModuleStartData)
}

// StopData stops the module, then the data path.
func (m *RadarModule) StopData() error {
	if err := m.remote.Call(FnModuleStopData); err != nil {
		return err
	}
	if m.data == nil {
		return nil
	}
	index, err := m.radar.DataIndex()
	if err != nil {
		return err
	}
	return m.data.Stop(index)
}

// Frames returns the frame queue of the board.
func (m *RadarModule) Frames() (*bridge.FrameQueue, error) {
	if m.data == nil {
		return nil, status.NotImplemented("frames")
	}
	return m.data.Queue(), nil
}
