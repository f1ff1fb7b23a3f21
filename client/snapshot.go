package client

import (
	"sync"

	"github.com/petitboot/petitboot/petitboot/wire"
	"github.com/petitboot/petitboot/shared/api"
)

// snapshot mirrors the server's device/status state locally by watching
// every pushed event, so callers that just want "what does the daemon see
// right now" don't have to hand-roll their own bookkeeping.
type snapshot struct {
	mu      sync.Mutex
	devices map[string]*api.Device
	status  []api.Status
}

func newSnapshot() *snapshot {
	return &snapshot{devices: map[string]*api.Device{}}
}

func (s *snapshot) apply(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Action {
	case wire.ActionDeviceAdd:
		s.devices[ev.Device.ID] = ev.Device
	case wire.ActionDeviceRemove:
		delete(s.devices, ev.DeviceID)
	case wire.ActionBootOptionAdd:
		if dev, ok := s.devices[ev.DeviceID]; ok {
			dev.BootOptions = append(dev.BootOptions, *ev.BootOption)
		}
	case wire.ActionStatus:
		s.status = append(s.status, *ev.Status)
		if len(s.status) > api.MaxStatusBacklog {
			s.status = s.status[len(s.status)-api.MaxStatusBacklog:]
		}
	}
}

// Devices returns the client's current view of the device list.
func (c *Client) Devices() []api.Device {
	c.snap.mu.Lock()
	defer c.snap.mu.Unlock()

	out := make([]api.Device, 0, len(c.snap.devices))
	for _, d := range c.snap.devices {
		out = append(out, *d)
	}
	return out
}

// StatusBacklog returns the status messages observed so far, oldest first.
func (c *Client) StatusBacklog() []api.Status {
	c.snap.mu.Lock()
	defer c.snap.mu.Unlock()

	out := make([]api.Status, len(c.snap.status))
	copy(out, c.snap.status)
	return out
}
