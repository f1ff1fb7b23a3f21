package netmon

import (
	"fmt"

	"github.com/petitboot/petitboot/petitboot/discover"
	"github.com/petitboot/petitboot/shared/api"
)

// Monitor bundles every event source of spec.md §4.8/§6 — link-state/DHCP
// network management, udev hotplug, and the user-event datagram socket —
// behind a single Start/Stop pair for the daemon's main to drive.
type Monitor struct {
	Network   *Network
	Udev      *UdevMonitor
	UserEvent *UserEventSocket
}

// New constructs a Monitor wired to handler, using cfg for network
// configuration and userEventPath for the datagram socket.
func New(cfg *api.Config, handler *discover.Handler, userEventPath string, dryRun bool) *Monitor {
	return &Monitor{
		Network:   NewNetwork(cfg, handler, dryRun),
		Udev:      NewUdevMonitor(handler),
		UserEvent: NewUserEventSocket(userEventPath, handler),
	}
}

// Start brings up every event source; it stops the ones already started
// and returns an error on the first failure.
func (m *Monitor) Start() error {
	if err := m.Network.Start(); err != nil {
		return fmt.Errorf("netmon: network: %w", err)
	}
	if err := m.Udev.Start(); err != nil {
		m.Network.Stop()
		return fmt.Errorf("netmon: udev: %w", err)
	}
	if err := m.UserEvent.Start(); err != nil {
		m.Network.Stop()
		m.Udev.Stop()
		return fmt.Errorf("netmon: user-event socket: %w", err)
	}
	return nil
}

// Stop tears every event source down.
func (m *Monitor) Stop() {
	m.Network.Stop()
	m.Udev.Stop()
	m.UserEvent.Stop()
}
