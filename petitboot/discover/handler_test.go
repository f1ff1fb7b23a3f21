package discover

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petitboot/petitboot/petitboot/resolve"
	"github.com/petitboot/petitboot/shared/api"
)

// fakeNotifier records every call a Handler makes on its Notifier, guarded
// by a mutex since armTimer's countdown runs on its own goroutine.
type fakeNotifier struct {
	mu           sync.Mutex
	devicesAdded []string
	optionsAdded []string
	statuses     []api.Status
}

func (n *fakeNotifier) DeviceAdded(dev *Device) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.devicesAdded = append(n.devicesAdded, dev.DeviceID)
}
func (n *fakeNotifier) DeviceRemoved(string) {}
func (n *fakeNotifier) BootOptionAdded(deviceID string, opt api.BootOption) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.optionsAdded = append(n.optionsAdded, deviceID+":"+opt.ID)
}
func (n *fakeNotifier) Status(s api.Status) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, s)
}
func (n *fakeNotifier) SystemInfoUpdated(api.SystemInfo) {}
func (n *fakeNotifier) PluginOptionAdded(api.PluginOption) {}
func (n *fakeNotifier) PluginsRemoved()                    {}

func newTestHandler(t *testing.T, priorities []api.BootPriorityEntry) (*Handler, *fakeNotifier) {
	t.Helper()
	cfg := api.NewDefaultConfig()
	cfg.AutobootTimeout = 5
	if priorities != nil {
		cfg.BootPriorities = priorities
	}
	n := &fakeNotifier{}
	h := NewHandler(t.TempDir(), cfg, n, true)
	return h, n
}

// TestAutobootCountdownRace reproduces spec.md §8 scenario 3: a lower
// priority device's default option arms the countdown, a tick passes, then
// a higher priority device's default option both takes over and extends
// the countdown by 2 seconds (5 - 1 + 2 = 6).
func TestAutobootCountdownRace(t *testing.T) {
	h, _ := newTestHandler(t, api.DefaultBootPriorities()) // network=2, disk=1

	disk := &Device{DeviceID: "sda1", Type: api.DeviceTypeDisk}
	net := &Device{DeviceID: "net-eth0", Type: api.DeviceTypeNetwork}
	h.devices = append(h.devices, disk, net)

	diskOpt := &resolve.BootOption{ID: "disk-opt", DeviceID: disk.DeviceID, IsDefault: true}
	h.considerDefault(diskOpt)
	require.Equal(t, diskOpt, h.defaultOption)
	require.Equal(t, 5, h.secToBoot)
	require.NotNil(t, h.timeoutStop)

	h.tick() // simulate one second elapsing
	require.Equal(t, 4, h.secToBoot)
	require.Equal(t, diskOpt, h.defaultOption, "still counting down the disk default")

	netOpt := &resolve.BootOption{ID: "net-opt", DeviceID: net.DeviceID, IsDefault: true}
	h.considerDefault(netOpt)

	require.Equal(t, netOpt, h.defaultOption, "higher priority network option takes over")
	require.Equal(t, 6, h.secToBoot, "5-1+2: one elapsed tick, then the +2 takeover bump")

	h.cancelDefault()
}

// TestAutobootPriorityVeto reproduces the veto half of spec.md §8 scenario
// 3: a negative-priority entry stops a device's default option from ever
// arming the countdown.
func TestAutobootPriorityVeto(t *testing.T) {
	h, _ := newTestHandler(t, []api.BootPriorityEntry{
		{Type: api.DeviceTypeUsb, Priority: -1},
	})

	usb := &Device{DeviceID: "sdb1", Type: api.DeviceTypeUsb}
	h.devices = append(h.devices, usb)

	opt := &resolve.BootOption{ID: "usb-opt", DeviceID: usb.DeviceID, IsDefault: true}
	h.considerDefault(opt)

	require.Nil(t, h.defaultOption, "vetoed device must never become the default")
	require.Nil(t, h.timeoutStop, "armTimer must not have started")
}

// devUUIDResolver adapts resolve.ResolveDevPath to the ResourceResolver
// interface for a fixed uuid= spec, the same pattern grub2's parser uses
// for a "set root=(uuid=...)" reference.
type devUUIDResolver struct{}

func (devUUIDResolver) ResolveResource(dev resolve.DeviceLookup, res *resolve.Resource) bool {
	return resolve.ResolveDevPath(dev, res)
}

// TestSweepResolvesOnDeviceAdd reproduces spec.md §8 scenario 2/the sweep
// idempotence property: an option referencing a uuid that doesn't exist
// yet stays on the unresolved queue until the matching device is added,
// at which point OnDeviceAdd's sweepUnresolved promotes it without
// needing the option to be re-parsed.
func TestSweepResolvesOnDeviceAdd(t *testing.T) {
	h, n := newTestHandler(t, nil)

	pending := &resolve.BootOption{
		ID:       "pending-opt",
		DeviceID: "sda1",
		BootImage: &resolve.Resource{
			Kind:       resolve.KindDevPathPending,
			DeviceSpec: "uuid=BBB",
			Path:       "/vmlinuz",
		},
		Resolver: devUUIDResolver{},
	}
	h.commit([]*resolve.BootOption{pending})
	require.Len(t, h.unresolved, 1, "option must wait for device BBB")
	require.Empty(t, n.optionsAdded)

	target := &Device{DeviceID: "sdb1", UUID: "BBB"}
	target.mounted = true
	h.OnDeviceAdd(target)

	require.Empty(t, h.unresolved, "sweep must drain the queue once BBB appears")
	require.Equal(t, []string{"sda1:pending-opt"}, n.optionsAdded)
}
