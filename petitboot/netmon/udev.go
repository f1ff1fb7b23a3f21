package netmon

import (
	"context"
	"path/filepath"

	"github.com/jochenvg/go-udev"

	"github.com/petitboot/petitboot/petitboot/discover"
	"github.com/petitboot/petitboot/shared/api"
	"github.com/petitboot/petitboot/shared/logger"
)

// UdevMonitor is the hotplug event source of spec.md §2's "Event sources"
// row: it enumerates block devices present at start-up, then watches for
// add/remove uevents on the "block" subsystem, translating each into a
// discover.Device add/remove call.
type UdevMonitor struct {
	handler *discover.Handler
	cancel  context.CancelFunc
}

// NewUdevMonitor constructs a UdevMonitor feeding handler.
func NewUdevMonitor(handler *discover.Handler) *UdevMonitor {
	return &UdevMonitor{handler: handler}
}

// Start enumerates existing block devices, registers each, then begins
// watching for further hotplug events in the background.
func (m *UdevMonitor) Start() error {
	u := udev.Udev{}

	e := u.NewEnumerate()
	if err := e.AddMatchSubsystem("block"); err != nil {
		return err
	}
	if err := e.AddMatchIsInitialized(); err != nil {
		return err
	}

	devices, err := e.Devices()
	if err != nil {
		return err
	}
	for _, d := range devices {
		if dev, ok := toDiscoverDevice(d); ok {
			m.handler.OnDeviceAdd(dev)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	mon := u.NewMonitorFromNetlink("udev")
	if err := mon.FilterAddMatchSubsystem("block"); err != nil {
		cancel()
		return err
	}

	ch, errCh, err := mon.DeviceChan(ctx)
	if err != nil {
		cancel()
		return err
	}

	go m.run(ch, errCh)

	return nil
}

func (m *UdevMonitor) run(ch <-chan *udev.Device, errCh <-chan error) {
	for {
		select {
		case d, ok := <-ch:
			if !ok {
				return
			}
			m.handle(d)
		case err, ok := <-errCh:
			if !ok {
				return
			}
			logger.Warn("netmon: udev monitor error", logger.Ctx{"err": err})
		}
	}
}

func (m *UdevMonitor) handle(d *udev.Device) {
	switch d.Action() {
	case "add", "change":
		if dev, ok := toDiscoverDevice(d); ok {
			m.handler.OnDeviceAdd(dev)
		}
	case "remove":
		m.handler.OnDeviceRemove(deviceIDFor(d))
	}
}

// Stop ends the udev monitor goroutine.
func (m *UdevMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

// toDiscoverDevice converts a block uevent into a DiscoverDevice, skipping
// devices with no block-special node (an empty Devnode). A parent disk that
// has a node is not skipped, even once its partitions appear.
func toDiscoverDevice(d interface {
	Devnode() string
	Subsystem() string
	PropertyValue(string) string
}) (*discover.Device, bool) {
	node := d.Devnode()
	if node == "" {
		return nil, false
	}

	return &discover.Device{
		DeviceID:   filepath.Base(node),
		Type:       classify(d),
		UUID:       d.PropertyValue("ID_FS_UUID"),
		Label:      d.PropertyValue("ID_FS_LABEL"),
		DevicePath: node,
		Params: map[string]string{
			"ID_FS_TYPE": d.PropertyValue("ID_FS_TYPE"),
			"ID_BUS":     d.PropertyValue("ID_BUS"),
		},
	}, true
}

func classify(d interface{ PropertyValue(string) string }) api.DeviceType {
	if d.PropertyValue("ID_CDROM") != "" {
		return api.DeviceTypeOptical
	}
	if d.PropertyValue("ID_BUS") == "usb" {
		return api.DeviceTypeUsb
	}
	return api.DeviceTypeDisk
}

func deviceIDFor(d *udev.Device) string {
	return filepath.Base(d.Devnode())
}
