package discover

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/petitboot/petitboot/petitboot/loader"
	"github.com/petitboot/petitboot/petitboot/parser"
	"github.com/petitboot/petitboot/petitboot/resolve"
	petiturl "github.com/petitboot/petitboot/petitboot/url"
	"github.com/petitboot/petitboot/shared/api"
	"github.com/petitboot/petitboot/shared/logger"
)

// Notifier is how the Handler pushes state changes outward; the Discover
// server implements it (spec.md §4.9's "thereafter the server pushes each
// state change to all connected clients").
type Notifier interface {
	DeviceAdded(dev *Device)
	DeviceRemoved(deviceID string)
	BootOptionAdded(deviceID string, opt api.BootOption)
	Status(s api.Status)
	SystemInfoUpdated(info api.SystemInfo)
	PluginOptionAdded(opt api.PluginOption)
	PluginsRemoved()
}

// Handler is the device-handler pipeline hub of spec.md §4.7. Its exported
// methods are meant to be called from a single goroutine (the event loop),
// matching the single-threaded cooperative scheduling model spec.md §5
// describes; mu guards the state a second goroutine also touches: the
// Discover server reading a device/SystemInfo/plugin snapshot for a newly
// connected client, and the autoboot countdown goroutine (tick) updating
// the default option, countdown and pending boot task.
type Handler struct {
	StateDir  string
	Config    *api.Config
	ToolPaths ToolPaths
	DryRun    bool

	notifier Notifier

	mu      sync.Mutex // guards devices/sysinfo/plugins and the countdown state below; unresolved is only touched from the event loop
	devices []*Device

	unresolved []*resolve.BootOption

	defaultOption  *resolve.BootOption
	secToBoot      int
	timeoutStop    chan struct{}
	autobootOn     bool
	pendingBoot    *BootTask
	pendingDefault bool

	sysType       string
	sysIdentifier string
	sysFirmware   string
	interfaces    []api.InterfaceInfo
	blockDevices  []api.BlockDeviceInfo

	plugins []api.PluginOption
}

// NewHandler constructs a Handler against cfg and the given notifier. The
// static half of the SystemInfo snapshot (spec.md §3) is gathered and
// pushed immediately, mirroring system_info_init's platform_get_sysinfo
// call: the original fills in platform type/identifier once at start-up,
// then lets system_info_register_interface/_blockdev grow the rest as
// devices are discovered.
func NewHandler(stateDir string, cfg *api.Config, notifier Notifier, dryRun bool) *Handler {
	h := &Handler{
		StateDir:   stateDir,
		Config:     cfg,
		ToolPaths:  DefaultToolPaths(),
		DryRun:     dryRun,
		notifier:   notifier,
		autobootOn: cfg.AutobootEnabled,
	}

	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	h.sysType = runtime.GOARCH
	h.sysIdentifier = host
	h.sysFirmware = "unknown"

	notifier.SystemInfoUpdated(h.systemInfoLocked())

	return h
}

// Devices returns a snapshot of the current device list.
func (h *Handler) Devices() []*Device {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Device, len(h.devices))
	copy(out, h.devices)
	return out
}

// DeviceByUUID / DeviceByLabel / DeviceByID implement resolve.DeviceLookup.
func (h *Handler) DeviceByUUID(uuid string) (string, bool) {
	for _, d := range h.devices {
		if d.UUID == uuid && d.mounted {
			return d.mountPath, true
		}
	}
	return "", false
}

func (h *Handler) DeviceByLabel(label string) (string, bool) {
	for _, d := range h.devices {
		if d.Label == label && d.mounted {
			return d.mountPath, true
		}
	}
	return "", false
}

func (h *Handler) DeviceByID(id string) (string, bool) {
	for _, d := range h.devices {
		if d.DeviceID == id && d.mounted {
			return d.mountPath, true
		}
	}
	return "", false
}

// OnDeviceAdd implements spec.md §4.7's on_device_add.
func (h *Handler) OnDeviceAdd(dev *Device) {
	dev.toolPaths = h.ToolPaths
	dev.dryRun = h.DryRun

	h.mu.Lock()
	h.devices = append(h.devices, dev)
	h.mu.Unlock()

	if dev.DevicePath != "" {
		if err := dev.Mount(h.StateDir); err != nil {
			h.mu.Lock()
			h.removeDeviceLocked(dev.DeviceID)
			h.mu.Unlock()
			h.emitStatus(api.StatusError, fmt.Sprintf("mount failed for %s: %v", dev.DeviceID, err), -1)
			return
		}
	}

	h.notifier.DeviceAdded(dev)

	if dev.Type != api.DeviceTypeNetwork && dev.DevicePath != "" {
		h.RegisterBlockDevice(filepath.Base(dev.DevicePath), dev.UUID, dev.mountPath)
	}

	h.sweepUnresolved()

	ctx := &parser.DiscoverContext{Device: dev}
	for _, p := range parser.Registry {
		data, ok := h.discoverConfig(dev, p)
		if !ok {
			continue
		}
		if err := p.Parse(ctx, data); err != nil {
			h.emitStatus(api.StatusError, fmt.Sprintf("%s: parse error: %v", p.Name(), err), -1)
		}
	}

	h.commit(ctx.Options())
}

// discoverConfig tries each of a parser's candidate filenames against
// dev's mounted root, returning the first non-empty match.
func (h *Handler) discoverConfig(dev *Device, p parser.Parser) ([]byte, bool) {
	if !dev.mounted {
		return nil, false
	}
	_, data, ok := parser.DiscoverFile(dev.mountPath, p.CandidateFiles(), nil)
	return data, ok
}

// commit implements the second half of on_device_add: try to resolve
// each produced option immediately; promote, defer, or drop it.
func (h *Handler) commit(opts []*resolve.BootOption) {
	for _, opt := range opts {
		if opt.TryResolve(h) {
			h.promote(opt)
			continue
		}

		if opt.Resolver != nil {
			h.unresolved = append(h.unresolved, opt)
			continue
		}
		// No resolver and not resolved: drop (spec.md §4.7 step 6).
	}
}

// promote attaches a resolved option to its owning device, finalizes it,
// evaluates default-priority, and broadcasts it.
func (h *Handler) promote(opt *resolve.BootOption) {
	dev := h.findDevice(opt.DeviceID)
	if dev != nil {
		dev.Options = append(dev.Options, opt)
	}

	h.notifier.BootOptionAdded(opt.DeviceID, opt.Finalize())

	if opt.IsDefault {
		h.considerDefault(opt)
	}
}

func (h *Handler) findDevice(id string) *Device {
	for _, d := range h.devices {
		if d.DeviceID == id {
			return d
		}
	}
	return nil
}

// sweepUnresolved implements spec.md §4.6/§8: idempotent re-resolution
// of every still-pending option against the current device set.
func (h *Handler) sweepUnresolved() {
	var remaining []*resolve.BootOption

	for _, opt := range h.unresolved {
		if opt.TryResolve(h) {
			h.promote(opt)
			continue
		}
		remaining = append(remaining, opt)
	}

	h.unresolved = remaining
}

// OnDeviceRemove implements spec.md §4.7's on_device_remove.
func (h *Handler) OnDeviceRemove(deviceID string) {
	h.mu.Lock()
	h.removeDeviceLocked(deviceID)
	h.mu.Unlock()

	var remaining []*resolve.BootOption
	for _, opt := range h.unresolved {
		if opt.DeviceID != deviceID {
			remaining = append(remaining, opt)
		}
	}
	h.unresolved = remaining

	h.mu.Lock()
	isDefault := h.defaultOption != nil && h.defaultOption.DeviceID == deviceID
	h.mu.Unlock()
	if isDefault {
		h.cancelDefault()
	}

	h.notifier.DeviceRemoved(deviceID)
}

func (h *Handler) removeDeviceLocked(deviceID string) {
	for i, d := range h.devices {
		if d.DeviceID == deviceID {
			d.Unmount()
			h.devices = append(h.devices[:i], h.devices[i+1:]...)
			return
		}
	}
}

// OnURL implements spec.md §4.7's on_url: fetch the config at url against
// the caller-chosen deviceID (the DHCP lease's interface, or the first
// network device for AddUrl; no route lookup is done), synthesize a Conf
// event, run the pxe parser, commit.
func (h *Handler) OnURL(deviceID string, url *petiturl.URL, ld *loader.Loader) {
	if h.findDevice(deviceID) == nil {
		h.emitStatus(api.StatusError, fmt.Sprintf("on_url: unknown device %s", deviceID), -1)
		return
	}

	res, err := ld.Load(context.Background(), url)
	if err != nil {
		h.emitStatus(api.StatusError, fmt.Sprintf("on_url: fetch %s: %v", url.String(), err), -1)
		return
	}
	if res.CleanupLocal {
		defer os.Remove(res.LocalPath)
	}

	data, err := os.ReadFile(res.LocalPath)
	if err != nil {
		h.emitStatus(api.StatusError, fmt.Sprintf("on_url: read %s: %v", res.LocalPath, err), -1)
		return
	}

	ev := &api.Event{Type: api.EventNetwork, Action: api.ActionConf, DeviceID: deviceID}
	if err := h.ParseAt(deviceID, url, ev, "pxe", data); err != nil {
		h.emitStatus(api.StatusError, fmt.Sprintf("pxe: %v", err), -1)
	}
}

// ParseAt runs the named parser's Parse against already-fetched bytes for
// a given device/event context and commits the results; used by OnURL
// once it has fetched a pxe config via the loader.
func (h *Handler) ParseAt(deviceID string, url *petiturl.URL, ev *api.Event, parserName string, data []byte) error {
	dev := h.findDevice(deviceID)
	if dev == nil {
		return fmt.Errorf("discover: unknown device %s", deviceID)
	}

	var p parser.Parser
	for _, cand := range parser.Registry {
		if cand.Name() == parserName {
			p = cand
			break
		}
	}
	if p == nil {
		return fmt.Errorf("discover: unknown parser %s", parserName)
	}

	ctx := &parser.DiscoverContext{Device: dev, ConfURL: url, Event: ev}
	if err := p.Parse(ctx, data); err != nil {
		return err
	}

	h.commit(ctx.Options())
	return nil
}

// OnBootCommand implements spec.md §4.7's on_boot_command: look up the
// option by id, cancel any pending boot, and start a new BootTask.
func (h *Handler) OnBootCommand(cmd api.BootCommand, toolPaths ToolPaths) {
	opt := h.findOption(cmd.OptionID)
	if opt == nil {
		h.emitStatus(api.StatusError, fmt.Sprintf("boot: unknown option %s", cmd.OptionID), -1)
		return
	}

	h.mu.Lock()
	h.cancelPendingBoot()
	task := NewBootTask(opt, cmd, h.ToolPaths, h.DryRun, h.emitStatus)
	h.pendingBoot = task
	h.pendingDefault = false
	h.mu.Unlock()

	task.Start()
}

func (h *Handler) findOption(id string) *resolve.BootOption {
	for _, d := range h.devices {
		for _, o := range d.Options {
			if o.ID == id {
				return o
			}
		}
	}
	return nil
}

func (h *Handler) cancelPendingBoot() {
	if h.pendingBoot != nil {
		h.pendingBoot.Cancel()
		h.pendingBoot = nil
	}
}

// considerDefault implements spec.md §4.7's default-selection algorithm.
func (h *Handler) considerDefault(opt *resolve.BootOption) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.autobootOn {
		return
	}

	dev := h.findDevice(opt.DeviceID)
	priority := h.priorityOf(dev)
	if priority < 0 {
		return // vetoed
	}

	if h.defaultOption == nil {
		h.defaultOption = opt
		h.secToBoot = h.Config.AutobootTimeout
		h.armTimer()
		return
	}

	currentPriority := h.priorityOf(h.findDevice(h.defaultOption.DeviceID))
	if priority > currentPriority {
		h.defaultOption = opt
		h.secToBoot += 2
	}
}

// priorityOf looks up dev's integer priority from the configured
// preference list; unmatched devices get priority 0.
func (h *Handler) priorityOf(dev *Device) int {
	if dev == nil {
		return 0
	}

	for _, entry := range h.Config.BootPriorities {
		if entry.UUID != "" && entry.UUID == dev.UUID {
			return entry.Priority
		}
		if entry.MAC != "" && entry.MAC == dev.Params["MAC"] {
			return entry.Priority
		}
		if entry.UUID == "" && entry.MAC == "" && entry.Type == dev.Type {
			return entry.Priority
		}
	}

	return 0
}

// armTimer starts (or restarts) the 1s repeating countdown; on expiry it
// sets pendingBoot to the result of booting the current default.
func (h *Handler) armTimer() {
	if h.timeoutStop != nil {
		close(h.timeoutStop)
	}
	stop := make(chan struct{})
	h.timeoutStop = stop

	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				h.tick()
				if h.secToBoot <= 0 {
					return
				}
			}
		}
	}()
}

func (h *Handler) tick() {
	h.mu.Lock()

	if h.defaultOption == nil {
		h.mu.Unlock()
		return
	}

	name, secToBoot := h.defaultOption.Name, h.secToBoot
	h.secToBoot--

	var task *BootTask
	if h.secToBoot <= 0 {
		h.cancelPendingBoot()
		task = NewBootTask(h.defaultOption, api.BootCommand{OptionID: h.defaultOption.ID}, h.ToolPaths, h.DryRun, h.emitStatus)
		h.pendingBoot = task
		h.pendingDefault = true
	}

	h.mu.Unlock()

	h.emitStatus(api.StatusInfo, fmt.Sprintf("Booting in %d sec: %s", secToBoot, name), -1)
	if task != nil {
		task.Start()
	}
}

// CancelDefault implements spec.md §4.7's cancel_default.
func (h *Handler) CancelDefault() {
	h.cancelDefault()
}

func (h *Handler) cancelDefault() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.timeoutStop != nil {
		close(h.timeoutStop)
		h.timeoutStop = nil
	}
	h.defaultOption = nil
	h.autobootOn = false

	if h.pendingDefault {
		h.cancelPendingBoot()
	}
}

func (h *Handler) emitStatus(t api.StatusType, msg string, progress int) {
	logger.Info(msg, logger.Ctx{"status": t})
	h.notifier.Status(api.Status{Type: t, Message: msg, Progress: progress})
}
