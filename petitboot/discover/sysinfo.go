package discover

import (
	"fmt"
	"strings"

	"github.com/petitboot/petitboot/petitboot/loader"
	petiturl "github.com/petitboot/petitboot/petitboot/url"
	"github.com/petitboot/petitboot/shared/api"
)

// systemInfoLocked assembles the current SystemInfo snapshot. Callers must
// hold h.mu.
func (h *Handler) systemInfoLocked() api.SystemInfo {
	info := api.SystemInfo{
		Type:            h.sysType,
		Identifier:      h.sysIdentifier,
		FirmwareVersion: h.sysFirmware,
	}
	info.Interfaces = append(info.Interfaces, h.interfaces...)
	info.BlockDevices = append(info.BlockDevices, h.blockDevices...)
	return info
}

// RegisterInterface implements spec.md §3/§4.9's interface half of the
// SystemInfo inventory, following system_info_register_interface's
// diff-before-notify rule: an unchanged name/link/address is silent, a
// change (or a first sighting) pushes the whole snapshot to clients.
func (h *Handler) RegisterInterface(mac, name string, linkUp bool, address string) {
	h.mu.Lock()

	for i := range h.interfaces {
		ifc := &h.interfaces[i]
		if ifc.MAC != mac {
			continue
		}

		changed := false
		if ifc.Name != name {
			ifc.Name = name
			changed = true
		}
		if ifc.LinkUp != linkUp {
			ifc.LinkUp = linkUp
			changed = true
		}
		if address != "" && ifc.Address != address {
			ifc.Address = address
			changed = true
		}

		info := h.systemInfoLocked()
		h.mu.Unlock()
		if changed {
			h.notifier.SystemInfoUpdated(info)
		}
		return
	}

	h.interfaces = append(h.interfaces, api.InterfaceInfo{MAC: mac, Name: name, LinkUp: linkUp, Address: address})
	info := h.systemInfoLocked()
	h.mu.Unlock()
	h.notifier.SystemInfoUpdated(info)
}

// RegisterBlockDevice implements the block-device half of the SystemInfo
// inventory, mirroring system_info_register_blockdev: an existing entry by
// name has its uuid/mountpoint refreshed, a new one is appended. Both paths
// notify unconditionally, matching the original (which doesn't diff a
// blockdev update against its previous mountpoint).
func (h *Handler) RegisterBlockDevice(name, uuid, mountPoint string) {
	h.mu.Lock()

	for i := range h.blockDevices {
		bd := &h.blockDevices[i]
		if bd.Name != name {
			continue
		}
		bd.UUID = uuid
		bd.MountPoint = mountPoint
		info := h.systemInfoLocked()
		h.mu.Unlock()
		h.notifier.SystemInfoUpdated(info)
		return
	}

	h.blockDevices = append(h.blockDevices, api.BlockDeviceInfo{Name: name, UUID: uuid, MountPoint: mountPoint})
	info := h.systemInfoLocked()
	h.mu.Unlock()
	h.notifier.SystemInfoUpdated(info)
}

// SystemInfo returns the current inventory snapshot.
func (h *Handler) SystemInfo() api.SystemInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.systemInfoLocked()
}

// Reinit implements the client-issued Reinit action: drop every discovered
// device and unresolved option and reset the default-boot countdown,
// keeping static platform info (system_info_reinit only clears device
// info, never the platform type/identifier). Event sources (udev, netmon)
// are untouched; they will re-announce their devices as the kernel
// re-delivers the corresponding uevents, which this build doesn't force.
func (h *Handler) Reinit() {
	h.mu.Lock()
	for _, d := range h.devices {
		d.Unmount()
	}
	h.devices = nil
	h.unresolved = nil
	h.blockDevices = nil
	h.interfaces = nil
	info := h.systemInfoLocked()
	h.mu.Unlock()

	h.cancelDefault()
	h.notifier.SystemInfoUpdated(info)
	h.emitStatus(api.StatusInfo, "reinitialized", -1)
}

// UpdateConfig implements the client-issued Config action: replace the
// in-memory configuration and re-evaluate autoboot against it. Persisting
// the change to disk is the daemon entry point's job (spec.md §6), not
// the handler's.
func (h *Handler) UpdateConfig(cfg *api.Config) {
	h.mu.Lock()
	h.Config = cfg
	h.autobootOn = cfg.AutobootEnabled
	h.mu.Unlock()

	if !cfg.AutobootEnabled {
		h.cancelDefault()
	}
	h.emitStatus(api.StatusInfo, "configuration updated", -1)
}

// InstallPlugin implements the client-issued PluginInstall action. The
// retrieval pack's device-handler.c has no install_plugin/plugin_option
// code at all (a version-skew gap in the original source), so this is
// authored against discover-server.c's PLUGIN_INSTALL/PLUGIN_OPTION_ADD
// call pattern only: record the plugin and broadcast it, rather than
// actually fetching/mounting a plugin image.
func (h *Handler) InstallPlugin(rawURL string) {
	if rawURL == "" {
		h.emitStatus(api.StatusError, "plugin install: empty url", -1)
		return
	}

	u := petiturl.Parse(rawURL)
	opt := api.PluginOption{
		ID:        fmt.Sprintf("plugin-%d", len(h.plugins)),
		Name:      u.File,
		SourceURL: rawURL,
	}

	h.mu.Lock()
	h.plugins = append(h.plugins, opt)
	h.mu.Unlock()

	h.notifier.PluginOptionAdded(opt)
	h.emitStatus(api.StatusInfo, fmt.Sprintf("plugin %s installed", opt.Name), -1)
}

// PluginsRemoved drops every installed plugin and notifies clients.
func (h *Handler) PluginsRemoved() {
	h.mu.Lock()
	h.plugins = nil
	h.mu.Unlock()

	h.notifier.PluginsRemoved()
}

// ApplyTempAutoboot implements the client-issued TempAutoboot action: a
// one-shot override of the autoboot decision that doesn't touch Config.
func (h *Handler) ApplyTempAutoboot(t api.TempAutoboot) {
	if !t.Enabled {
		h.cancelDefault()
		return
	}

	opt := h.findOption(t.OptionID)
	if opt == nil {
		h.emitStatus(api.StatusError, fmt.Sprintf("temp autoboot: unknown option %s", t.OptionID), -1)
		return
	}

	h.mu.Lock()
	h.autobootOn = true
	h.defaultOption = opt
	h.secToBoot = h.Config.AutobootTimeout
	h.armTimer()
	h.mu.Unlock()
}

// AddURL implements the client-issued AddUrl action: device_from_addr's
// host-based interface routing isn't modeled by this build's network
// manager, so the first registered network device stands in for "the
// device reachable via the URL's host."
func (h *Handler) AddURL(rawURL string, ld *loader.Loader) {
	h.mu.Lock()
	var deviceID string
	for _, d := range h.devices {
		if d.Type == api.DeviceTypeNetwork {
			deviceID = d.DeviceID
			break
		}
	}
	h.mu.Unlock()

	if deviceID == "" {
		h.emitStatus(api.StatusError, "No network configured", -1)
		return
	}

	u := petiturl.Parse(strings.TrimSpace(rawURL))
	h.OnURL(deviceID, u, ld)
}
