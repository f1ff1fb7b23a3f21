// Package discover is the pipeline hub of spec.md §4.7: it owns the
// device list, the unresolved boot-option queue, the default-boot
// countdown, and the boot task, and drives every format parser over
// freshly-mounted or network-delivered configuration.
package discover

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/petitboot/petitboot/petitboot/resolve"
	"github.com/petitboot/petitboot/shared/api"
	"github.com/petitboot/petitboot/shared/logger"
)

// Device is a DiscoverDevice (spec.md §3): a physical or logical source
// of boot options. It implements parser.Device and resolve.DeviceLookup's
// per-device half through the owning Handler.
type Device struct {
	DeviceID   string
	Type       api.DeviceType
	UUID       string
	Label      string
	DevicePath string

	mounted       bool
	mountPath     string
	mountedRW     bool
	unmountOnDrop bool

	Params map[string]string

	Options []*resolve.BootOption // resolved, promoted options

	toolPaths ToolPaths
	dryRun    bool
}

// ToolPaths is the set of configured absolute paths to external tools
// the device/mount/boot pipeline invokes (spec.md §6's "External tools
// invoked").
type ToolPaths struct {
	Mount    string
	Umount   string
	Kexec    string
	Shutdown string
}

// DefaultToolPaths returns the conventional absolute paths.
func DefaultToolPaths() ToolPaths {
	return ToolPaths{
		Mount:    "/bin/mount",
		Umount:   "/bin/umount",
		Kexec:    "/sbin/kexec",
		Shutdown: "/sbin/shutdown",
	}
}

// ID returns the stable device id, satisfying parser.Device.
func (d *Device) ID() string { return d.DeviceID }

// parser.Device / resolve interfaces are satisfied via these methods.
func (d *Device) MountPath() string { return d.mountPath }
func (d *Device) IsMounted() bool   { return d.mounted }

// MountBase is where device mounts live, beneath the daemon's local
// state directory (spec.md §6's filesystem conventions).
const MountBase = "petitboot/mnt"

// Mount implements spec.md §4.7's mount procedure: adopt an existing
// mount from /proc/self/mounts if present, else create a fresh mount
// directory and mount read-only.
func (d *Device) Mount(stateDir string) error {
	if d.DevicePath == "" {
		return fmt.Errorf("discover: device %s has no device path to mount", d.DeviceID)
	}

	if existing, ok := findExistingMount(d.DevicePath); ok {
		d.mountPath = existing
		d.mounted = true
		d.unmountOnDrop = false
		logger.Info("adopted existing mount", logger.Ctx{"device": d.DeviceID, "path": existing})
		return nil
	}

	leaf := filepath.Base(d.DevicePath)
	mountPath := filepath.Join(stateDir, MountBase, leaf)

	if err := os.MkdirAll(mountPath, 0755); err != nil {
		return fmt.Errorf("discover: creating mount dir: %w", err)
	}

	fsType := d.Params["ID_FS_TYPE"]

	if d.dryRun {
		logger.Info("dry-run: would mount", logger.Ctx{"device": d.DeviceID, "path": mountPath, "fstype": fsType})
		d.mountPath = mountPath
		d.mounted = true
		d.unmountOnDrop = true
		return nil
	}

	args := []string{"-o", "ro,silent"}
	if fsType != "" {
		args = append([]string{"-t", fsType}, args...)
	}
	args = append(args, d.DevicePath, mountPath)

	cmd := exec.Command(d.toolPaths.Mount, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(mountPath)
		return fmt.Errorf("discover: mount failed: %w (%s)", err, strings.TrimSpace(string(out)))
	}

	d.mountPath = mountPath
	d.mounted = true
	d.unmountOnDrop = true
	return nil
}

// Unmount is idempotent on an already-unmounted device (spec.md §5's
// shared-resource policy).
func (d *Device) Unmount() {
	if !d.mounted {
		return
	}

	if d.unmountOnDrop {
		if d.dryRun {
			logger.Info("dry-run: would unmount", logger.Ctx{"device": d.DeviceID})
		} else {
			cmd := exec.Command(d.toolPaths.Umount, d.mountPath)
			if err := cmd.Run(); err != nil {
				logger.Warn("unmount failed", logger.Ctx{"device": d.DeviceID, "err": err})
			}
			os.Remove(d.mountPath)
		}
	}

	d.mounted = false
	d.mountPath = ""
}

// WriteToken is returned by RequestWrite; dropping it (calling Release)
// remounts the device read-only.
type WriteToken struct {
	dev *Device
}

// Release remounts the device read-only.
func (t *WriteToken) Release() {
	if t == nil || t.dev == nil {
		return
	}
	t.dev.remount(true)
}

// RequestWrite remounts the device read-write and returns a token whose
// Release remounts read-only (spec.md §4.7).
func (d *Device) RequestWrite() (*WriteToken, error) {
	if err := d.remount(false); err != nil {
		return nil, err
	}
	return &WriteToken{dev: d}, nil
}

func (d *Device) remount(ro bool) error {
	if !d.mounted || d.dryRun {
		d.mountedRW = !ro
		return nil
	}

	mode := "rw"
	if ro {
		mode = "ro"
	}

	cmd := exec.Command(d.toolPaths.Mount, "-o", "remount,"+mode, d.mountPath)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("discover: remount %s failed: %w", mode, err)
	}

	d.mountedRW = !ro
	return nil
}

// findExistingMount scans /proc/self/mounts for devicePath, returning its
// mountpoint if already mounted elsewhere.
func findExistingMount(devicePath string) (string, bool) {
	data, err := os.ReadFile("/proc/self/mounts")
	if err != nil {
		return "", false
	}

	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if fields[0] == devicePath {
			return fields[1], true
		}
	}

	return "", false
}
