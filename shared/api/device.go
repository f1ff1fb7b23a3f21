// Package api holds the wire-level and in-memory data model shared between
// the discovery daemon and its clients: devices, boot options, commands,
// status, configuration and the system inventory snapshot (spec.md §3).
package api

// DeviceType classifies the physical or logical source of a DiscoverDevice.
type DeviceType int

// Device type values, per spec.md §3.
const (
	DeviceTypeDisk DeviceType = iota
	DeviceTypeUsb
	DeviceTypeOptical
	DeviceTypeNetwork
	DeviceTypeAny
	DeviceTypeUnknown
)

// String renders the device type the way it appears on the wire and in
// logs.
func (t DeviceType) String() string {
	switch t {
	case DeviceTypeDisk:
		return "disk"
	case DeviceTypeUsb:
		return "usb"
	case DeviceTypeOptical:
		return "optical"
	case DeviceTypeNetwork:
		return "network"
	case DeviceTypeAny:
		return "any"
	default:
		return "unknown"
	}
}

// MountState describes whether and how a device is currently mounted.
type MountState struct {
	Mounted       bool
	MountPath     string
	MountedRW     bool
	UnmountOnDrop bool
}

// Device is the wire-facing projection of a DiscoverDevice: stable
// identity, classification, and the boot options currently attached to it.
type Device struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Type        DeviceType
	UUID        string
	Label       string
	DevicePath  string
	Mount       MountState
	Params      map[string]string
	BootOptions []BootOption
}

// BootOption is the finalized, client-visible view of a DiscoverBootOption:
// all resources are resolved URLs by the time a client sees one (spec.md
// §3 invariant).
type BootOption struct {
	ID          string
	Name        string
	Description string
	Icon        string
	BootImage   string
	Initrd      string
	DeviceTree  string
	BootArgs    string
	IsDefault   bool
}
