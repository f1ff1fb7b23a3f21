// Package resolve implements the deferred resource model and resolver of
// spec.md §3 ("Resource") and §4.6: late-bound references to
// (device, path) or (UUID/label, path) that resolve once a matching
// device appears.
package resolve

import (
	"strings"

	petiturl "github.com/petitboot/petitboot/petitboot/url"
)

// Kind identifies which Resource variant is populated.
type Kind int

const (
	// KindResolved carries a ready-to-use URL.
	KindResolved Kind = iota
	// KindDevPathPending carries {device_spec, path} awaiting a device
	// selected by uuid=/label=/bare-id.
	KindDevPathPending
	// KindGrub2Pending carries {root_uuid, path} awaiting a device with
	// that UUID.
	KindGrub2Pending
)

// Resource is a reference to a file that may or may not be resolvable yet
// (spec.md §3).
type Resource struct {
	Kind Kind

	// KindResolved
	URL *petiturl.URL

	// KindDevPathPending / KindGrub2Pending
	DeviceSpec string // "uuid=X", "label=X", or a bare device id
	RootUUID   string
	Path       string
}

// IsResolved reports whether r (which may be nil, meaning "not declared")
// is in the Resolved variant.
func (r *Resource) IsResolved() bool {
	return r == nil || r.Kind == KindResolved
}

// DeviceLookup is the minimal device-directory view the resolver needs:
// find a device by uuid, label, or id, and read its mount path. Satisfied
// by discover.Handler without an import cycle.
type DeviceLookup interface {
	DeviceByUUID(uuid string) (mountPath string, ok bool)
	DeviceByLabel(label string) (mountPath string, ok bool)
	DeviceByID(id string) (mountPath string, ok bool)
}

// ResourceResolver is implemented by format parsers that introduce their
// own pending resource variants (spec.md §4.4's optional
// resolve_resource). The parser package's Parser interface includes this
// method, so any Parser value can be stored as a
// ResourceResolver without an import cycle.
type ResourceResolver interface {
	ResolveResource(dev DeviceLookup, res *Resource) bool
}

// ResolveDevPath resolves a KindDevPathPending resource against a device
// directory, implementing the matching rules of spec.md §4.6: uuid=X,
// label=X, or a bare id (with a leading /dev/ stripped). A resolved
// devpath resource becomes file://{mount_path}/{path}.
func ResolveDevPath(dev DeviceLookup, res *Resource) bool {
	if res == nil || res.Kind != KindDevPathPending {
		return true
	}

	mountPath, ok := lookupDevPath(dev, res.DeviceSpec)
	if !ok {
		return false
	}

	res.Kind = KindResolved
	res.URL = petiturl.Parse("file://" + mountPath + "/" + strings.TrimPrefix(res.Path, "/"))
	return true
}

func lookupDevPath(dev DeviceLookup, spec string) (string, bool) {
	switch {
	case strings.HasPrefix(spec, "uuid="):
		return dev.DeviceByUUID(strings.TrimPrefix(spec, "uuid="))
	case strings.HasPrefix(spec, "label="):
		return dev.DeviceByLabel(strings.TrimPrefix(spec, "label="))
	default:
		id := strings.TrimPrefix(spec, "/dev/")
		return dev.DeviceByID(id)
	}
}

// ResolveGrub2 resolves a KindGrub2Pending resource against a device whose
// uuid equals RootUUID (spec.md §4.6).
func ResolveGrub2(dev DeviceLookup, res *Resource) bool {
	if res == nil || res.Kind != KindGrub2Pending {
		return true
	}

	mountPath, ok := dev.DeviceByUUID(res.RootUUID)
	if !ok {
		return false
	}

	res.Kind = KindResolved
	res.URL = petiturl.Parse("file://" + mountPath + "/" + strings.TrimPrefix(res.Path, "/"))
	return true
}
