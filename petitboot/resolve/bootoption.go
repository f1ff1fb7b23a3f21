package resolve

import "github.com/petitboot/petitboot/shared/api"

// BootOption is the unresolved, in-progress form of a boot option (spec.md
// §3's DiscoverBootOption): up to four optional Resources plus the
// client-facing record fields that don't require resolution. It is held
// on the device handler's unresolved queue until every declared resource
// reaches KindResolved, then promoted to its owning device and broadcast.
type BootOption struct {
	ID          string
	Name        string
	Description string
	Icon        string
	BootArgs    string
	IsDefault   bool

	BootImage  *Resource
	Initrd     *Resource
	DeviceTree *Resource
	IconRes    *Resource

	// DeviceID is the device this option was produced for; used to drop
	// it from the unresolved queue when that device is removed (spec.md
	// §4.7's on_device_remove).
	DeviceID string

	// Resolver is the producing parser's ResolveResource, used by the
	// deferred resolver sweep (spec.md §4.6). Nil means the option
	// cannot be deferred: if not immediately resolvable it is dropped.
	Resolver ResourceResolver
}

// AllResolved reports whether every declared resource is in the Resolved
// variant (spec.md §3's core invariant, and §8's first testable
// property).
func (o *BootOption) AllResolved() bool {
	return o.BootImage.IsResolved() && o.Initrd.IsResolved() && o.DeviceTree.IsResolved() && o.IconRes.IsResolved()
}

// TryResolve attempts to resolve every still-pending resource against dev,
// returning true iff all four end up resolved. It is safe to call
// repeatedly (spec.md §8's sweep idempotence property): resources already
// Resolved are left untouched.
func (o *BootOption) TryResolve(dev DeviceLookup) bool {
	if o.Resolver == nil {
		return o.AllResolved()
	}

	resolveOne := func(res *Resource) bool {
		if res == nil || res.Kind == KindResolved {
			return true
		}
		return o.Resolver.ResolveResource(dev, res)
	}

	ok := resolveOne(o.BootImage)
	ok = resolveOne(o.Initrd) && ok
	ok = resolveOne(o.DeviceTree) && ok
	ok = resolveOne(o.IconRes) && ok

	return ok && o.AllResolved()
}

// Finalize snapshots the resolved resources into a client-facing
// api.BootOption (spec.md §4.7, "finalize: snapshot URLs into the
// BootOption record").
func (o *BootOption) Finalize() api.BootOption {
	urlOf := func(r *Resource) string {
		if r == nil || r.URL == nil {
			return ""
		}
		return r.URL.String()
	}

	return api.BootOption{
		ID:          o.ID,
		Name:        o.Name,
		Description: o.Description,
		Icon:        urlOf(o.IconRes),
		BootImage:   urlOf(o.BootImage),
		Initrd:      urlOf(o.Initrd),
		DeviceTree:  urlOf(o.DeviceTree),
		BootArgs:    o.BootArgs,
		IsDefault:   o.IsDefault,
	}
}
