package resolve_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petitboot/petitboot/petitboot/resolve"
)

type fakeDeviceLookup struct {
	byUUID  map[string]string
	byLabel map[string]string
	byID    map[string]string
}

func (f *fakeDeviceLookup) DeviceByUUID(uuid string) (string, bool) {
	p, ok := f.byUUID[uuid]
	return p, ok
}

func (f *fakeDeviceLookup) DeviceByLabel(label string) (string, bool) {
	p, ok := f.byLabel[label]
	return p, ok
}

func (f *fakeDeviceLookup) DeviceByID(id string) (string, bool) {
	p, ok := f.byID[id]
	return p, ok
}

func TestResolveDevPathByUUID(t *testing.T) {
	dev := &fakeDeviceLookup{byUUID: map[string]string{"AAA": "/mnt/sda1"}}
	res := &resolve.Resource{Kind: resolve.KindDevPathPending, DeviceSpec: "uuid=AAA", Path: "/vmlinux"}

	ok := resolve.ResolveDevPath(dev, res)
	require.True(t, ok)
	require.Equal(t, resolve.KindResolved, res.Kind)
	require.Equal(t, "file:///mnt/sda1/vmlinux", res.URL.String())
}

func TestResolveDevPathUnmatched(t *testing.T) {
	dev := &fakeDeviceLookup{byUUID: map[string]string{}}
	res := &resolve.Resource{Kind: resolve.KindDevPathPending, DeviceSpec: "uuid=BBB", Path: "/vmlinux"}

	ok := resolve.ResolveDevPath(dev, res)
	require.False(t, ok)
	require.Equal(t, resolve.KindDevPathPending, res.Kind)
}

func TestResolveGrub2(t *testing.T) {
	dev := &fakeDeviceLookup{byUUID: map[string]string{"BBB": "/mnt/sdb1"}}
	res := &resolve.Resource{Kind: resolve.KindGrub2Pending, RootUUID: "BBB", Path: "/vm"}

	ok := resolve.ResolveGrub2(dev, res)
	require.True(t, ok)
	require.Equal(t, "file:///mnt/sdb1/vm", res.URL.String())
}

type fakeResolver struct {
	resolveFn func(dev resolve.DeviceLookup, res *resolve.Resource) bool
}

func (f *fakeResolver) ResolveResource(dev resolve.DeviceLookup, res *resolve.Resource) bool {
	return f.resolveFn(dev, res)
}

func TestBootOptionTryResolveAllFour(t *testing.T) {
	dev := &fakeDeviceLookup{byUUID: map[string]string{"AAA": "/mnt/a"}}

	opt := &resolve.BootOption{
		BootImage:  &resolve.Resource{Kind: resolve.KindDevPathPending, DeviceSpec: "uuid=AAA", Path: "/vm"},
		Initrd:     &resolve.Resource{Kind: resolve.KindDevPathPending, DeviceSpec: "uuid=AAA", Path: "/ird"},
		Resolver:   &fakeResolver{resolveFn: resolve.ResolveDevPath},
	}

	require.False(t, opt.AllResolved())
	require.True(t, opt.TryResolve(dev))
	require.True(t, opt.AllResolved())

	// Idempotent: calling again with no change is a no-op that still
	// reports fully resolved (spec.md §8).
	require.True(t, opt.TryResolve(dev))
}

func TestBootOptionTryResolvePartial(t *testing.T) {
	dev := &fakeDeviceLookup{byUUID: map[string]string{}}

	opt := &resolve.BootOption{
		BootImage: &resolve.Resource{Kind: resolve.KindDevPathPending, DeviceSpec: "uuid=AAA", Path: "/vm"},
		Resolver:  &fakeResolver{resolveFn: resolve.ResolveDevPath},
	}

	require.False(t, opt.TryResolve(dev))
	require.False(t, opt.AllResolved())
}

func TestFinalizeToleratesNilURL(t *testing.T) {
	opt := &resolve.BootOption{
		ID:   "sda1#linux",
		Name: "linux",
		BootImage: &resolve.Resource{
			Kind: resolve.KindResolved,
		},
	}
	opt.BootImage.URL = nil // declared but never set a URL: Finalize must not panic
	got := opt.Finalize()
	require.Equal(t, "sda1#linux", got.ID)
	require.Equal(t, "", got.BootImage)
}
