package grub2_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petitboot/petitboot/petitboot/parser"
	"github.com/petitboot/petitboot/petitboot/parser/grub2"
	"github.com/petitboot/petitboot/petitboot/resolve"
)

type fakeDevice struct {
	id        string
	mountPath string
}

func (d *fakeDevice) ID() string        { return d.id }
func (d *fakeDevice) MountPath() string { return d.mountPath }
func (d *fakeDevice) IsMounted() bool   { return true }

type fakeLookup struct {
	byUUID map[string]string
}

func (l *fakeLookup) DeviceByUUID(uuid string) (string, bool) {
	m, ok := l.byUUID[uuid]
	return m, ok
}
func (l *fakeLookup) DeviceByLabel(string) (string, bool) { return "", false }
func (l *fakeLookup) DeviceByID(string) (string, bool)    { return "", false }

// TestGrub2CrossDeviceReference reproduces spec.md §8 scenario 2: a
// menuentry on device A sets root to device B's uuid, so the option stays
// unresolved until B appears.
func TestGrub2CrossDeviceReference(t *testing.T) {
	buf := []byte(`
menuentry 'X' {
	set root=(uuid=BBB)
	linux /vm
	initrd /ird
}
`)

	ctx := &parser.DiscoverContext{Device: &fakeDevice{id: "sda1", mountPath: "/mnt/sda1"}}
	p := &grub2.Parser{}

	require.NoError(t, p.Parse(ctx, buf))
	require.Len(t, ctx.Options(), 1)

	opt := ctx.Options()[0]
	require.False(t, opt.AllResolved())

	lookup := &fakeLookup{byUUID: map[string]string{}}
	require.False(t, opt.TryResolve(lookup))

	lookup.byUUID["BBB"] = "/mnt/sdb1"
	require.True(t, opt.TryResolve(lookup))
	require.Equal(t, "file:///mnt/sdb1/vm", opt.BootImage.URL.String())
	require.Equal(t, "file:///mnt/sdb1/ird", opt.Initrd.URL.String())

	// Idempotent: resolving again doesn't break anything.
	require.True(t, opt.TryResolve(lookup))
}

func TestGrub2SimpleMenuentrySameDevice(t *testing.T) {
	buf := []byte(`
set default=0
menuentry 'Linux' --id=linux {
	linux /vmlinuz root=/dev/sda1 ro
	initrd /initrd.img
}
`)

	ctx := &parser.DiscoverContext{Device: &fakeDevice{id: "sda1", mountPath: "/mnt/sda1"}}
	p := &grub2.Parser{}

	require.NoError(t, p.Parse(ctx, buf))
	require.Len(t, ctx.Options(), 1)

	opt := ctx.Options()[0]
	require.True(t, opt.AllResolved())
	require.Equal(t, "file:///mnt/sda1/vmlinuz", opt.BootImage.URL.String())
	require.Equal(t, "root=/dev/sda1 ro", opt.BootArgs)
}

func TestGrub2Blscfg(t *testing.T) {
	mountPath := t.TempDir()
	dir := mountPath + "/loader/entries"
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(dir+"/ab-2.conf", []byte("title Fedora 2\nlinux /vmlinuz-2\ninitrd /initramfs-2.img\noptions root=/dev/sda1 ro\n"), 0644))
	require.NoError(t, os.WriteFile(dir+"/ab-10.conf", []byte("title Fedora 10\nlinux /vmlinuz-10\ninitrd /initramfs-10.img\n"), 0644))

	buf := []byte("blscfg\n")
	ctx := &parser.DiscoverContext{Device: &fakeDevice{id: "sda1", mountPath: mountPath}}
	p := &grub2.Parser{}

	require.NoError(t, p.Parse(ctx, buf))
	require.Len(t, ctx.Options(), 2)
	// Highest version first (strverscmp: 10 > 2).
	require.Equal(t, "Fedora 10", ctx.Options()[0].Name)
	require.Equal(t, "Fedora 2", ctx.Options()[1].Name)
}
