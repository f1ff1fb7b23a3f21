package syslinux_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petitboot/petitboot/petitboot/parser"
	"github.com/petitboot/petitboot/petitboot/parser/syslinux"
)

type fakeDevice struct {
	id        string
	mountPath string
}

func (d *fakeDevice) ID() string        { return d.id }
func (d *fakeDevice) MountPath() string { return d.mountPath }
func (d *fakeDevice) IsMounted() bool   { return true }

func TestSyslinuxBasicEntry(t *testing.T) {
	buf := []byte("DEFAULT linux\nAPPEND console=ttyS0\n\nLABEL linux\n\tLINUX /vmlinuz\n\tINITRD /initrd.img\n\tAPPEND root=/dev/sda1\n")

	ctx := &parser.DiscoverContext{Device: &fakeDevice{id: "sda1", mountPath: "/mnt/sda1"}}
	p := &syslinux.Parser{}

	require.NoError(t, p.Parse(ctx, buf))
	require.Len(t, ctx.Options(), 1)

	opt := ctx.Options()[0]
	require.Equal(t, "sda1#linux", opt.ID)
	require.Equal(t, "console=ttyS0 root=/dev/sda1", opt.BootArgs)
	require.Equal(t, "file:///mnt/sda1/vmlinuz", opt.BootImage.URL.String())
	require.True(t, opt.IsDefault)
}

func TestSyslinuxAppendDashSuppressesGlobal(t *testing.T) {
	buf := []byte("APPEND console=ttyS0\nLABEL a\nLINUX /vmlinuz\nAPPEND -\n")

	ctx := &parser.DiscoverContext{Device: &fakeDevice{id: "sda1", mountPath: "/mnt/sda1"}}
	p := &syslinux.Parser{}

	require.NoError(t, p.Parse(ctx, buf))
	require.Equal(t, "", ctx.Options()[0].BootArgs)
}

func TestSyslinuxUnsupportedExtensionIgnored(t *testing.T) {
	buf := []byte("LABEL menu\nKERNEL vesamenu.c32\n")

	ctx := &parser.DiscoverContext{Device: &fakeDevice{id: "sda1", mountPath: "/mnt/sda1"}}
	p := &syslinux.Parser{}

	require.NoError(t, p.Parse(ctx, buf))
	require.Len(t, ctx.Options(), 0)
}

func TestSyslinuxImplicitDisabledKeepsLabeled(t *testing.T) {
	// Every entry starts at a LABEL line, including entries read from
	// INCLUDEd files, so each has an explicit label; IMPLICIT 0 must not
	// drop a labeled entry.
	buf := []byte("IMPLICIT 0\nLABEL linux\nLINUX /vmlinuz\n")

	ctx := &parser.DiscoverContext{Device: &fakeDevice{id: "sda1", mountPath: "/mnt/sda1"}}
	p := &syslinux.Parser{}

	require.NoError(t, p.Parse(ctx, buf))
	require.Len(t, ctx.Options(), 1)
}

func TestSyslinuxInclude(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/extra.cfg", []byte("LABEL extra\nLINUX /extra.vmlinuz\n"), 0644))

	buf := []byte("LABEL linux\nLINUX /vmlinuz\nINCLUDE extra.cfg\n")

	ctx := &parser.DiscoverContext{Device: &fakeDevice{id: "sda1", mountPath: dir}}
	p := &syslinux.Parser{}

	require.NoError(t, p.Parse(ctx, buf))
	require.Len(t, ctx.Options(), 2)
	require.Equal(t, "linux", ctx.Options()[0].Name)
	require.Equal(t, "extra", ctx.Options()[1].Name)
}
