package kboot_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petitboot/petitboot/petitboot/parser"
	"github.com/petitboot/petitboot/petitboot/parser/kboot"
)

type fakeDevice struct {
	id        string
	mountPath string
}

func (d *fakeDevice) ID() string        { return d.id }
func (d *fakeDevice) MountPath() string { return d.mountPath }
func (d *fakeDevice) IsMounted() bool   { return true }

// TestKbootSingleEntry reproduces spec.md §8 scenario 1 verbatim.
func TestKbootSingleEntry(t *testing.T) {
	buf := []byte("default=linux\nroot=/dev/sda2\nlinux='/vmlinux root=LABEL=boot initrd=/initrd'\n")

	ctx := &parser.DiscoverContext{Device: &fakeDevice{id: "sda1", mountPath: "/mnt/sda1"}}
	p := kboot.New(kboot.Name, []string{"/etc/kboot.conf"})

	require.NoError(t, p.Parse(ctx, buf))
	require.Len(t, ctx.Options(), 1)

	opt := ctx.Options()[0]
	require.Equal(t, "sda1#linux", opt.ID)
	require.Equal(t, "root=LABEL=boot", opt.BootArgs)
	require.Equal(t, "file:///mnt/sda1/vmlinux", opt.BootImage.URL.String())
	require.Equal(t, "file:///mnt/sda1/initrd", opt.Initrd.URL.String())
	require.True(t, opt.IsDefault)
}

func TestKbootAppendConcatenates(t *testing.T) {
	buf := []byte("image=/vmlinux\n\tlabel=linux\n\tappend=\"console=ttyS0\"\n")

	ctx := &parser.DiscoverContext{Device: &fakeDevice{id: "sda1", mountPath: "/mnt/sda1"}}
	p := kboot.New(kboot.Name, nil)

	require.NoError(t, p.Parse(ctx, buf))
	require.Len(t, ctx.Options(), 1)
	require.Equal(t, "console=ttyS0", ctx.Options()[0].BootArgs)
}

func TestKbootGlobalsPropagate(t *testing.T) {
	buf := []byte("initrd=/initrd.img\nimage=/vmlinux\n\tlabel=linux\n")

	ctx := &parser.DiscoverContext{Device: &fakeDevice{id: "sda1", mountPath: "/mnt/sda1"}}
	p := kboot.New(kboot.Name, nil)

	require.NoError(t, p.Parse(ctx, buf))
	require.Equal(t, "file:///mnt/sda1/initrd.img", ctx.Options()[0].Initrd.URL.String())
}
