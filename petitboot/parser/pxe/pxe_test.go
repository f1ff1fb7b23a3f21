package pxe_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petitboot/petitboot/petitboot/parser"
	"github.com/petitboot/petitboot/petitboot/parser/pxe"
	petiturl "github.com/petitboot/petitboot/petitboot/url"
)

type fakeDevice struct{ id string }

func (d *fakeDevice) ID() string        { return d.id }
func (d *fakeDevice) MountPath() string { return "" }
func (d *fakeDevice) IsMounted() bool   { return false }

func TestPxeEntryResolvesAgainstConfURL(t *testing.T) {
	buf := []byte("APPEND console=ttyS0\nLABEL linux\nKERNEL vmlinuz\nAPPEND root=/dev/nfs\n")

	ctx := &parser.DiscoverContext{
		Device:  &fakeDevice{id: "eth0"},
		ConfURL: petiturl.Parse("tftp://10.0.0.1/pxelinux.cfg/default"),
	}
	p := &pxe.Parser{}

	require.NoError(t, p.Parse(ctx, buf))
	require.Len(t, ctx.Options(), 1)

	opt := ctx.Options()[0]
	require.Equal(t, "eth0#linux", opt.ID)
	require.Equal(t, "console=ttyS0 root=/dev/nfs", opt.BootArgs)
	require.Equal(t, "tftp://10.0.0.1/pxelinux.cfg/vmlinuz", opt.BootImage.URL.String())
}
