package url_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petitboot/petitboot/petitboot/url"
)

func TestParseFile(t *testing.T) {
	u := url.Parse("/boot/vmlinux")
	require.Equal(t, url.SchemeFile, u.Scheme)
	require.Equal(t, "/boot/vmlinux", u.Path)
	require.Equal(t, "/boot/", u.Dir)
	require.Equal(t, "vmlinux", u.File)
}

func TestParseHTTP(t *testing.T) {
	u := url.Parse("http://example.com:8080/images/vmlinux")
	require.Equal(t, url.SchemeHTTP, u.Scheme)
	require.Equal(t, "example.com", u.Host)
	require.Equal(t, "8080", u.Port)
	require.Equal(t, "/images/vmlinux", u.Path)
	require.Equal(t, "/images/", u.Dir)
	require.Equal(t, "vmlinux", u.File)
}

func TestParseRoundTrip(t *testing.T) {
	for _, full := range []string{
		"http://example.com/a/b/c",
		"tftp://10.0.0.1/pxelinux.cfg/default",
		"nfs://server/export/path",
	} {
		u := url.Parse(full)
		require.Equal(t, full, u.String())
	}
}

func TestCollapseLeadingSlashes(t *testing.T) {
	u := url.Parse("http://example.com///a/b")
	require.Equal(t, "/a/b", u.Path)
}

func TestJoinAbsolute(t *testing.T) {
	base := url.Parse("http://example.com/a/b/menu.cfg")
	joined := url.Join(base, "/other/path")
	require.Equal(t, "/other/path", joined.Path)
	require.Equal(t, "example.com", joined.Host)
}

func TestJoinRelative(t *testing.T) {
	base := url.Parse("http://example.com/a/b/menu.cfg")
	joined := url.Join(base, "vmlinux")
	require.Equal(t, "/a/b/vmlinux", joined.Path)
}

func TestJoinFileBase(t *testing.T) {
	base := url.Parse("/mnt/sda1/boot/grub/grub.cfg")
	joined := url.Join(base, "vmlinux")
	require.Equal(t, "/mnt/sda1/boot/grub/vmlinux", joined.Path)
	require.Equal(t, url.SchemeFile, joined.Scheme)
}
