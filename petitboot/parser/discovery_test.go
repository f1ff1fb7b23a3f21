package parser_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petitboot/petitboot/petitboot/parser"
)

func TestDiscoverFileFirstMatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "grub.cfg"), []byte("menu"), 0644))

	path, data, ok := parser.DiscoverFile(dir, []string{"missing.cfg", "grub.cfg"}, nil)
	require.True(t, ok)
	require.Equal(t, filepath.Join(dir, "grub.cfg"), path)
	require.Equal(t, "menu", string(data))
}

func TestDiscoverFileSkipsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.cfg"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "real.cfg"), []byte("x"), 0644))

	_, data, ok := parser.DiscoverFile(dir, []string{"empty.cfg", "real.cfg"}, nil)
	require.True(t, ok)
	require.Equal(t, "x", string(data))
}

func TestDiscoverFileNoneExist(t *testing.T) {
	dir := t.TempDir()
	_, _, ok := parser.DiscoverFile(dir, []string{"missing.cfg"}, nil)
	require.False(t, ok)
}

func TestDiscoverFileDedupesByInode(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "grub.cfg"), []byte("x"), 0644))
	require.NoError(t, os.Link(filepath.Join(dir, "grub.cfg"), filepath.Join(dir, "GRUB.CFG")))

	seen := map[[2]uint64]bool{}

	_, _, ok := parser.DiscoverFile(dir, []string{"grub.cfg"}, seen)
	require.True(t, ok)

	_, _, ok = parser.DiscoverFile(dir, []string{"GRUB.CFG"}, seen)
	require.False(t, ok)
}
