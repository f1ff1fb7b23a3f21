package ioutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAtomicWriteFileCreatesAndReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	require.NoError(t, AtomicWriteFile(path, []byte("a: 1\n"), 0644))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "a: 1\n", string(content))

	require.NoError(t, AtomicWriteFile(path, []byte("a: 2\n"), 0644))
	content, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "a: 2\n", string(content))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestAtomicWriteFileBadDirFails(t *testing.T) {
	err := AtomicWriteFile(filepath.Join(t.TempDir(), "missing-dir", "x"), []byte("x"), 0644)
	require.Error(t, err)
}
