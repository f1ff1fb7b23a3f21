package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petitboot/petitboot/shared/api"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	store := NewYAMLStore(filepath.Join(t.TempDir(), "missing.yaml"))

	c, err := store.Load()
	require.NoError(t, err)
	require.True(t, c.AutobootEnabled)
	require.Equal(t, api.DefaultBootPriorities(), c.BootPriorities)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	store := NewYAMLStore(path)

	c := api.NewDefaultConfig()
	c.AutobootTimeout = 42
	c.PreferredConsole = "ttyS0"
	c.Interfaces["aa:bb:cc:dd:ee:ff"] = api.InterfaceConfig{HWAddr: "aa:bb:cc:dd:ee:ff", Mode: api.NetworkModeStatic, Address: "10.0.0.2/24"}

	require.NoError(t, store.Save(c))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, 42, loaded.AutobootTimeout)
	require.Equal(t, "ttyS0", loaded.PreferredConsole)
	require.Equal(t, "10.0.0.2/24", loaded.Interfaces["aa:bb:cc:dd:ee:ff"].Address)
}
