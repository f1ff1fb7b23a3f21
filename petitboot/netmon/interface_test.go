package netmon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petitboot/petitboot/shared/api"
)

func TestClassifyIgnoredEntry(t *testing.T) {
	cfg := &api.Config{Interfaces: map[string]api.InterfaceConfig{
		"aa:bb:cc:dd:ee:ff": {HWAddr: "aa:bb:cc:dd:ee:ff", Ignore: true},
	}}
	n := &Network{Config: cfg}

	it := &iface{name: "eth0", hwAddr: "aa:bb:cc:dd:ee:ff"}
	n.classify(it)

	require.Equal(t, IfIgnored, it.state)
}

func TestClassifyManualModeWithNoEntry(t *testing.T) {
	cfg := &api.Config{ManualNetworkMode: true, Interfaces: map[string]api.InterfaceConfig{}}
	n := &Network{Config: cfg}

	it := &iface{name: "eth1", hwAddr: "11:22:33:44:55:66"}
	n.classify(it)

	require.Equal(t, IfIgnored, it.state)
}

func TestClassifyDefaultsToNew(t *testing.T) {
	cfg := &api.Config{Interfaces: map[string]api.InterfaceConfig{}}
	n := &Network{Config: cfg}

	it := &iface{name: "eth2", hwAddr: "de:ad:be:ef:00:01"}
	n.classify(it)

	require.Equal(t, IfNew, it.state)
}

func TestEnsureResolvConfAppendsMissingServers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resolv.conf")
	require.NoError(t, os.WriteFile(path, []byte("nameserver 1.1.1.1\n"), 0644))

	n := &Network{ResolvConfPath: path}
	n.ensureResolvConf([]string{"1.1.1.1", "8.8.8.8"})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "nameserver 1.1.1.1")
	require.Contains(t, string(data), "nameserver 8.8.8.8")

	count := 0
	for _, b := range data {
		if b == '\n' {
			count++
		}
	}
	require.Equal(t, 2, count)
}

func TestEnsureResolvConfDryRunSkipsWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resolv.conf")
	require.NoError(t, os.WriteFile(path, []byte(""), 0644))

	n := &Network{ResolvConfPath: path, DryRun: true}
	n.ensureResolvConf([]string{"8.8.8.8"})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Empty(t, string(data))
}
