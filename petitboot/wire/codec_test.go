package wire_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petitboot/petitboot/petitboot/wire"
	"github.com/petitboot/petitboot/shared/api"
)

func TestBootOptionRoundTrip(t *testing.T) {
	opt := &api.BootOption{ID: "x", Name: "y", BootArgs: "a b"}

	payload := wire.EncodeBootOption(opt)
	got, err := wire.DecodeBootOption(wire.NewDecoder(payload))
	require.NoError(t, err)
	require.Equal(t, opt, got)
}

func TestDeviceRoundTrip(t *testing.T) {
	dev := &api.Device{
		ID:   "sda1",
		Name: "Disk 1",
		BootOptions: []api.BootOption{
			{ID: "sda1#linux", Name: "linux", BootArgs: "root=LABEL=boot", IsDefault: true},
		},
	}

	payload := wire.EncodeDevice(dev)
	got, err := wire.DecodeDevice(wire.NewDecoder(payload))
	require.NoError(t, err)
	require.Equal(t, dev, got)
}

func TestBootCommandRoundTrip(t *testing.T) {
	cmd := &api.BootCommand{OptionID: "sda1#linux", BootArgs: "console=ttyS0"}

	payload := wire.EncodeBootCommand(cmd)
	got, err := wire.DecodeBootCommand(wire.NewDecoder(payload))
	require.NoError(t, err)
	require.Equal(t, cmd, got)
}

func TestStatusRoundTrip(t *testing.T) {
	s := &api.Status{Type: api.StatusInfo, Message: "Booting in 5 sec", Progress: -1, Detail: "d"}

	payload := wire.EncodeStatus(s)
	got, err := wire.DecodeStatus(wire.NewDecoder(payload))
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestConfigRoundTrip(t *testing.T) {
	c := api.NewDefaultConfig()
	c.Interfaces["aa:bb:cc:dd:ee:ff"] = api.InterfaceConfig{
		Mode:      api.NetworkModeStatic,
		Address:   "10.0.0.5/24",
		DNSServer: []string{"8.8.8.8"},
	}

	payload := wire.EncodeConfig(c)
	got, err := wire.DecodeConfig(wire.NewDecoder(payload))
	require.NoError(t, err)
	require.Equal(t, c, got)
}

func TestSystemInfoRoundTrip(t *testing.T) {
	s := &api.SystemInfo{
		Type:       "ppc64le",
		Interfaces: []api.InterfaceInfo{{MAC: "aa:bb", Name: "eth0", LinkUp: true}},
		BlockDevices: []api.BlockDeviceInfo{
			{Name: "sda1", UUID: "AAA", MountPoint: "/mnt/sda1"},
		},
	}

	payload := wire.EncodeSystemInfo(s)
	got, err := wire.DecodeSystemInfo(wire.NewDecoder(payload))
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestAuthenticateRoundTrip(t *testing.T) {
	a := &api.Authenticate{Action: api.AuthSet, OldPassword: "old", NewPassword: "new"}

	payload := wire.EncodeAuthenticate(a)
	got, err := wire.DecodeAuthenticate(wire.NewDecoder(payload))
	require.NoError(t, err)
	require.Equal(t, a, got)
}

func TestWriteReadMessage(t *testing.T) {
	var buf bytes.Buffer

	err := wire.WriteMessage(&buf, wire.ActionStatus, []byte("hello"))
	require.NoError(t, err)

	msg, err := wire.ReadMessage(&buf)
	require.NoError(t, err)
	require.Equal(t, wire.ActionStatus, msg.Action)
	require.Equal(t, []byte("hello"), msg.Payload)
}

func TestReadMessageRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0})                   // action
	buf.Write([]byte{0xff, 0xff, 0xff, 0xff})       // payload_len, far beyond MaxPayload

	_, err := wire.ReadMessage(&buf)
	require.ErrorIs(t, err, wire.ErrPayloadTooLarge)
}
