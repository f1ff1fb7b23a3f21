package client

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petitboot/petitboot/petitboot/wire"
	"github.com/petitboot/petitboot/shared/api"
)

func TestDecodeEventDeviceAdd(t *testing.T) {
	dev := &api.Device{ID: "sda1", Name: "disk"}
	msg := &wire.Message{Action: wire.ActionDeviceAdd, Payload: wire.EncodeDevice(dev)}

	ev, ok := decodeEvent(msg)
	require.True(t, ok)
	require.Equal(t, "sda1", ev.Device.ID)
	require.Equal(t, "sda1", ev.DeviceID)
}

func TestDecodeEventBootOptionAdd(t *testing.T) {
	opt := &api.BootOption{ID: "x", Name: "y", BootArgs: "a b"}
	payload := wire.NewEncoder().String("sda1").Bytes(wire.EncodeBootOption(opt)).Payload()
	msg := &wire.Message{Action: wire.ActionBootOptionAdd, Payload: payload}

	ev, ok := decodeEvent(msg)
	require.True(t, ok)
	require.Equal(t, "sda1", ev.DeviceID)
	require.Equal(t, "x", ev.BootOption.ID)
	require.Equal(t, "a b", ev.BootOption.BootArgs)
}

func TestDecodeEventUnknownActionIsSkipped(t *testing.T) {
	msg := &wire.Message{Action: wire.ActionBoot, Payload: nil}

	_, ok := decodeEvent(msg)
	require.False(t, ok)
}

func TestSnapshotTracksDeviceLifecycle(t *testing.T) {
	s := newSnapshot()

	s.apply(Event{Action: wire.ActionDeviceAdd, Device: &api.Device{ID: "sda1"}})
	require.Len(t, s.devices, 1)

	s.apply(Event{Action: wire.ActionBootOptionAdd, DeviceID: "sda1", BootOption: &api.BootOption{ID: "opt1"}})
	require.Len(t, s.devices["sda1"].BootOptions, 1)

	s.apply(Event{Action: wire.ActionDeviceRemove, DeviceID: "sda1"})
	require.Len(t, s.devices, 0)
}
