package userevent_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petitboot/petitboot/petitboot/parser/userevent"
)

func TestDecodeAdd(t *testing.T) {
	payload := []byte("add@eth0\x00mac=aa:bb:cc:dd:ee:ff\x00ip=192.168.1.10\x00")

	ev, err := userevent.Decode(payload)
	require.NoError(t, err)
	require.Equal(t, userevent.ActionAdd, ev.Action)
	require.Equal(t, "eth0", ev.DeviceID)
	require.Equal(t, "aa:bb:cc:dd:ee:ff", ev.Get("mac"))
	require.Equal(t, "192.168.1.10", ev.Get("ip"))
}

// TestDecodeRemove reproduces spec.md §8 scenario 6's literal payload.
func TestDecodeRemove(t *testing.T) {
	ev, err := userevent.Decode([]byte("remove@eth0\x00"))
	require.NoError(t, err)
	require.Equal(t, userevent.ActionRemove, ev.Action)
	require.Equal(t, "eth0", ev.DeviceID)
	require.Empty(t, ev.Params)
}

func TestDecodeRejectsMissingAt(t *testing.T) {
	_, err := userevent.Decode([]byte("addeth0\x00"))
	require.Error(t, err)
}

func TestDecodeRejectsUnknownAction(t *testing.T) {
	_, err := userevent.Decode([]byte("bogus@eth0\x00"))
	require.Error(t, err)
}

func TestDecodeRejectsOversized(t *testing.T) {
	big := make([]byte, userevent.MaxDatagram+1)
	_, err := userevent.Decode(big)
	require.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ev := &userevent.Event{Action: userevent.ActionURL, DeviceID: "sda1", Params: map[string]string{"url": "http://x/y"}}
	decoded, err := userevent.Decode(userevent.Encode(ev))
	require.NoError(t, err)
	require.Equal(t, ev.Action, decoded.Action)
	require.Equal(t, ev.DeviceID, decoded.DeviceID)
	require.Equal(t, ev.Params, decoded.Params)
}
