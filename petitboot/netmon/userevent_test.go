package netmon

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petitboot/petitboot/petitboot/discover"
	"github.com/petitboot/petitboot/petitboot/parser/userevent"
	"github.com/petitboot/petitboot/shared/api"
)

type fakeNotifier struct {
	added   []string
	removed []string
}

func (n *fakeNotifier) DeviceAdded(dev *discover.Device)              { n.added = append(n.added, dev.DeviceID) }
func (n *fakeNotifier) DeviceRemoved(id string)                       { n.removed = append(n.removed, id) }
func (n *fakeNotifier) BootOptionAdded(deviceID string, o api.BootOption) {}
func (n *fakeNotifier) Status(s api.Status)                           {}
func (n *fakeNotifier) SystemInfoUpdated(info api.SystemInfo)         {}
func (n *fakeNotifier) PluginOptionAdded(opt api.PluginOption)        {}
func (n *fakeNotifier) PluginsRemoved()                               {}

func TestUserEventDispatchAddAndRemove(t *testing.T) {
	notifier := &fakeNotifier{}
	handler := discover.NewHandler(t.TempDir(), api.NewDefaultConfig(), notifier, true)

	s := &UserEventSocket{Handler: handler}

	s.dispatch(&userevent.Event{Action: userevent.ActionAdd, DeviceID: "eth0", Params: map[string]string{}})
	require.Contains(t, notifier.added, "eth0")

	s.dispatch(&userevent.Event{Action: userevent.ActionRemove, DeviceID: "eth0"})
	require.Contains(t, notifier.removed, "eth0")
}
