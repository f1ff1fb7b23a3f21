package netmon

import (
	"net"
	"os"

	"github.com/petitboot/petitboot/petitboot/discover"
	"github.com/petitboot/petitboot/petitboot/parser/userevent"
	"github.com/petitboot/petitboot/shared/api"
	"github.com/petitboot/petitboot/shared/logger"
)

// UserEventSocket is the external user-event source of spec.md §6: a Unix
// datagram socket at SocketPath, decoded via petitboot/parser/userevent and
// normalized into the add/remove/boot-relevant calls on discover.Handler.
type UserEventSocket struct {
	SocketPath string
	Handler    *discover.Handler

	conn *net.UnixConn
	done chan struct{}
}

// NewUserEventSocket constructs a listener bound to socketPath.
func NewUserEventSocket(socketPath string, handler *discover.Handler) *UserEventSocket {
	return &UserEventSocket{SocketPath: socketPath, Handler: handler}
}

// Start binds the datagram socket and begins reading in the background.
func (s *UserEventSocket) Start() error {
	os.Remove(s.SocketPath)

	addr, err := net.ResolveUnixAddr("unixgram", s.SocketPath)
	if err != nil {
		return err
	}

	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return err
	}
	s.conn = conn
	s.done = make(chan struct{})

	if err := os.Chmod(s.SocketPath, 0660); err != nil {
		logger.Warn("netmon: could not chmod user-event socket", logger.Ctx{"path": s.SocketPath, "err": err})
	}

	go s.run()

	return nil
}

// Stop closes the datagram socket, ending the read loop (spec.md §5's
// "the user-event source is closed by dropping its waiter").
func (s *UserEventSocket) Stop() {
	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *UserEventSocket) run() {
	buf := make([]byte, userevent.MaxDatagram)

	for {
		n, err := s.conn.Read(buf)
		if err != nil {
			return
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])

		ev, err := userevent.Decode(payload)
		if err != nil {
			logger.Warn("netmon: malformed user-event datagram", logger.Ctx{"err": err})
			continue
		}

		s.dispatch(ev)
	}
}

func (s *UserEventSocket) dispatch(ev *userevent.Event) {
	switch ev.Action {
	case userevent.ActionAdd:
		s.Handler.OnDeviceAdd(&discover.Device{
			DeviceID:   ev.DeviceID,
			Type:       api.DeviceTypeUnknown,
			DevicePath: ev.Get("device"),
			UUID:       ev.Get("uuid"),
			Label:      ev.Get("label"),
			Params:     ev.Params,
		})
	case userevent.ActionRemove:
		s.Handler.OnDeviceRemove(ev.DeviceID)
	case userevent.ActionBoot:
		s.Handler.OnBootCommand(api.BootCommand{OptionID: ev.Get("option")}, s.Handler.ToolPaths)
	default:
		logger.Debug("netmon: unhandled user-event action", logger.Ctx{"action": ev.Action})
	}
}
