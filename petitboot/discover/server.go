package discover

import (
	"net"
	"os"
	"os/user"
	"strconv"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/petitboot/petitboot/petitboot/loader"
	"github.com/petitboot/petitboot/petitboot/wire"
	"github.com/petitboot/petitboot/shared/api"
	"github.com/petitboot/petitboot/shared/logger"
)

// mutatingActions requires UID 0 or an unexpired Authenticate grant when
// RestrictClients is set (spec.md §4.9).
var mutatingActions = map[wire.Action]bool{
	wire.ActionConfig:        true,
	wire.ActionReinit:        true,
	wire.ActionAddURL:        true,
	wire.ActionPluginInstall: true,
	wire.ActionTempAutoboot:  true,
}

// authExpiry is how long a successful Authenticate(Request) grants
// can_modify before it must be renewed (spec.md §4.9).
const authExpiry = 5 * time.Minute

// Server is the Discover server of spec.md §4.9: a Unix-domain stream
// socket that fans device/option/status state out to every connected
// client and enforces per-client authorization.
type Server struct {
	SocketPath      string
	GroupName       string
	RestrictClients bool
	PasswordHash    string

	Handler *Handler
	Loader  *loader.Loader

	listener net.Listener

	mu      sync.Mutex
	clients map[*client]struct{}

	devices []*api.Device
	status  []api.Status
	sysInfo api.SystemInfo
	plugins []api.PluginOption
}

type client struct {
	conn       *wire.Conn
	uid        uint32
	canModify  bool
	authExpiry time.Time
}

// NewServer constructs a Server bound to socketPath; it does not listen
// until Listen is called.
func NewServer(socketPath string, restrictClients bool, h *Handler) *Server {
	return &Server{
		SocketPath:      socketPath,
		RestrictClients: restrictClients,
		Handler:         h,
		clients:         map[*client]struct{}{},
	}
}

// Listen binds the Unix socket at mode 0660, group GroupName if set.
func (s *Server) Listen() error {
	os.Remove(s.SocketPath)

	l, err := net.Listen("unix", s.SocketPath)
	if err != nil {
		return err
	}
	s.listener = l

	if err := os.Chmod(s.SocketPath, 0660); err != nil {
		logger.Warn("failed to chmod discover socket", logger.Ctx{"path": s.SocketPath, "err": err})
	}

	if s.GroupName != "" {
		grp, err := user.LookupGroup(s.GroupName)
		if err != nil {
			logger.Warn("failed to look up discover socket group", logger.Ctx{"group": s.GroupName, "err": err})
		} else if gid, err := strconv.Atoi(grp.Gid); err == nil {
			if err := os.Chown(s.SocketPath, -1, gid); err != nil {
				logger.Warn("failed to chown discover socket", logger.Ctx{"path": s.SocketPath, "err": err})
			}
		}
	}

	return nil
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	uid, err := peerUID(conn)
	if err != nil {
		logger.Warn("discover: could not read peer credentials", logger.Ctx{"err": err})
		conn.Close()
		return
	}

	c := &client{conn: wire.NewConn(conn), uid: uid}
	if !s.RestrictClients || uid == 0 {
		c.canModify = true
		c.authExpiry = time.Now().Add(authExpiry)
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	s.sendSnapshot(c)

	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		msg, err := c.conn.ReadMessage()
		if err != nil {
			return // ProtocolError or EOF: close this client, server continues.
		}

		if !s.authorized(c, msg.Action) {
			s.sendStatus(c, api.Status{Type: api.StatusError, Message: "not authorized"})
			continue
		}

		s.dispatch(c, msg.Action, msg.Payload)
	}
}

// authorized implements spec.md §4.9's restrict_clients rule: when set,
// only UID 0, or a client whose Authenticate grant has not expired, may
// issue a mutating action.
func (s *Server) authorized(c *client, action wire.Action) bool {
	if !s.RestrictClients {
		return true
	}
	if !mutatingActions[action] {
		return true
	}
	if c.uid == 0 {
		return true
	}
	return c.canModify && time.Now().Before(c.authExpiry)
}

func (s *Server) dispatch(c *client, action wire.Action, payload []byte) {
	switch action {
	case wire.ActionBoot:
		cmd, err := wire.DecodeBootCommand(wire.NewDecoder(payload))
		if err != nil {
			return
		}
		s.Handler.OnBootCommand(*cmd, s.Handler.ToolPaths)
	case wire.ActionCancelDefault:
		s.Handler.CancelDefault()
	case wire.ActionAuthenticate:
		auth, err := wire.DecodeAuthenticate(wire.NewDecoder(payload))
		if err != nil {
			return
		}
		s.handleAuth(c, auth)
	case wire.ActionReinit:
		s.Handler.Reinit()
	case wire.ActionConfig:
		cfg, err := wire.DecodeConfig(wire.NewDecoder(payload))
		if err != nil {
			return
		}
		s.Handler.UpdateConfig(cfg)
	case wire.ActionAddURL:
		d := wire.NewDecoder(payload)
		rawURL, err := d.String()
		if err != nil {
			return
		}
		s.Handler.AddURL(rawURL, s.Loader)
	case wire.ActionPluginInstall:
		d := wire.NewDecoder(payload)
		rawURL, err := d.String()
		if err != nil {
			return
		}
		s.Handler.InstallPlugin(rawURL)
	case wire.ActionTempAutoboot:
		t, err := wire.DecodeTempAutoboot(wire.NewDecoder(payload))
		if err != nil {
			return
		}
		s.Handler.ApplyTempAutoboot(*t)
	}
}

func (s *Server) handleAuth(c *client, auth *api.Authenticate) {
	switch auth.Action {
	case api.AuthRequest:
		if s.PasswordHash == "" || auth.Password == s.PasswordHash {
			c.canModify = true
			c.authExpiry = time.Now().Add(authExpiry)
		}
	case api.AuthSet:
		if auth.Password == s.PasswordHash {
			s.PasswordHash = auth.NewPassword
		}
	case api.AuthDecrypt:
		// LUKS unlock routing to the device handler is outside this
		// server's scope; the handler exposes no unlock hook in this
		// build.
	}
}

// sendSnapshot implements spec.md §4.9's connect sequence: Authenticate
// (the can_modify this client was granted at accept), SystemInfo, Config,
// every current device with its boot options nested inline, the status
// backlog, then any installed plugins.
func (s *Server) sendSnapshot(c *client) {
	c.conn.WriteMessage(wire.ActionAuthenticate, wire.EncodeAuthenticate(&api.Authenticate{
		Action:   api.AuthRequest,
		Response: c.canModify,
	}))

	s.mu.Lock()
	defer s.mu.Unlock()

	c.conn.WriteMessage(wire.ActionSystemInfo, wire.EncodeSystemInfo(&s.sysInfo))

	if s.Handler != nil {
		c.conn.WriteMessage(wire.ActionConfig, wire.EncodeConfig(s.Handler.Config))
	}

	for _, dev := range s.devices {
		c.conn.WriteMessage(wire.ActionDeviceAdd, wire.EncodeDevice(dev))
	}
	for _, st := range s.status {
		c.conn.WriteMessage(wire.ActionStatus, wire.EncodeStatus(&st))
	}
	for _, p := range s.plugins {
		c.conn.WriteMessage(wire.ActionPluginOptionAdd, wire.EncodePluginOption(&p))
	}
}

func (s *Server) sendStatus(c *client, st api.Status) {
	c.conn.WriteMessage(wire.ActionStatus, wire.EncodeStatus(&st))
}

func (s *Server) broadcast(action wire.Action, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for c := range s.clients {
		c.conn.WriteMessage(action, data)
	}
}

// DeviceAdded implements Notifier.
func (s *Server) DeviceAdded(dev *Device) {
	wd := toWireDevice(dev)

	s.mu.Lock()
	s.devices = append(s.devices, &wd)
	s.mu.Unlock()

	s.broadcast(wire.ActionDeviceAdd, wire.EncodeDevice(&wd))
}

// DeviceRemoved implements Notifier.
func (s *Server) DeviceRemoved(deviceID string) {
	s.mu.Lock()
	for i, d := range s.devices {
		if d.ID == deviceID {
			s.devices = append(s.devices[:i], s.devices[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	data := wire.NewEncoder().String(deviceID).Payload()
	s.broadcast(wire.ActionDeviceRemove, data)
}

// BootOptionAdded implements Notifier.
func (s *Server) BootOptionAdded(deviceID string, opt api.BootOption) {
	s.mu.Lock()
	for _, d := range s.devices {
		if d.ID == deviceID {
			d.BootOptions = append(d.BootOptions, opt)
			break
		}
	}
	s.mu.Unlock()

	data := wire.NewEncoder().String(deviceID).Bytes(wire.EncodeBootOption(&opt)).Payload()
	s.broadcast(wire.ActionBootOptionAdd, data)
}

// Status implements Notifier; it also appends to the bounded backlog.
func (s *Server) Status(st api.Status) {
	s.mu.Lock()
	s.status = append(s.status, st)
	if len(s.status) > api.MaxStatusBacklog {
		s.status = s.status[len(s.status)-api.MaxStatusBacklog:]
	}
	s.mu.Unlock()

	s.broadcast(wire.ActionStatus, wire.EncodeStatus(&st))
}

// SystemInfoUpdated implements Notifier.
func (s *Server) SystemInfoUpdated(info api.SystemInfo) {
	s.mu.Lock()
	s.sysInfo = info
	s.mu.Unlock()

	s.broadcast(wire.ActionSystemInfo, wire.EncodeSystemInfo(&info))
}

// PluginOptionAdded implements Notifier.
func (s *Server) PluginOptionAdded(opt api.PluginOption) {
	s.mu.Lock()
	s.plugins = append(s.plugins, opt)
	s.mu.Unlock()

	s.broadcast(wire.ActionPluginOptionAdd, wire.EncodePluginOption(&opt))
}

// PluginsRemoved implements Notifier.
func (s *Server) PluginsRemoved() {
	s.mu.Lock()
	s.plugins = nil
	s.mu.Unlock()

	s.broadcast(wire.ActionPluginsRemove, nil)
}

func toWireDevice(dev *Device) api.Device {
	return api.Device{
		ID:         dev.DeviceID,
		Type:       dev.Type,
		UUID:       dev.UUID,
		Label:      dev.Label,
		DevicePath: dev.DevicePath,
		Params:     dev.Params,
		Mount: api.MountState{
			Mounted:   dev.mounted,
			MountPath: dev.mountPath,
			MountedRW: dev.mountedRW,
		},
	}
}

// peerUID reads SO_PEERCRED off a just-accepted Unix socket connection.
func peerUID(conn net.Conn) (uint32, error) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return 0, os.ErrInvalid
	}

	raw, err := uc.SyscallConn()
	if err != nil {
		return 0, err
	}

	var uid uint32
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		ucred, err := unix.GetsockoptUcred(int(fd), syscall.SOL_SOCKET, unix.SO_PEERCRED)
		if err != nil {
			sockErr = err
			return
		}
		uid = ucred.Uid
	})
	if err != nil {
		return 0, err
	}
	return uid, sockErr
}
