package netmon

import (
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	vnetlink "github.com/vishvananda/netlink"

	"github.com/petitboot/petitboot/petitboot/discover"
	"github.com/petitboot/petitboot/petitboot/loader"
	"github.com/petitboot/petitboot/shared/api"
	"github.com/petitboot/petitboot/shared/logger"
)

// IfState is one of the four states of spec.md §4.8's per-interface state
// machine.
type IfState int

const (
	IfNew IfState = iota
	IfUpWaitingLink
	IfConfigured
	IfIgnored
)

func (s IfState) String() string {
	switch s {
	case IfNew:
		return "new"
	case IfUpWaitingLink:
		return "up-waiting-link"
	case IfConfigured:
		return "configured"
	case IfIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// ToolPaths is the subset of spec.md §6's external tools the network
// manager invokes.
type ToolPaths struct {
	IP     string
	Udhcpc string
}

// DefaultToolPaths returns the conventional absolute paths.
func DefaultToolPaths() ToolPaths {
	return ToolPaths{IP: "/sbin/ip", Udhcpc: "/sbin/udhcpc"}
}

// iface tracks one network interface's state-machine position.
type iface struct {
	name    string
	hwAddr  string
	state   IfState
	wasUp   bool
	address string

	dhcp *dhcpClient
}

// Network owns the per-interface state machine of spec.md §4.8: it
// classifies interfaces against Config.Interfaces, brings links up,
// invokes DHCP or static configuration, manages /etc/resolv.conf, and
// feeds each interface into the discovery handler as a DiscoverDevice.
type Network struct {
	Config    *api.Config
	Handler   *discover.Handler
	ToolPaths ToolPaths
	DryRun    bool
	Loader    *loader.Loader

	ResolvConfPath string

	mu    sync.Mutex
	ifs   map[string]*iface
	link  *LinkMonitor
	udhcp *udhcpRegistry
}

// NewNetwork constructs a Network bound to handler and cfg.
func NewNetwork(cfg *api.Config, handler *discover.Handler, dryRun bool) *Network {
	return &Network{
		Config:         cfg,
		Handler:        handler,
		ToolPaths:      DefaultToolPaths(),
		DryRun:         dryRun,
		Loader:         loader.New(loader.DefaultPaths()),
		ResolvConfPath: "/etc/resolv.conf",
		ifs:            map[string]*iface{},
		udhcp:          newUdhcpRegistry(),
	}
}

// Start brings up the netlink link monitor; link events drive the rest of
// the state machine via onLink.
func (n *Network) Start() error {
	n.link = NewLinkMonitor(n)
	return n.link.Start()
}

// Stop tears down the link monitor and any outstanding DHCP clients.
func (n *Network) Stop() {
	if n.link != nil {
		n.link.Stop()
	}
	n.udhcp.stopAll()
}

// onLink is the LinkMonitor callback for every RTM_NEWLINK/RTM_DELLINK
// observation, including the initial RTM_GETLINK enumeration.
func (n *Network) onLink(link vnetlink.Link) {
	attrs := link.Attrs()
	name := attrs.Name

	n.mu.Lock()
	it, known := n.ifs[name]
	if !known {
		it = &iface{name: name, hwAddr: attrs.HardwareAddr.String(), state: IfNew}
		n.ifs[name] = it
	}
	n.mu.Unlock()

	up := attrs.Flags&net.FlagUp != 0

	if attrs.Flags&net.FlagLoopback != 0 {
		if it.state != IfConfigured {
			it.state = IfConfigured
			logger.Info("netmon: loopback up", logger.Ctx{"iface": name})
		}
		return
	}

	if !known {
		n.classify(it)
	}

	switch it.state {
	case IfIgnored:
		return
	case IfNew:
		if err := vnetlink.LinkSetUp(link); err != nil {
			logLinkErr(name, err)
			return
		}
		it.state = IfUpWaitingLink
	case IfUpWaitingLink:
		if up && !it.wasUp {
			n.configure(it)
		}
	case IfConfigured:
		if !up && it.wasUp {
			it.state = IfNew
			logger.Info("netmon: link down, reverting to new", logger.Ctx{"iface": name})
		}
	}

	it.wasUp = up
}

// classify implements spec.md §4.8's ignore rule: a hwaddr entry marked
// ignore, or (in manual mode) the absence of any entry, moves the
// interface straight to Ignored.
func (n *Network) classify(it *iface) {
	cfg, ok := n.Config.Interfaces[it.hwAddr]
	if ok && cfg.Ignore {
		it.state = IfIgnored
		return
	}
	if !ok && n.Config.ManualNetworkMode {
		it.state = IfIgnored
		return
	}
	it.state = IfNew
}

// configure dispatches to DHCP or static configuration depending on the
// interface's Mode, then marks it Configured and registers it as a
// DiscoverDevice.
func (n *Network) configure(it *iface) {
	cfg, hasCfg := n.Config.Interfaces[it.hwAddr]

	if hasCfg && cfg.Mode == api.NetworkModeStatic {
		if err := n.configureStatic(it, cfg); err != nil {
			logger.Warn("netmon: static config failed", logger.Ctx{"iface": it.name, "err": err})
			return
		}
		n.ensureResolvConf(cfg.DNSServer)
	} else {
		n.startDHCP(it)
	}

	it.state = IfConfigured
	n.registerDevice(it)
}

func (n *Network) configureStatic(it *iface, cfg api.InterfaceConfig) error {
	if err := n.runIP("address", "add", cfg.Address, "dev", it.name); err != nil {
		return err
	}
	if cfg.Gateway != "" {
		if err := n.runIP("route", "add", "default", "via", cfg.Gateway, "dev", it.name); err != nil {
			return err
		}
	}
	it.address, _, _ = strings.Cut(cfg.Address, "/")
	return nil
}

func (n *Network) runIP(args ...string) error {
	if n.DryRun {
		logger.Info("dry-run: would run ip", logger.Ctx{"args": args})
		return nil
	}

	_, code, err := runSync(n.ToolPaths.IP, args)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("netmon: ip %v exited %d", args, code)
	}
	return nil
}

// registerDevice turns a configured interface into a network
// DiscoverDevice and hands it to the discovery handler.
func (n *Network) registerDevice(it *iface) {
	dev := &discover.Device{
		DeviceID: "net-" + it.name,
		Type:     api.DeviceTypeNetwork,
		Params:   map[string]string{"MAC": it.hwAddr, "IFNAME": it.name},
	}
	n.Handler.OnDeviceAdd(dev)
	n.Handler.RegisterInterface(it.hwAddr, it.name, true, it.address)
}

// ensureResolvConf implements spec.md §4.8's DNS step: append any
// configured server not already present in ResolvConfPath.
func (n *Network) ensureResolvConf(servers []string) {
	if len(servers) == 0 {
		return
	}
	if n.DryRun {
		logger.Info("dry-run: would update resolv.conf", logger.Ctx{"servers": servers})
		return
	}

	existing, _ := os.ReadFile(n.ResolvConfPath)
	present := map[string]bool{}
	for _, line := range strings.Split(string(existing), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[0] == "nameserver" {
			present[fields[1]] = true
		}
	}

	var add strings.Builder
	for _, s := range servers {
		if !present[s] {
			add.WriteString("nameserver ")
			add.WriteString(s)
			add.WriteString("\n")
		}
	}
	if add.Len() == 0 {
		return
	}

	f, err := os.OpenFile(n.ResolvConfPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		logger.Warn("netmon: could not update resolv.conf", logger.Ctx{"err": err})
		return
	}
	defer f.Close()
	f.WriteString(add.String())
}
