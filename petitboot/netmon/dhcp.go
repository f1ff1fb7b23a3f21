package netmon

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/petitboot/petitboot/petitboot/process"
	petiturl "github.com/petitboot/petitboot/petitboot/url"
	"github.com/petitboot/petitboot/shared/logger"
)

// dhcpScript is a minimal udhcpc bound-script: it dumps the environment
// udhcpc populates on lease acquisition (ip, router, dns, pxeconffile, ...)
// as KEY=VALUE lines on stdout, which startDHCP's line callback parses, per
// spec.md §4.8's "listening for the pxeconffile option".
const dhcpScript = "#!/bin/sh\nenv\n"

// dhcpClient supervises one udhcpc child for a single interface.
type dhcpClient struct {
	iface string
	proc  *process.Process
}

// udhcpRegistry tracks the running dhcpClients so Network.Stop can cancel
// them all.
type udhcpRegistry struct {
	mu      sync.Mutex
	clients map[string]*dhcpClient
}

func newUdhcpRegistry() *udhcpRegistry {
	return &udhcpRegistry{clients: map[string]*dhcpClient{}}
}

func (r *udhcpRegistry) add(c *dhcpClient) {
	r.mu.Lock()
	r.clients[c.iface] = c
	r.mu.Unlock()
}

func (r *udhcpRegistry) stopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		if c.proc != nil {
			c.proc.Cancel()
		}
	}
}

// startDHCP spawns udhcpc for it.name and wires its lease environment back
// into n.onDHCPLease.
func (n *Network) startDHCP(it *iface) {
	if n.DryRun {
		logger.Info("dry-run: would run udhcpc", logger.Ctx{"iface": it.name})
		return
	}

	scriptPath, err := writeDHCPScript()
	if err != nil {
		logger.Warn("netmon: could not prepare udhcpc script", logger.Ctx{"err": err})
		return
	}

	env := map[string]string{}
	proc, err := process.Run(context.Background(), n.ToolPaths.Udhcpc,
		[]string{"-i", it.name, "-n", "-q", "-s", scriptPath},
		process.WithLineCallback(func(line string) {
			k, v, ok := strings.Cut(line, "=")
			if ok {
				env[k] = v
			}
		}),
	)
	if err != nil {
		logger.Warn("netmon: udhcpc failed to start", logger.Ctx{"iface": it.name, "err": err})
		return
	}

	client := &dhcpClient{iface: it.name, proc: proc}
	n.udhcp.add(client)

	go func() {
		proc.Wait()
		os.Remove(scriptPath)
		n.onDHCPLease(it, env)
	}()
}

func writeDHCPScript() (string, error) {
	f, err := os.CreateTemp("", "pb-udhcpc-")
	if err != nil {
		return "", err
	}
	path := f.Name()

	if _, err := f.WriteString(dhcpScript); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	f.Close()

	if err := os.Chmod(path, 0755); err != nil {
		os.Remove(path)
		return "", err
	}

	return path, nil
}

// onDHCPLease implements spec.md §4.8's DHCP completion: ensure resolv.conf
// reflects the leased DNS servers, and if the lease carries a pxeconffile
// option, fetch and parse it as a pxe config (spec.md §4.5's pxe
// paragraph) by calling Handler.OnURL for the interface's "net-" device.
func (n *Network) onDHCPLease(it *iface, env map[string]string) {
	if dns := env["dns"]; dns != "" {
		n.ensureResolvConf(strings.Fields(dns))
	}

	if ip := env["ip"]; ip != "" {
		it.address = ip
		n.Handler.RegisterInterface(it.hwAddr, it.name, true, it.address)
	}

	deviceID := "net-" + it.name

	conf := env["pxeconffile"]
	if conf == "" {
		return
	}

	server := env["serverid"]
	if server == "" {
		server = env["siaddr"]
	}

	confURL := petiturl.Parse(fmt.Sprintf("tftp://%s/%s", server, strings.TrimPrefix(conf, "/")))

	n.Handler.OnURL(deviceID, confURL, n.Loader)
}
