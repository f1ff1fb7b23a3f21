// Command petitboot-discoverd is the discovery daemon of spec.md §6: it
// loads persisted configuration, wires the device-handler pipeline to the
// Discover client socket and the udev/netlink/DHCP/user-event sources, and
// runs until terminated.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/petitboot/petitboot/petitboot/config"
	"github.com/petitboot/petitboot/petitboot/discover"
	"github.com/petitboot/petitboot/petitboot/loader"
	"github.com/petitboot/petitboot/petitboot/netmon"
	_ "github.com/petitboot/petitboot/petitboot/parser/grub2"
	_ "github.com/petitboot/petitboot/petitboot/parser/kboot"
	_ "github.com/petitboot/petitboot/petitboot/parser/pxe"
	_ "github.com/petitboot/petitboot/petitboot/parser/syslinux"
	_ "github.com/petitboot/petitboot/petitboot/parser/yaboot"
	"github.com/petitboot/petitboot/shared/api"
	"github.com/petitboot/petitboot/shared/logger"
)

const (
	defaultClientSocket = "/tmp/petitboot.ui"
	defaultEventSocket  = "/tmp/petitboot.ev"
	defaultConfigPath   = "/var/lib/petitboot/config.yaml"
	defaultStateDir     = "/var/lib/petitboot"
)

type cmdGlobal struct {
	flagDryRun     bool
	flagNoAutoboot bool
	flagLogPath    string
	flagDebug      bool
	flagConfigPath string
	flagStateDir   string
	flagClientSock string
	flagEventSock  string
	flagGroup      string
	flagRestrict   bool
}

func main() {
	global := &cmdGlobal{}

	app := &cobra.Command{
		Use:   "petitboot-discoverd",
		Short: "Boot option discovery daemon",
		RunE:  global.run,
	}
	app.SilenceUsage = true
	app.SilenceErrors = true

	app.Flags().BoolVar(&global.flagDryRun, "dry-run", false, "Discover and log but never kexec")
	app.Flags().BoolVar(&global.flagNoAutoboot, "no-autoboot", false, "Disable the default-boot countdown regardless of config")
	app.Flags().StringVar(&global.flagLogPath, "log", "", "Write log output to PATH instead of stderr")
	app.Flags().BoolVar(&global.flagDebug, "debug", false, "Enable debug-level logging")
	app.Flags().StringVar(&global.flagConfigPath, "config", defaultConfigPath, "Path to the persisted YAML config")
	app.Flags().StringVar(&global.flagStateDir, "state-dir", defaultStateDir, "Directory for daemon state")
	app.Flags().StringVar(&global.flagClientSock, "client-socket", defaultClientSocket, "Discover client socket path")
	app.Flags().StringVar(&global.flagEventSock, "event-socket", defaultEventSocket, "User-event datagram socket path")
	app.Flags().StringVar(&global.flagGroup, "group", "", "Group name allowed to access the client socket")
	app.Flags().BoolVar(&global.flagRestrict, "restrict-clients", true, "Restrict mutating actions to UID 0 and authenticated clients")

	if err := app.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (g *cmdGlobal) run(cmd *cobra.Command, args []string) error {
	if g.flagLogPath != "" {
		f, err := os.OpenFile(g.flagLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		logger.SetOutput(f)
	}
	logger.SetDebug(g.flagDebug)

	store := config.NewYAMLStore(g.flagConfigPath)
	cfg, err := store.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if g.flagNoAutoboot {
		cfg.AutobootEnabled = false
	}

	if err := os.MkdirAll(g.flagStateDir, 0755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}

	server := discover.NewServer(g.flagClientSock, g.flagRestrict, nil)
	server.GroupName = g.flagGroup
	server.Loader = loader.New(loader.DefaultPaths())

	handler := discover.NewHandler(g.flagStateDir, cfg, server, g.flagDryRun)
	server.Handler = handler

	if err := server.Listen(); err != nil {
		return fmt.Errorf("listening on %s: %w", g.flagClientSock, err)
	}
	defer server.Close()

	monitor := netmon.New(cfg, handler, g.flagEventSock, g.flagDryRun)
	if err := monitor.Start(); err != nil {
		return fmt.Errorf("starting event sources: %w", err)
	}
	defer monitor.Stop()

	logger.Info("petitboot-discoverd started", logger.Ctx{
		"client-socket": g.flagClientSock,
		"event-socket":  g.flagEventSock,
		"dry-run":       g.flagDryRun,
	})

	saveOnExit := func() {
		if err := store.Save(handler.Config); err != nil {
			logger.Warn("failed to save config on exit", logger.Ctx{"err": err})
		}
	}
	defer saveOnExit()

	server.Status(api.Status{Type: api.StatusInfo, Message: "petitboot-discoverd ready", Progress: -1})

	return server.Serve()
}
