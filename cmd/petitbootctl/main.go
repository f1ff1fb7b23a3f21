// Command petitbootctl is a thin protocol peer of the Discover server
// (spec.md §6): it connects over the client socket, issues one action, and
// exits, or streams status when asked to watch.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	petitclient "github.com/petitboot/petitboot/client"
	"github.com/petitboot/petitboot/shared/api"
)

const defaultClientSocket = "/tmp/petitboot.ui"

type cmdGlobal struct {
	flagSocket string
}

func main() {
	global := &cmdGlobal{}

	app := &cobra.Command{
		Use:   "petitbootctl",
		Short: "Query and drive the petitboot discovery daemon",
	}
	app.SilenceUsage = true
	app.SilenceErrors = true
	app.PersistentFlags().StringVar(&global.flagSocket, "socket", defaultClientSocket, "Discover client socket path")

	app.AddCommand(global.cmdList())
	app.AddCommand(global.cmdBoot())
	app.AddCommand(global.cmdCancelDefault())
	app.AddCommand(global.cmdStatus())

	if err := app.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// connect dials the daemon and waits briefly for its connect-time
// snapshot to arrive before the caller reads Devices/StatusBacklog.
func (g *cmdGlobal) connect() (*petitclient.Client, error) {
	c, err := petitclient.Connect(g.flagSocket)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", g.flagSocket, err)
	}
	time.Sleep(100 * time.Millisecond)
	return c, nil
}

func (g *cmdGlobal) cmdList() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List discovered devices and their boot options",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.connect()
			if err != nil {
				return err
			}
			defer c.Close()

			for _, dev := range c.Devices() {
				fmt.Printf("%s\t%s\t%s\n", dev.ID, dev.Type, dev.Name)
				for _, opt := range dev.BootOptions {
					def := ""
					if opt.IsDefault {
						def = " (default)"
					}
					fmt.Printf("  %s\t%s%s\n", opt.ID, opt.Name, def)
				}
			}
			return nil
		},
	}
}

func (g *cmdGlobal) cmdBoot() *cobra.Command {
	var bootArgs, console string

	c := &cobra.Command{
		Use:   "boot <option-id>",
		Short: "Boot a discovered option",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.connect()
			if err != nil {
				return err
			}
			defer client.Close()

			return client.Boot(api.BootCommand{
				OptionID: args[0],
				BootArgs: bootArgs,
				Console:  console,
			})
		},
	}
	c.Flags().StringVar(&bootArgs, "args", "", "Override the option's kernel command line")
	c.Flags().StringVar(&console, "console", "", "Override the console device")
	return c
}

func (g *cmdGlobal) cmdCancelDefault() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel-default",
		Short: "Cancel the running default-boot countdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.connect()
			if err != nil {
				return err
			}
			defer c.Close()

			return c.CancelDefault()
		},
	}
}

func (g *cmdGlobal) cmdStatus() *cobra.Command {
	var follow bool

	c := &cobra.Command{
		Use:   "status",
		Short: "Print the status backlog, optionally following live updates",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.connect()
			if err != nil {
				return err
			}
			defer client.Close()

			for _, st := range client.StatusBacklog() {
				printStatus(st)
			}
			if !follow {
				return nil
			}

			done := make(chan struct{})
			target, err := client.AddHandler(0, func(ev petitclient.Event) {
				if ev.Status != nil {
					printStatus(*ev.Status)
				}
			})
			if err != nil {
				return err
			}
			defer client.RemoveHandler(target)

			go func() {
				client.Wait()
				close(done)
			}()
			<-done
			return nil
		},
	}
	c.Flags().BoolVarP(&follow, "follow", "f", false, "Keep the connection open and print new status lines")
	return c
}

func printStatus(st api.Status) {
	prefix := "info"
	if st.Type == api.StatusError {
		prefix = "error"
	}
	fmt.Printf("[%s] %s\n", prefix, st.Message)
}
