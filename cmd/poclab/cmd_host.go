package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marccolburn/poc-helper-menu/pkg/cli"
	"github.com/marccolburn/poc-helper-menu/pkg/model"
	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Manage lab hosts",
	Long: `Manage the hosts of the selected lab.

Hosts normally come from 'poclab import'. Use 'host add' for a device that
is in no inventory file. A console given without a domain is qualified
interactively, as on import.

Examples:
  poclab -l core host list
  poclab -l core host add edge1 --ip 10.0.0.11 --os junos --user netops --console cs1:7003`,
}

var (
	hostIP       string
	hostOS       string
	hostUser     string
	hostPassword string
	hostImage    string
	hostConsole  string
)

var hostAddCmd = &cobra.Command{
	Use:   "add <hostname>",
	Short: "Add a host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		l, err := requireLab(ctx)
		if err != nil {
			return err
		}
		h := &model.Host{
			Hostname:  args[0],
			IPAddress: hostIP,
			NetworkOS: hostOS,
			Username:  hostUser,
			Password:  hostPassword,
			ImageType: hostImage,
			Console:   hostConsole,
		}
		if err := app.importer().AddHost(ctx, l.Name, h); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Host %s added to lab %s\n", cli.Bold(h.Hostname), l.Name)
		return nil
	},
}

var hostListCmd = &cobra.Command{
	Use:   "list",
	Short: "List hosts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		l, err := requireLab(ctx)
		if err != nil {
			return err
		}
		hosts, err := app.store.ListHosts(ctx, l.Name)
		if err != nil {
			return err
		}
		if len(hosts) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No hosts in lab %s\n", l.Name)
			return nil
		}
		printHosts(cmd, hosts)
		return nil
	},
}

func printHosts(cmd *cobra.Command, hosts []*model.Host) {
	t := cli.NewTableTo(cmd.OutOrStdout(), "HOSTNAME", "IP", "OS", "USER", "IMAGE", "CONSOLE")
	for _, h := range hosts {
		t.Row(h.Hostname,
			util.ValueOr(h.IPAddress, "-"),
			util.ValueOr(h.NetworkOS, "-"),
			util.ValueOr(h.Username, "-"),
			util.ValueOr(h.ImageType, "-"),
			util.ValueOr(h.Console, "-"))
	}
	t.Flush()
}

func init() {
	hostAddCmd.Flags().StringVar(&hostIP, "ip", "", "Management IP address")
	hostAddCmd.Flags().StringVar(&hostOS, "os", "", "Network OS driver (eos, junos, nxos, ios, linux, ...)")
	hostAddCmd.Flags().StringVar(&hostUser, "user", "", "SSH username")
	hostAddCmd.Flags().StringVar(&hostPassword, "password", "", "SSH password (prompted at use when empty)")
	hostAddCmd.Flags().StringVar(&hostImage, "image", "", "Image type")
	hostAddCmd.Flags().StringVar(&hostConsole, "console", "", "Console server host[:port]")

	hostCmd.AddCommand(hostAddCmd, hostListCmd)
}
