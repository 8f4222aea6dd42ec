package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marccolburn/poc-helper-menu/pkg/dispatch"
	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

var execCmd = &cobra.Command{
	Use:   "exec <host> -- <command...>",
	Short: "Run a command on a lab host",
	Long: `Run a command on a lab host and print its output.

The host is a hostname or a fragment of one. Linux containers in
containerlab labs are reached with docker exec (on the remote containerlab
host when one is set); everything else with SSH using the stored
credentials, prompting for any that are missing.

Arguments are quoted as needed when rejoined, so "sh -c 'a b'" reaches the
host intact. A single quoted argument is sent as written.

Examples:
  poclab -l dc1 exec r1 -- ip -br link
  poclab -l dc1 exec h1 -- sh -c 'ip addr show eth1 | grep inet'
  poclab -l core exec spine1 -- "show interfaces | no-more"
  poclab -l core exec spine1 -- show version`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		l, err := requireLab(ctx)
		if err != nil {
			return err
		}
		h, err := app.store.FindHost(ctx, l.Name, args[0])
		if err != nil {
			return err
		}

		res, err := app.dispatch.Execute(ctx, dispatch.Request{
			Lab:         l,
			Host:        h,
			Command:     commandLine(args[1:]),
			Description: "ad-hoc command",
		})
		if err != nil {
			return err
		}
		util.WithHost(l.Name, h.Hostname).Debugf("%s via %s in %s", res.Target, res.Route, res.Duration)
		fmt.Fprint(cmd.OutOrStdout(), res.Output)
		if res.Output != "" && !strings.HasSuffix(res.Output, "\n") {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		return nil
	},
}

// commandLine rebuilds the command from its argv, quoting arguments that
// need it. A single argument is taken as a full command line.
func commandLine(argv []string) string {
	if len(argv) == 1 {
		return argv[0]
	}
	return dispatch.JoinArgs(argv)
}

var connectCmd = &cobra.Command{
	Use:   "connect <host>",
	Short: "Open an interactive session on a lab host",
	Long: `Open an interactive session on a lab host.

Linux containers get a shell through docker exec -it; other hosts get an
SSH session. The terminal is attached until the session ends.

Examples:
  poclab -l dc1 connect r1
  poclab -l core connect leaf1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		l, err := requireLab(ctx)
		if err != nil {
			return err
		}
		h, err := app.store.FindHost(ctx, l.Name, args[0])
		if err != nil {
			return err
		}
		_, err = app.dispatch.Execute(ctx, dispatch.Request{
			Lab:         l,
			Host:        h,
			Interactive: true,
			Description: "interactive session",
		})
		return err
	},
}
