package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marccolburn/poc-helper-menu/pkg/cli"
	"github.com/marccolburn/poc-helper-menu/pkg/model"
	"github.com/marccolburn/poc-helper-menu/pkg/prompt"
	"github.com/marccolburn/poc-helper-menu/pkg/store"
)

var labCmd = &cobra.Command{
	Use:   "lab",
	Short: "Manage labs",
	Long: `Manage labs.

A lab is either a hardware lab (physical devices reached over SSH) or a
containerlab lab. Containerlab labs may run on a remote host; set it with
set-remote so containerlab and docker commands run there over SSH.

Examples:
  poclab lab create dc1 --type containerlab
  poclab lab create core --type hardware --description "Core PoC rack"
  poclab lab set-remote dc1 clab01.example.net lab --topology /home/lab/topos
  poclab lab list
  poclab lab show dc1
  poclab lab set dc1 --description "EVPN PoC"
  poclab lab delete dc1`,
}

var (
	labType        string
	labSetType     string
	labDescription string
	labRemoteHost  string
	labRemoteUser  string
	labTopology    string
	labClearRemote bool
	labYes         bool
)

var labCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a lab",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l := &model.Lab{
			Name:         args[0],
			Type:         model.LabType(labType),
			Description:  labDescription,
			RemoteHost:   labRemoteHost,
			RemoteUser:   labRemoteUser,
			TopologyPath: labTopology,
		}
		if l.IsHardware() && (l.RemoteHost != "" || l.TopologyPath != "") {
			return fmt.Errorf("remote host and topology path only apply to containerlab labs")
		}

		if err := inTx(cmd, func(tx store.Tx) error { return tx.CreateLab(l) }); err != nil {
			return fmt.Errorf("creating lab '%s': %w", l.Name, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Lab %s created (%s)\n", cli.Bold(l.Name), l.Type)
		return nil
	},
}

var labListCmd = &cobra.Command{
	Use:   "list",
	Short: "List labs with host and link counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		labs, err := app.store.ListLabs(ctx)
		if err != nil {
			return err
		}
		if len(labs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No labs found")
			return nil
		}

		t := cli.NewTableTo(cmd.OutOrStdout(), "LAB", "TYPE", "HOSTS", "LINKS", "REMOTE")
		for _, l := range labs {
			hosts, err := app.store.ListHosts(ctx, l.Name)
			if err != nil {
				return err
			}
			links, err := app.store.ListLinks(ctx, l.Name)
			if err != nil {
				return err
			}
			t.Row(l.Name, string(l.Type), fmt.Sprint(len(hosts)), fmt.Sprint(len(links)), cli.Location(l))
		}
		t.Flush()
		return nil
	},
}

var labShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show lab details, hosts and links",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if len(args) == 1 {
			app.labName = args[0]
		}
		l, err := requireLab(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "Lab: %s\n", cli.Bold(l.Name))
		fmt.Fprintf(out, "  %s %s\n", cli.DotPad("Type", 20), l.Type)
		if l.Description != "" {
			fmt.Fprintf(out, "  %s %s\n", cli.DotPad("Description", 20), l.Description)
		}
		fmt.Fprintf(out, "  %s %s\n", cli.DotPad("Remote", 20), cli.Location(l))
		if l.TopologyPath != "" {
			fmt.Fprintf(out, "  %s %s\n", cli.DotPad("Topology path", 20), l.TopologyPath)
		}
		if l.ContainerlabName != "" {
			fmt.Fprintf(out, "  %s %s\n", cli.DotPad("Containerlab name", 20), l.ContainerlabName)
		}

		hosts, err := app.store.ListHosts(ctx, l.Name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nHosts (%d):\n", len(hosts))
		if len(hosts) > 0 {
			printHosts(cmd, hosts)
		}

		links, err := app.store.ListLinks(ctx, l.Name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nLinks (%d):\n", len(links))
		if len(links) > 0 {
			printLinks(cmd, links)
		}
		return nil
	},
}

var labDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a lab with all of its hosts and links",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if _, err := app.store.GetLab(cmd.Context(), name); err != nil {
			return err
		}
		if !labYes {
			ok, err := prompt.Confirm(app.prompter, fmt.Sprintf("Delete lab '%s' with all of its hosts and links?", name))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
		}
		if err := inTx(cmd, func(tx store.Tx) error { return tx.DeleteLab(name) }); err != nil {
			return fmt.Errorf("deleting lab '%s': %w", name, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Lab %s deleted\n", name)
		return nil
	},
}

var labSetRemoteCmd = &cobra.Command{
	Use:   "set-remote <name> [<host> [<user>]]",
	Short: "Set or clear the remote containerlab host",
	Long: `Set or clear the remote containerlab host of a containerlab lab.

Containerlab and docker commands for the lab run on this host over SSH.
Without a user the local user name is used. The topology path is the
directory searched by 'import --remote'.

Examples:
  poclab lab set-remote dc1 clab01.example.net lab
  poclab lab set-remote dc1 clab01.example.net
  poclab lab set-remote dc1 clab01.example.net lab --topology /home/lab/topos
  poclab lab set-remote dc1 --clear`,
	Args: func(cmd *cobra.Command, args []string) error {
		if labClearRemote {
			return cobra.ExactArgs(1)(cmd, args)
		}
		return cobra.RangeArgs(2, 3)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := app.store.GetLab(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if l.IsHardware() {
			return fmt.Errorf("lab '%s' is a hardware lab; remote hosts apply to containerlab labs", l.Name)
		}

		if labClearRemote {
			l.ClearRemote()
		} else {
			l.RemoteHost, l.RemoteUser = args[1], ""
			if len(args) == 3 {
				l.RemoteUser = args[2]
			}
			if labTopology != "" {
				l.TopologyPath = labTopology
			}
		}
		if err := inTx(cmd, func(tx store.Tx) error { return tx.UpdateLab(l) }); err != nil {
			return fmt.Errorf("updating lab '%s': %w", l.Name, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Lab %s remote: %s\n", l.Name, cli.Location(l))
		return nil
	},
}

var labSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Change a lab's type, description or topology path",
	Long: `Change a lab's type, description or topology path.

Switching a containerlab lab to hardware clears its remote host and user.

Examples:
  poclab lab set core --description "Core PoC rack, row 4"
  poclab lab set dc1 --type hardware
  poclab lab set dc1 --topology /home/lab/topos`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := app.store.GetLab(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if !flags.Changed("type") && !flags.Changed("description") && !flags.Changed("topology") {
			return fmt.Errorf("nothing to change: use --type, --description or --topology")
		}

		if flags.Changed("type") && model.LabType(labSetType) != l.Type {
			l.Type = model.LabType(labSetType)
			if l.IsHardware() {
				l.ClearRemote()
			}
		}
		if flags.Changed("description") {
			l.Description = labDescription
		}
		if flags.Changed("topology") {
			l.TopologyPath = labTopology
		}
		if err := inTx(cmd, func(tx store.Tx) error { return tx.UpdateLab(l) }); err != nil {
			return fmt.Errorf("updating lab '%s': %w", l.Name, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Lab %s updated (%s, remote: %s)\n", l.Name, l.Type, cli.Location(l))
		return nil
	},
}

// inTx runs fn in a store transaction and commits it.
func inTx(cmd *cobra.Command, fn func(tx store.Tx) error) error {
	tx, err := app.store.Begin(cmd.Context())
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(cmd.Context())
}

func init() {
	labCreateCmd.Flags().StringVarP(&labType, "type", "t", string(model.LabContainerlab), "Lab type: hardware or containerlab")
	labCreateCmd.Flags().StringVar(&labDescription, "description", "", "Lab description")
	labCreateCmd.Flags().StringVar(&labRemoteHost, "remote-host", "", "Remote containerlab host")
	labCreateCmd.Flags().StringVar(&labRemoteUser, "remote-user", "", "Remote containerlab username")
	labCreateCmd.Flags().StringVar(&labTopology, "topology", "", "Topology directory on the remote host")

	labSetRemoteCmd.Flags().StringVar(&labTopology, "topology", "", "Topology directory on the remote host")
	labSetRemoteCmd.Flags().BoolVar(&labClearRemote, "clear", false, "Clear the remote host and user")

	labSetCmd.Flags().StringVarP(&labSetType, "type", "t", "", "Lab type: hardware or containerlab")
	labSetCmd.Flags().StringVar(&labDescription, "description", "", "Lab description")
	labSetCmd.Flags().StringVar(&labTopology, "topology", "", "Topology directory on the remote host (empty clears)")

	labDeleteCmd.Flags().BoolVarP(&labYes, "yes", "y", false, "Do not ask for confirmation")

	labCmd.AddCommand(labCreateCmd, labListCmd, labShowCmd, labSetCmd, labSetRemoteCmd, labDeleteCmd)
}
