package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marccolburn/poc-helper-menu/pkg/cli"
	"github.com/marccolburn/poc-helper-menu/pkg/inventory"
	"github.com/marccolburn/poc-helper-menu/pkg/model"
	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

var (
	importFormat string
	importRemote bool
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import hosts and links into a lab",
	Long: `Import hosts and links into the selected lab.

Formats (--format, default auto):
  yaml   Ansible YAML inventory (hosts; OS from group name and vars)
  ini    Ansible INI inventory
  clab   containerlab topology (hosts and links; records the topology name)
  links  links only from a containerlab topology (hardware labs cabled alike)

Auto detection: .ini is Ansible INI; .yml/.yaml is a containerlab topology
when it has a top-level "topology" key, otherwise Ansible YAML.

An import only adds rows. If any host or link already exists the whole
import is rolled back.

With --remote the topology files under the lab's topology path on its
remote containerlab host are listed and the chosen one is copied and
imported.

Examples:
  poclab -l core import hosts.yml
  poclab -l core import inventory.ini
  poclab -l core import cabling.clab.yml --format links
  poclab -l dc1 import dc1.clab.yml
  poclab -l dc1 import --remote`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		l, err := requireLab(ctx)
		if err != nil {
			return err
		}
		format, err := inventory.ParseFormat(importFormat)
		if err != nil {
			return err
		}

		var path string
		switch {
		case importRemote && len(args) == 1:
			return fmt.Errorf("--remote picks the file on the remote host; do not also give a path")
		case importRemote:
			dir, err := os.MkdirTemp("", "poclab-import-")
			if err != nil {
				return err
			}
			defer os.RemoveAll(dir)
			if path, err = fetchRemoteTopology(cmd, l, dir); err != nil {
				return err
			}
			if format == inventory.FormatAuto {
				format = inventory.FormatContainerlab
			}
		case len(args) == 1:
			path = args[0]
		default:
			return fmt.Errorf("file required: give a path or use --remote")
		}

		res, err := app.importer().Import(ctx, l.Name, format, path)
		if err != nil {
			return err
		}
		printImport(cmd, res)
		return nil
	},
}

// fetchRemoteTopology lists the lab's remote topology files, asks which one
// to import and copies it into dir.
func fetchRemoteTopology(cmd *cobra.Command, l *model.Lab, dir string) (string, error) {
	ctx := cmd.Context()
	d := inventory.NewDiscoverer(app.dispatch)
	files, err := d.List(ctx, l)
	if err != nil {
		return "", err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Topology files on %s:\n", l.RemoteTarget())
	for i, f := range files {
		fmt.Fprintf(out, "  [%d] %s\n", i+1, f)
	}
	answer, err := app.prompter.Input(fmt.Sprintf("Select [1-%d]: ", len(files)))
	if err != nil {
		return "", err
	}
	n, err := strconv.Atoi(answer)
	if err != nil || n < 1 || n > len(files) {
		return "", fmt.Errorf("invalid selection %q: %w", answer, util.ErrInvalidConfig)
	}
	return d.Fetch(ctx, l, files[n-1], dir)
}

func printImport(cmd *cobra.Command, res *inventory.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Imported %d hosts and %d links into lab %s (%s)\n",
		len(res.Hosts), len(res.Links), cli.Bold(res.Lab), res.Format)
	if res.ContainerlabName != "" {
		fmt.Fprintf(out, "Containerlab topology name: %s\n", res.ContainerlabName)
	}
	if len(res.Skipped) == 0 {
		return
	}
	fmt.Fprintf(out, "\nSkipped (%d):\n", len(res.Skipped))
	t := cli.NewTableTo(out, "KIND", "NAME", "REASON").WithPrefix("  ")
	for _, s := range res.Skipped {
		t.Row(s.Kind, s.Name, s.Reason)
	}
	t.Flush()
}

func init() {
	importCmd.Flags().StringVarP(&importFormat, "format", "f", "auto", "Source format: auto, yaml, ini, clab, links")
	importCmd.Flags().BoolVar(&importRemote, "remote", false, "Pick a topology file on the lab's remote containerlab host")
}
