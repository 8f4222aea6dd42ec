package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marccolburn/poc-helper-menu/pkg/cli"
	"github.com/marccolburn/poc-helper-menu/pkg/dispatch"
	"github.com/marccolburn/poc-helper-menu/pkg/linkstate"
	"github.com/marccolburn/poc-helper-menu/pkg/model"
	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Show and control lab links",
	Long: `Show and control the links of the selected lab.

A link is given by its ID or a unique prefix of it (the LINK column of
'link list').

toggle enables a disabled link or disables an enabled one. Hardware labs
command the source interface; containerlab labs command both ends.

impair sets netem impairments on the source interface of a containerlab
link. Without value flags it opens an interactive editor.

Examples:
  poclab -l dc1 link list
  poclab -l dc1 link show 3f2a
  poclab -l dc1 link toggle 3f2a
  poclab -l dc1 link impair 3f2a --latency 50 --jitter 10 --loss 2
  poclab -l dc1 link impair 3f2a
  poclab -l dc1 link clear 3f2a`,
}

// shortIDLen is how much of a link ID list output shows.
const shortIDLen = 8

var impairFlags = []struct {
	field model.ImpairmentField
	usage string
}{
	{model.FieldLatency, "Latency (ms)"},
	{model.FieldJitter, "Jitter (ms)"},
	{model.FieldLoss, "Packet loss (%)"},
	{model.FieldRate, "Rate limit (kbit/s)"},
	{model.FieldCorruption, "Corruption (%)"},
}

var linkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List links",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		l, err := requireLab(ctx)
		if err != nil {
			return err
		}
		links, err := app.store.ListLinks(ctx, l.Name)
		if err != nil {
			return err
		}
		if len(links) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No links in lab %s\n", l.Name)
			return nil
		}
		printLinks(cmd, links)
		return nil
	},
}

var linkShowCmd = &cobra.Command{
	Use:   "show <link>",
	Short: "Show link details and impairments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		l, link, err := requireLink(ctx, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "Link: %s\n", cli.Bold(link.String()))
		fmt.Fprintf(out, "  %s %s\n", cli.DotPad("ID", 14), link.ID)
		fmt.Fprintf(out, "  %s %s\n", cli.DotPad("Lab", 14), l.Name)
		fmt.Fprintf(out, "  %s %s:%s\n", cli.DotPad("Source", 14), link.SourceHost, link.SourceInterface)
		fmt.Fprintf(out, "  %s %s:%s\n", cli.DotPad("Destination", 14), link.DestinationHost, link.DestinationInterface)
		fmt.Fprintf(out, "  %s %s\n", cli.DotPad("State", 14), cli.State(link.State))

		if link.Impairment.IsZero() {
			fmt.Fprintf(out, "\n%s\n", linkstate.Summary(link.Impairment))
			return nil
		}
		fmt.Fprintln(out, "\nImpairments:")
		for _, f := range link.Impairment.NonZero() {
			fmt.Fprintf(out, "  %s: %d\n", util.CapitalizeFirst(string(f)), link.Impairment.Get(f))
		}
		return nil
	},
}

var linkToggleCmd = &cobra.Command{
	Use:   "toggle <link>",
	Short: "Enable a disabled link or disable an enabled one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		l, link, err := requireLink(ctx, args[0])
		if err != nil {
			return err
		}

		res, err := app.machine().Toggle(ctx, l, link.ID)
		if res != nil {
			printOutcomes(cmd, res)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Link %s: %s -> %s\n", res.Link, res.From, cli.State(res.To))
		if res.Partial() {
			fmt.Fprintln(cmd.OutOrStdout(), cli.Yellow("Only one end was commanded."))
		}
		return nil
	},
}

var linkImpairCmd = &cobra.Command{
	Use:   "impair <link>",
	Short: "Set netem impairments on a containerlab link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		l, link, err := requireLink(ctx, args[0])
		if err != nil {
			return err
		}
		m := app.machine()

		change := linkstate.Change{}
		for _, f := range impairFlags {
			if cmd.Flags().Changed(string(f.field)) {
				n, err := cmd.Flags().GetInt(string(f.field))
				if err != nil {
					return err
				}
				change[f.field] = n
			}
		}
		if len(change) == 0 {
			return linkstate.NewSession(m, app.prompter, cmd.OutOrStdout()).Run(ctx, l, link.ID)
		}

		res, err := m.SetImpairment(ctx, l, link.ID, change)
		if err != nil {
			return err
		}
		printImpair(cmd, res)
		return nil
	},
}

var linkClearCmd = &cobra.Command{
	Use:   "clear <link>",
	Short: "Remove all impairments from a containerlab link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		l, link, err := requireLink(ctx, args[0])
		if err != nil {
			return err
		}
		res, err := app.machine().ClearImpairments(ctx, l, link.ID)
		if err != nil {
			return err
		}
		printImpair(cmd, res)
		return nil
	},
}

var linkApplyCmd = &cobra.Command{
	Use:   "apply <link>",
	Short: "Re-apply a link's stored impairments",
	Long: `Re-apply a link's stored impairments to its source interface.

Use after a lab is redeployed: the store keeps the values but the new
containers start without them.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		l, link, err := requireLink(ctx, args[0])
		if err != nil {
			return err
		}
		res, err := app.machine().ApplyImpairments(ctx, l, link)
		if err != nil {
			return err
		}
		printImpair(cmd, res)
		return nil
	},
}

// requireLink loads the selected lab and the link named by an ID or a
// unique ID prefix.
func requireLink(ctx context.Context, ref string) (*model.Lab, *model.Link, error) {
	l, err := requireLab(ctx)
	if err != nil {
		return nil, nil, err
	}
	link, err := app.store.GetLink(ctx, l.Name, ref)
	if err == nil {
		return l, link, nil
	}
	if !errors.Is(err, util.ErrNotFound) {
		return nil, nil, err
	}

	links, err := app.store.ListLinks(ctx, l.Name)
	if err != nil {
		return nil, nil, err
	}
	var matches []*model.Link
	for _, candidate := range links {
		if strings.HasPrefix(candidate.ID, ref) {
			matches = append(matches, candidate)
		}
	}
	switch len(matches) {
	case 0:
		return nil, nil, fmt.Errorf("link '%s' not found in lab '%s': %w", ref, l.Name, util.ErrNotFound)
	case 1:
		return l, matches[0], nil
	}
	return nil, nil, fmt.Errorf("link prefix '%s' matches %d links in lab '%s': %w", ref, len(matches), l.Name, util.ErrInvalidConfig)
}

func printLinks(cmd *cobra.Command, links []*model.Link) {
	t := cli.NewTableTo(cmd.OutOrStdout(), "LINK", "SOURCE", "DESTINATION", "STATE", "IMPAIRMENTS")
	for _, link := range links {
		imp := "-"
		if !link.Impairment.IsZero() {
			imp = linkstate.Summary(link.Impairment)
		}
		t.Row(shortID(link.ID),
			link.SourceHost+":"+link.SourceInterface,
			link.DestinationHost+":"+link.DestinationInterface,
			cli.State(link.State), imp)
	}
	t.Flush()
}

func printOutcomes(cmd *cobra.Command, res *linkstate.ToggleResult) {
	out := cmd.OutOrStdout()
	for _, o := range []*linkstate.EndpointOutcome{res.Source, res.Destination} {
		if o == nil {
			continue
		}
		label := fmt.Sprintf("%s %s:%s", o.Role, o.Name, o.Interface)
		switch {
		case o.Skipped != "":
			fmt.Fprintf(out, "  %s %s\n", cli.DotPad(label, 36), cli.Yellow("skipped ("+o.Skipped+")"))
		case o.Err != nil:
			fmt.Fprintf(out, "  %s %s\n", cli.DotPad(label, 36), cli.Red("failed"))
		case o.Dispatched():
			fmt.Fprintf(out, "  %s %s\n", cli.DotPad(label, 36), cli.Green("ok"))
			fmt.Fprintf(out, "    %s\n", cli.Dim(o.Command))
		}
	}
}

func printImpair(cmd *cobra.Command, res *linkstate.ImpairResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Link %s: %s\n", res.Link, linkstate.Summary(res.Link.Impairment))
	if len(res.Command) > 0 {
		fmt.Fprintf(out, "  %s\n", cli.Dim(dispatch.JoinArgs(res.Command)))
	}
}

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

func init() {
	for _, f := range impairFlags {
		linkImpairCmd.Flags().Int(string(f.field), 0, f.usage)
	}

	linkCmd.AddCommand(linkListCmd, linkShowCmd, linkToggleCmd, linkImpairCmd, linkClearCmd, linkApplyCmd)
}
