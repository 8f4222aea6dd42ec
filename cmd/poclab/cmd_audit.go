package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/marccolburn/poc-helper-menu/pkg/audit"
	"github.com/marccolburn/poc-helper-menu/pkg/cli"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View the link change audit log",
	Long: `View the audit log of link changes.

Every toggle, impairment change and clear is logged with:
  - Timestamp
  - User who made the change
  - Lab and link affected
  - Commands sent and endpoints skipped
  - Success/failure status

Audit logging is enabled by the audit_log setting. Events are listed newest
first and include rotated log files.

Examples:
  poclab -l dc1 audit list
  poclab audit list --last 24h
  poclab audit list --link r1:eth1 --failures`,
}

var (
	auditLink     string
	auditUser     string
	auditOp       string
	auditLast     string
	auditLimit    int
	auditFailures bool
	auditJSON     bool
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		if app.audit == nil {
			return fmt.Errorf("audit logging is not configured: use 'poclab settings set audit_log <path>'")
		}
		filter := audit.Filter{
			Lab:         app.labName,
			Link:        auditLink,
			User:        auditUser,
			Operation:   audit.Operation(auditOp),
			Limit:       auditLimit,
			FailureOnly: auditFailures,
		}

		// Parse --last duration
		if auditLast != "" {
			duration, err := time.ParseDuration(auditLast)
			if err != nil {
				return fmt.Errorf("invalid duration: %s", auditLast)
			}
			filter.StartTime = time.Now().Add(-duration)
		}

		events, err := app.audit.Query(filter)
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}

		out := cmd.OutOrStdout()
		if auditJSON {
			return json.NewEncoder(out).Encode(events)
		}

		if len(events) == 0 {
			fmt.Fprintln(out, "No audit events found")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIMESTAMP\tUSER\tLAB\tLINK\tOPERATION\tSTATUS")
		fmt.Fprintln(w, "---------\t----\t---\t----\t---------\t------")

		for _, event := range events {
			status := cli.Green("ok")
			if !event.Success {
				status = cli.Red("failed")
			} else if len(event.Skipped) > 0 {
				status = cli.Yellow("partial")
			}

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				event.Timestamp.Format("2006-01-02 15:04:05"),
				event.User,
				event.Lab,
				event.Link,
				event.Operation,
				status,
			)
			if !event.Success && event.Error != "" {
				fmt.Fprintf(w, "\t\t\t\t%s\t\n", cli.Dim(strings.SplitN(event.Error, "\n", 2)[0]))
			}
		}
		w.Flush()

		return nil
	},
}

func init() {
	auditListCmd.Flags().StringVar(&auditLink, "link", "", "Filter by link (description, ID or ID prefix)")
	auditListCmd.Flags().StringVar(&auditUser, "user", "", "Filter by user")
	auditListCmd.Flags().StringVar(&auditOp, "operation", "", "Filter by operation (link.enable, link.disable, link.impair, link.clear)")
	auditListCmd.Flags().StringVar(&auditLast, "last", "", "Show events from last duration (e.g., 24h, 30m)")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum events to show")
	auditListCmd.Flags().BoolVar(&auditFailures, "failures", false, "Show only failed operations")
	auditListCmd.Flags().BoolVar(&auditJSON, "json", false, "JSON output")

	auditCmd.AddCommand(auditListCmd)
}
