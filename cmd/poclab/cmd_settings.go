package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marccolburn/poc-helper-menu/pkg/cli"
	"github.com/marccolburn/poc-helper-menu/pkg/settings"
	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage persistent settings",
	Long: `Manage persistent settings stored in ~/.poclab/settings.json
(override the location with POCLAB_SETTINGS).

Settings provide defaults for context flags:
  - store:        Store URL when --store and POCLAB_STORE are not set
  - default_lab:  Used when -l and POCLAB_LAB are not set

Other settings:
  - audit_log:    Audit log path; link changes are not audited when unset
  - metrics_file: Prometheus textfile written after each command
  - log_format:   text or json
  - ssh_port:     Device SSH port (default 22)

Examples:
  poclab settings show
  poclab settings set store postgres://poclab@db/poclab
  poclab settings set default_lab dc1
  poclab settings clear`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Settings file: %s\n\n", settings.DefaultSettingsPath())

		t := cli.NewTableTo(cmd.OutOrStdout(), "SETTING", "VALUE")
		for _, key := range settings.Keys() {
			t.Row(key, util.ValueOr(s.Get(key), "(not set)"))
		}
		t.Flush()
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <setting> <value>",
	Short: "Set a setting value",
	Long: `Set a persistent setting value. An empty value unsets it.

Examples:
  poclab settings set store redis://127.0.0.1:6379/0
  poclab settings set default_lab dc1
  poclab settings set audit_log ~/.poclab/audit.log
  poclab settings set ssh_port 2222`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			s = &settings.Settings{}
		}
		if err := s.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s set to: %s\n", args[0], args[1])
		return nil
	},
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <setting>",
	Short: "Get a setting value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		if !settings.IsKey(args[0]) {
			return fmt.Errorf("unknown setting: %s (valid: %v)", args[0], settings.Keys())
		}
		fmt.Fprintln(cmd.OutOrStdout(), util.ValueOr(s.Get(args[0]), "(not set)"))
		return nil
	},
}

var settingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			s = &settings.Settings{}
		}
		s.Clear()
		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Settings cleared.")
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsGetCmd, settingsClearCmd)
}
