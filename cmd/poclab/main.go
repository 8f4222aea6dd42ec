// Poclab - Network Lab Inventory Tool
//
// Keeps an inventory of lab hosts and links imported from Ansible
// inventories and containerlab topologies, and drives link state on the
// devices: enable/disable interfaces and set netem impairments.
//
// Context flags select the lab; commands act on it:
//
//	poclab -l <lab> <noun> <verb> [args]
//
// Context flags:
//
//	-l, --lab     Lab name (or set default via: poclab settings set default_lab <name>)
//	    --store   Store URL (memory://, redis://host:port/db, postgres://...)
//
// Examples:
//
//	poclab lab create dc1 --type containerlab
//	poclab -l dc1 import topology.clab.yml
//	poclab -l dc1 import --remote              # pick a topology on the remote host
//	poclab -l dc1 link list
//	poclab -l dc1 link toggle 3f2a              # link ID or unique prefix
//	poclab -l dc1 link impair 3f2a --latency 50 --jitter 10
//	poclab -l dc1 exec r1 -- show version
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marccolburn/poc-helper-menu/pkg/audit"
	"github.com/marccolburn/poc-helper-menu/pkg/dispatch"
	"github.com/marccolburn/poc-helper-menu/pkg/inventory"
	"github.com/marccolburn/poc-helper-menu/pkg/linkstate"
	"github.com/marccolburn/poc-helper-menu/pkg/metrics"
	"github.com/marccolburn/poc-helper-menu/pkg/model"
	"github.com/marccolburn/poc-helper-menu/pkg/prompt"
	"github.com/marccolburn/poc-helper-menu/pkg/settings"
	"github.com/marccolburn/poc-helper-menu/pkg/store"
	"github.com/marccolburn/poc-helper-menu/pkg/util"
	"github.com/marccolburn/poc-helper-menu/pkg/version"
)

// App holds the flags and the collaborators built in PersistentPreRunE.
// Collaborators already set (tests) are kept.
type App struct {
	labName   string // -l, --lab
	storeURL  string // --store
	verbose   bool
	logFormat string

	settings *settings.Settings
	store    store.Store
	metrics  *metrics.Registry
	prompter prompt.Prompter
	runner   dispatch.Runner
	shell    dispatch.Shell
	dispatch *dispatch.Dispatcher
	audit    audit.Logger
}

var app App

func main() {
	err := rootCmd.Execute()
	app.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "poclab",
	Short:             "Network lab inventory and link control",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `Poclab keeps an inventory of lab hosts and links and drives link state
on the devices.

Hosts and links are imported from Ansible inventories (YAML or INI) and
containerlab topologies. Links can be enabled, disabled and impaired with
netem (delay, jitter, loss, rate, corruption).

  poclab -l <lab> <noun> <verb> [args]`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if isSettingsOrHelp(cmd) {
			return nil
		}
		return app.setup(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&app.labName, "lab", "l", "", "Lab name (object selector)")
	rootCmd.PersistentFlags().StringVar(&app.storeURL, "store", "", "Store URL (memory://, redis://, postgres://)")
	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVar(&app.logFormat, "log-format", "", "Log format: text or json")

	rootCmd.AddGroup(
		&cobra.Group{ID: "inventory", Title: "Inventory:"},
		&cobra.Group{ID: "device", Title: "Device Operations:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{labCmd, importCmd, hostCmd} {
		cmd.GroupID = "inventory"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{linkCmd, execCmd, connectCmd} {
		cmd.GroupID = "device"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{settingsCmd, auditCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

// setup loads settings and builds the store, dispatcher and audit logger.
func (a *App) setup(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var err error
	if a.settings == nil {
		a.settings, err = settings.Load()
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			a.settings = &settings.Settings{}
		}
	}

	// Quiet by default, verbose on -v
	if a.verbose {
		util.SetLogLevel("debug")
	} else {
		util.SetLogLevel("warn")
	}
	logFormat := a.logFormat
	if logFormat == "" {
		logFormat = a.settings.LogFormat
	}
	if logFormat == "json" {
		util.SetJSONFormat()
	}

	if a.metrics == nil {
		a.metrics = metrics.NewRegistry()
	}
	if a.prompter == nil {
		a.prompter = prompt.NewTermPrompter()
	}
	if a.store == nil {
		a.store, err = store.Open(ctx, a.settings.StoreURL(a.storeURL))
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
	}
	if a.dispatch == nil {
		a.dispatch = dispatch.New(dispatch.Config{
			Runner:   a.runner,
			Shell:    a.shell,
			Prompter: a.prompter,
			Metrics:  a.metrics,
			SSHPort:  a.settings.SSHPort,
		})
	}

	if a.audit == nil && a.settings.AuditLog != "" {
		auditLogger, err := audit.NewFileLogger(a.settings.AuditLog, audit.RotationConfig{
			MaxSize:    10 * 1024 * 1024, // 10MB
			MaxBackups: 10,
		})
		if err != nil {
			util.Warnf("Could not initialize audit logging: %v", err)
		} else {
			a.audit = auditLogger
		}
	}
	return nil
}

// close writes the metrics textfile and releases the store.
func (a *App) close() {
	if a.settings != nil && a.settings.MetricsFile != "" && a.metrics != nil {
		if err := a.metrics.WriteTextfile(a.settings.MetricsFile); err != nil {
			util.Warnf("Could not write metrics: %v", err)
		}
	}
	if a.audit != nil {
		a.audit.Close()
		a.audit = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			util.Warnf("Closing store: %v", err)
		}
		a.store = nil
	}
}

func (a *App) importer() *inventory.Importer {
	return inventory.NewImporter(a.store, a.prompter, a.metrics)
}

func (a *App) machine() *linkstate.Machine {
	return linkstate.New(linkstate.Config{
		Store:      a.store,
		Dispatcher: a.dispatch,
		Metrics:    a.metrics,
		Audit:      a.audit,
	})
}

func isSettingsOrHelp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "settings", "help", "version", "completion":
			return true
		}
	}
	return false
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "poclab %s\n", version.Info())
	},
}

// ============================================================================
// Context Helpers
// ============================================================================

// requireLab loads the lab from -l, POCLAB_LAB or the default_lab setting.
func requireLab(ctx context.Context) (*model.Lab, error) {
	name := app.settings.LabName(app.labName)
	if name == "" {
		return nil, fmt.Errorf("lab required: use -l <lab> flag or 'poclab settings set default_lab <lab>'")
	}
	return app.store.GetLab(ctx, name)
}
