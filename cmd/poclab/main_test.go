package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marccolburn/poc-helper-menu/internal/testutil"
	"github.com/marccolburn/poc-helper-menu/pkg/model"
	"github.com/marccolburn/poc-helper-menu/pkg/settings"
	"github.com/marccolburn/poc-helper-menu/pkg/store"
	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

type harness struct {
	store  *store.MemoryStore
	runner *testutil.FakeRunner
	shell  *testutil.FakeShell
	prompt *testutil.FakePrompter
}

// newHarness points the command tree at an in-memory store and fake
// transports. Settings live in a temp file.
func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv(settings.EnvSettings, filepath.Join(t.TempDir(), "settings.json"))
	t.Setenv(settings.EnvLab, "")
	t.Setenv(settings.EnvStore, "")

	h := &harness{
		store:  store.NewMemoryStore(),
		runner: &testutil.FakeRunner{},
		shell:  &testutil.FakeShell{},
		prompt: &testutil.FakePrompter{},
	}
	t.Cleanup(func() { app = App{} })
	return h
}

// run executes one command line and returns its output.
func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	app = App{settings: &settings.Settings{}, store: h.store, prompter: h.prompt, runner: h.runner, shell: h.shell}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// resetFlags restores every flag to its default so runs do not leak into
// each other.
func resetFlags(cmd *cobra.Command) {
	for _, fs := range []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags()} {
		fs.VisitAll(func(f *pflag.Flag) {
			f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func (h *harness) importDC1(t *testing.T) {
	t.Helper()
	_, err := h.run(t, "lab", "create", "dc1", "--type", "containerlab")
	require.NoError(t, err)
	out, err := h.run(t, "-l", "dc1", "import", filepath.Join("..", "..", "pkg", "inventory", "testdata", "dc1.clab.yml"))
	require.NoError(t, err)
	require.Contains(t, out, "Imported 4 hosts and 3 links")
	require.Contains(t, out, "Containerlab topology name: dc1")
}

func (h *harness) link(t *testing.T, src string) *model.Link {
	t.Helper()
	links, err := h.store.ListLinks(context.Background(), "dc1")
	require.NoError(t, err)
	for _, l := range links {
		if l.SourceHost == src {
			return l
		}
	}
	t.Fatalf("no link from %s", src)
	return nil
}

func TestLabCreateAndList(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "lab", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No labs found")

	_, err = h.run(t, "lab", "create", "core", "--type", "hardware")
	require.NoError(t, err)
	_, err = h.run(t, "lab", "create", "dc1", "--remote-host", "clab01", "--remote-user", "lab")
	require.NoError(t, err)

	out, err = h.run(t, "lab", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "N/A")
	assert.Contains(t, out, "lab@clab01")

	_, err = h.run(t, "lab", "create", "bad name")
	assert.ErrorIs(t, err, util.ErrValidationFailed)

	_, err = h.run(t, "lab", "create", "core", "--type", "hardware")
	assert.ErrorIs(t, err, util.ErrAlreadyExists)
}

func TestLabSetAndDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.run(t, "lab", "create", "dc1")
	require.NoError(t, err)

	out, err := h.run(t, "lab", "set-remote", "dc1", "clab01", "--topology", "/home/lab/topos")
	require.NoError(t, err)
	assert.Contains(t, out, "remote: clab01")
	l, err := h.store.GetLab(ctx, "dc1")
	require.NoError(t, err)
	assert.Equal(t, "/home/lab/topos", l.TopologyPath)
	assert.Empty(t, l.RemoteUser)

	_, err = h.run(t, "lab", "set", "dc1", "--type", "hardware", "--description", "rack 4")
	require.NoError(t, err)
	l, err = h.store.GetLab(ctx, "dc1")
	require.NoError(t, err)
	assert.Equal(t, model.LabHardware, l.Type)
	assert.Equal(t, "rack 4", l.Description)
	assert.Empty(t, l.RemoteHost)

	_, err = h.run(t, "lab", "set", "dc1")
	assert.Error(t, err)
	_, err = h.run(t, "lab", "set-remote", "dc1", "clab01")
	assert.Error(t, err, "hardware labs have no remote host")

	h.prompt.Inputs = []string{"n"}
	out, err = h.run(t, "lab", "delete", "dc1")
	require.NoError(t, err)
	assert.Contains(t, out, "Aborted.")

	_, err = h.run(t, "lab", "delete", "dc1", "--yes")
	require.NoError(t, err)
	_, err = h.store.GetLab(ctx, "dc1")
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestLabRequired(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "link", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lab required")

	_, err = h.run(t, "-l", "nope", "link", "list")
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestImportAndShow(t *testing.T) {
	h := newHarness(t)
	h.importDC1(t)

	out, err := h.run(t, "lab", "show", "dc1")
	require.NoError(t, err)
	assert.Contains(t, out, "Hosts (4):")
	assert.Contains(t, out, "Links (3):")
	assert.Contains(t, out, "r2:ge-0/0/1")

	out, err = h.run(t, "-l", "dc1", "host", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "srl1")
	assert.NotContains(t, out, "admin@123")

	// Second import of the same topology is rolled back.
	_, err = h.run(t, "-l", "dc1", "import", filepath.Join("..", "..", "pkg", "inventory", "testdata", "dc1.clab.yml"))
	assert.ErrorIs(t, err, util.ErrAlreadyExists)
}

func TestLinkToggleByPrefix(t *testing.T) {
	h := newHarness(t)
	h.importDC1(t)
	link := h.link(t, "r2")

	out, err := h.run(t, "-l", "dc1", "link", "toggle", link.ID[:8])
	require.NoError(t, err)
	assert.Contains(t, out, "enabled -> ")
	assert.Contains(t, out, "ip link set eth1 down")

	assert.Equal(t, []string{"docker exec clab-dc1-h1 sh -c ip link set eth1 down"}, h.runner.Lines())
	require.Len(t, h.shell.Calls, 1)
	assert.Contains(t, h.shell.Calls[0].Command, "set interfaces ge-0/0/1 disable")

	got, err := h.store.GetLink(context.Background(), "dc1", link.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LinkDisabled, got.State)
}

func TestLinkPrefixAmbiguous(t *testing.T) {
	h := newHarness(t)
	h.importDC1(t)

	_, err := h.run(t, "-l", "dc1", "link", "show", "")
	assert.ErrorIs(t, err, util.ErrInvalidConfig)

	_, err = h.run(t, "-l", "dc1", "link", "show", "zzzz")
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestLinkImpairFlagsAndClear(t *testing.T) {
	h := newHarness(t)
	h.importDC1(t)
	link := h.link(t, "r2")

	out, err := h.run(t, "-l", "dc1", "link", "impair", link.ID, "--latency", "50", "--loss", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Latency: 50ms")
	assert.Contains(t, out, "Loss: 2%")
	require.Len(t, h.runner.Calls, 1)
	assert.Equal(t,
		"sudo containerlab tools netem set -n clab-dc1-r2 -i ge-0/0/1 --delay 50ms --loss 2",
		h.runner.Lines()[0])

	out, err = h.run(t, "-l", "dc1", "link", "show", link.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Latency: 50")

	out, err = h.run(t, "-l", "dc1", "link", "clear", link.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "No impairments")

	got, err := h.store.GetLink(context.Background(), "dc1", link.ID)
	require.NoError(t, err)
	assert.True(t, got.Impairment.IsZero())
}

func TestLinkImpairInteractive(t *testing.T) {
	h := newHarness(t)
	h.importDC1(t)
	link := h.link(t, "r2")

	h.prompt.Inputs = []string{"r", "1000", "n", "b"}
	out, err := h.run(t, "-l", "dc1", "link", "impair", link.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Impairment set.")

	got, err := h.store.GetLink(context.Background(), "dc1", link.ID)
	require.NoError(t, err)
	assert.Equal(t, 1000, got.Rate)
}

func TestExec(t *testing.T) {
	h := newHarness(t)
	h.importDC1(t)
	h.runner.Respond = func(c testutil.Call) (string, error) { return "eth1 UP", nil }

	out, err := h.run(t, "-l", "dc1", "exec", "h1", "--", "ip", "-br", "link")
	require.NoError(t, err)
	assert.Equal(t, "eth1 UP\n", out)
	assert.Equal(t, []string{"docker exec clab-dc1-h1 sh -c ip -br link"}, h.runner.Lines())
}

func TestExecKeepsArgumentQuoting(t *testing.T) {
	h := newHarness(t)
	h.importDC1(t)

	_, err := h.run(t, "-l", "dc1", "exec", "h1", "--", "sh", "-c", "ip addr show eth1 | grep inet")
	require.NoError(t, err)
	require.Len(t, h.runner.Calls, 1)
	c := h.runner.Calls[0]
	assert.Equal(t, "sh -c 'ip addr show eth1 | grep inet'", c.Args[len(c.Args)-1])

	h.runner.Calls = nil
	_, err = h.run(t, "-l", "dc1", "exec", "h1", "--", "ip -br link | head -1")
	require.NoError(t, err)
	require.Len(t, h.runner.Calls, 1)
	c = h.runner.Calls[0]
	assert.Equal(t, "ip -br link | head -1", c.Args[len(c.Args)-1])
}

func TestSettingsCommands(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "settings", "set", "default_lab", "dc1")
	require.NoError(t, err)
	out, err := h.run(t, "settings", "get", "default_lab")
	require.NoError(t, err)
	assert.Equal(t, "dc1\n", out)

	out, err = h.run(t, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "store")
	assert.Contains(t, out, "(not set)")

	_, err = h.run(t, "settings", "set", "ssh_port", "nope")
	assert.ErrorIs(t, err, util.ErrInvalidConfig)

	_, err = h.run(t, "settings", "clear")
	require.NoError(t, err)
	out, err = h.run(t, "settings", "get", "default_lab")
	require.NoError(t, err)
	assert.Equal(t, "(not set)\n", out)
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "poclab dev"))
}
