package dispatch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marccolburn/poc-helper-menu/internal/testutil"
	"github.com/marccolburn/poc-helper-menu/pkg/dispatch"
	"github.com/marccolburn/poc-helper-menu/pkg/metrics"
	"github.com/marccolburn/poc-helper-menu/pkg/model"
	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

type fixture struct {
	runner   *testutil.FakeRunner
	shell    *testutil.FakeShell
	prompter *testutil.FakePrompter
	metrics  *metrics.Registry
	d        *dispatch.Dispatcher
}

func newFixture() *fixture {
	f := &fixture{
		runner:   &testutil.FakeRunner{},
		shell:    &testutil.FakeShell{},
		prompter: &testutil.FakePrompter{},
		metrics:  metrics.NewRegistry(),
	}
	f.d = dispatch.New(dispatch.Config{
		Runner:   f.runner,
		Shell:    f.shell,
		Prompter: f.prompter,
		Metrics:  f.metrics,
	})
	return f
}

var (
	localClab  = &model.Lab{Name: "dc1", Type: model.LabContainerlab, ContainerlabName: "fabric"}
	remoteClab = &model.Lab{Name: "dc1", Type: model.LabContainerlab, ContainerlabName: "fabric", RemoteHost: "srv1", RemoteUser: "ops"}
	hardware   = &model.Lab{Name: "rack", Type: model.LabHardware}

	linuxHost = &model.Host{Hostname: "h1", NetworkOS: "linux", LabName: "dc1", IPAddress: "172.20.0.5"}
	junosHost = &model.Host{Hostname: "r1", NetworkOS: "junos", LabName: "dc1", IPAddress: "172.20.0.2", Username: "admin", Password: "admin@123"}
)

func TestContainerName(t *testing.T) {
	name, ok := dispatch.ContainerName(localClab, "h1")
	assert.True(t, ok)
	assert.Equal(t, "clab-fabric-h1", name)

	name, ok = dispatch.ContainerName(&model.Lab{Name: "x", Type: model.LabContainerlab}, "h1")
	assert.False(t, ok)
	assert.Equal(t, "h1", name)
}

func TestRoute(t *testing.T) {
	d := newFixture().d
	tests := []struct {
		name string
		host *model.Host
		lab  *model.Lab
		want dispatch.Route
	}{
		{"linux container local", linuxHost, localClab, dispatch.RouteDockerExec},
		{"linux container remote", linuxHost, remoteClab, dispatch.RouteRemoteDockerExec},
		{"non-linux container", junosHost, localClab, dispatch.RouteSSH},
		{"hardware linux", linuxHost, hardware, dispatch.RouteSSH},
		{"no lab", linuxHost, nil, dispatch.RouteSSH},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Route(tt.host, tt.lab))
		})
	}
}

func TestExecuteDockerExecLocal(t *testing.T) {
	f := newFixture()
	res, err := f.d.Execute(context.Background(), dispatch.Request{
		Lab: localClab, Host: linuxHost, Command: "ip link set eth1 down",
	})
	require.NoError(t, err)
	assert.Equal(t, dispatch.RouteDockerExec, res.Route)
	assert.Equal(t, "clab-fabric-h1", res.Target)

	require.Len(t, f.runner.Calls, 1)
	c := f.runner.Calls[0]
	assert.Equal(t, "docker", c.Name)
	assert.Equal(t, []string{"exec", "clab-fabric-h1", "sh", "-c", "ip link set eth1 down"}, c.Args)
	assert.Empty(t, f.shell.Calls)
}

func TestExecuteDockerExecWithoutTopologyName(t *testing.T) {
	f := newFixture()
	lab := &model.Lab{Name: "dc1", Type: model.LabContainerlab}
	_, err := f.d.Execute(context.Background(), dispatch.Request{Lab: lab, Host: linuxHost, Command: "true"})
	require.NoError(t, err)
	assert.Equal(t, []string{"docker exec h1 sh -c true"}, f.runner.Lines())
}

func TestExecuteRemoteDockerExecKeyAuth(t *testing.T) {
	f := newFixture()
	_, err := f.d.Execute(context.Background(), dispatch.Request{
		Lab: remoteClab, Host: linuxHost, Command: "ip link set eth1 up",
	})
	require.NoError(t, err)

	require.Len(t, f.runner.Calls, 1)
	c := f.runner.Calls[0]
	assert.Equal(t, "ssh", c.Name)
	assert.Equal(t, []string{
		"-o", "PasswordAuthentication=no", "-o", "BatchMode=yes", "-o", "ConnectTimeout=10",
		"ops@srv1", "docker exec clab-fabric-h1 sh -c 'ip link set eth1 up'",
	}, c.Args)
	assert.Empty(t, f.prompter.Asked)
	assert.Empty(t, f.shell.Calls)
}

func TestExecuteRemotePasswordFallback(t *testing.T) {
	f := newFixture()
	f.runner.Respond = testutil.FailMatching("ssh", errors.New("Permission denied (publickey)"))
	f.prompter.Passwords = []string{"s3cret"}

	_, err := f.d.Execute(context.Background(), dispatch.Request{
		Lab: remoteClab, Host: linuxHost, Command: "ip link set eth1 up",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Enter password for ops@srv1: "}, f.prompter.Asked)
	require.Len(t, f.shell.Calls, 1)
	sc := f.shell.Calls[0]
	assert.Equal(t, dispatch.Target{Host: "srv1", Port: 22, User: "ops", Password: "s3cret"}, sc.Target)
	assert.Equal(t, "docker exec clab-fabric-h1 sh -c 'ip link set eth1 up'", sc.Command)

	var m dto.Metric
	require.NoError(t, f.metrics.AuthFallbackTotal.Write(&m))
	assert.Equal(t, 1.0, m.GetCounter().GetValue())
}

func TestExecuteRemoteBothAttemptsFail(t *testing.T) {
	f := newFixture()
	f.runner.Respond = testutil.FailMatching("ssh", errors.New("exit status 255"))
	f.shell.Respond = func(testutil.ShellCall) (string, error) { return "", errors.New("auth failed") }
	f.prompter.Passwords = []string{"wrong"}

	res, err := f.d.Execute(context.Background(), dispatch.Request{
		Lab: remoteClab, Host: linuxHost, Command: "true",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrDispatchFailed))
	assert.Equal(t, dispatch.RouteRemoteDockerExec, res.Route)

	// One key attempt, one password attempt, no retry.
	assert.Len(t, f.runner.Calls, 1)
	assert.Len(t, f.shell.Calls, 1)
}

func TestExecuteSSHStoredCredentials(t *testing.T) {
	f := newFixture()
	f.shell.Respond = func(testutil.ShellCall) (string, error) { return "ok", nil }

	res, err := f.d.Execute(context.Background(), dispatch.Request{
		Lab: localClab, Host: junosHost, Command: "show version",
	})
	require.NoError(t, err)
	assert.Equal(t, dispatch.RouteSSH, res.Route)
	assert.Equal(t, "ok", res.Output)
	assert.Equal(t, "admin@172.20.0.2", res.Target)

	require.Len(t, f.shell.Calls, 1)
	assert.Equal(t, dispatch.Target{Host: "172.20.0.2", Port: 22, User: "admin", Password: "admin@123"}, f.shell.Calls[0].Target)
	assert.Empty(t, f.prompter.Asked)
	assert.Empty(t, f.runner.Calls)

	var m dto.Metric
	require.NoError(t, f.metrics.DispatchTotal.WithLabelValues("ssh", "success").Write(&m))
	assert.Equal(t, 1.0, m.GetCounter().GetValue())
}

func TestExecuteSSHPromptsForMissingCredentials(t *testing.T) {
	f := newFixture()
	f.prompter.Inputs = []string{"netops"}
	f.prompter.Passwords = []string{"pw"}
	host := &model.Host{Hostname: "sw1", IPAddress: "10.0.0.9", LabName: "rack", NetworkOS: "eos"}

	_, err := f.d.Execute(context.Background(), dispatch.Request{Lab: hardware, Host: host, Command: "show ver"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Enter username for sw1: ",
		"Enter password for netops@10.0.0.9: ",
	}, f.prompter.Asked)
	assert.Equal(t, "netops", f.shell.Calls[0].Target.User)
	assert.Equal(t, "pw", f.shell.Calls[0].Target.Password)
}

func TestExecuteSSHPromptsOnlyForPassword(t *testing.T) {
	f := newFixture()
	f.prompter.Passwords = []string{"pw"}
	host := &model.Host{Hostname: "sw1", IPAddress: "10.0.0.9", LabName: "rack", Username: "admin"}

	_, err := f.d.Execute(context.Background(), dispatch.Request{Lab: hardware, Host: host, Command: "show ver"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Enter password for admin@10.0.0.9: "}, f.prompter.Asked)
}

func TestExecuteInteractive(t *testing.T) {
	f := newFixture()
	_, err := f.d.Execute(context.Background(), dispatch.Request{Lab: localClab, Host: linuxHost, Interactive: true})
	require.NoError(t, err)
	require.Len(t, f.runner.Calls, 1)
	assert.True(t, f.runner.Calls[0].Attached)
	assert.Equal(t, "docker exec -it clab-fabric-h1 /bin/sh", f.runner.Calls[0].Line())

	_, err = f.d.Execute(context.Background(), dispatch.Request{Lab: localClab, Host: junosHost, Interactive: true})
	require.NoError(t, err)
	require.Len(t, f.shell.Calls, 1)
	assert.True(t, f.shell.Calls[0].Attached)
	assert.Empty(t, f.shell.Calls[0].Command)
}

func TestExecuteInteractiveRemote(t *testing.T) {
	f := newFixture()
	_, err := f.d.Execute(context.Background(), dispatch.Request{Lab: remoteClab, Host: linuxHost, Interactive: true})
	require.NoError(t, err)
	require.Len(t, f.runner.Calls, 1)
	assert.Equal(t, "ssh -t -o ConnectTimeout=10 ops@srv1 docker exec -it clab-fabric-h1 /bin/sh", f.runner.Calls[0].Line())
}

func TestExecuteNoHost(t *testing.T) {
	f := newFixture()
	_, err := f.d.Execute(context.Background(), dispatch.Request{Lab: localClab})
	assert.True(t, errors.Is(err, util.ErrNotFound))
}

func TestRunOnLab(t *testing.T) {
	argv := []string{"sudo", "containerlab", "tools", "netem", "set", "-n", "clab-fabric-r1", "-i", "eth1", "--loss", "5"}

	t.Run("local", func(t *testing.T) {
		f := newFixture()
		res, err := f.d.RunOnLab(context.Background(), localClab, argv, "impairment")
		require.NoError(t, err)
		assert.Equal(t, dispatch.RouteLocal, res.Route)
		require.Len(t, f.runner.Calls, 1)
		assert.Equal(t, "sudo", f.runner.Calls[0].Name)
		assert.Equal(t, argv[1:], f.runner.Calls[0].Args)
	})

	t.Run("remote", func(t *testing.T) {
		f := newFixture()
		res, err := f.d.RunOnLab(context.Background(), remoteClab, argv, "impairment")
		require.NoError(t, err)
		assert.Equal(t, dispatch.RouteRemoteShell, res.Route)
		require.Len(t, f.runner.Calls, 1)
		c := f.runner.Calls[0]
		assert.Equal(t, "ssh", c.Name)
		assert.Equal(t, "sudo containerlab tools netem set -n clab-fabric-r1 -i eth1 --loss 5", c.Args[len(c.Args)-1])
	})

	t.Run("local failure", func(t *testing.T) {
		f := newFixture()
		f.runner.Respond = testutil.FailMatching("netem", errors.New("exit status 1"))
		_, err := f.d.RunOnLab(context.Background(), localClab, argv, "impairment")
		assert.True(t, errors.Is(err, util.ErrDispatchFailed))
	})

	t.Run("empty argv", func(t *testing.T) {
		f := newFixture()
		_, err := f.d.RunOnLab(context.Background(), localClab, nil, "nothing")
		assert.True(t, errors.Is(err, util.ErrInvalidConfig))
	})
}

func TestCopyFromRemote(t *testing.T) {
	t.Run("scp with key", func(t *testing.T) {
		f := newFixture()
		local := filepath.Join(t.TempDir(), "lab.clab.yml")
		require.NoError(t, f.d.CopyFromRemote(context.Background(), remoteClab, "/labs/lab.clab.yml", local))
		require.Len(t, f.runner.Calls, 1)
		c := f.runner.Calls[0]
		assert.Equal(t, "scp", c.Name)
		assert.Equal(t, "ops@srv1:/labs/lab.clab.yml", c.Args[len(c.Args)-2])
		assert.Equal(t, local, c.Args[len(c.Args)-1])
	})

	t.Run("password fallback", func(t *testing.T) {
		f := newFixture()
		f.runner.Respond = testutil.FailMatching("scp", errors.New("exit status 1"))
		f.shell.Respond = func(testutil.ShellCall) (string, error) { return "  # fabric\nname: fabric\n", nil }
		f.prompter.Passwords = []string{"pw"}

		local := filepath.Join(t.TempDir(), "lab.clab.yml")
		require.NoError(t, f.d.CopyFromRemote(context.Background(), remoteClab, "/labs/lab.clab.yml", local))
		assert.Equal(t, []string{"cat '/labs/lab.clab.yml'"}, f.shell.Commands())

		data, err := os.ReadFile(local)
		require.NoError(t, err)
		assert.Equal(t, "  # fabric\nname: fabric\n", string(data))
	})

	t.Run("not remote", func(t *testing.T) {
		f := newFixture()
		err := f.d.CopyFromRemote(context.Background(), localClab, "/x", "/tmp/x")
		assert.True(t, errors.Is(err, util.ErrInvalidConfig))
	})
}
