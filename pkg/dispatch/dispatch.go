// Package dispatch decides how a command reaches a lab host and sends it.
//
// Linux container nodes in containerlab labs are reached with docker exec,
// locally or through ssh to the lab's remote containerlab host. Everything
// else is reached with direct SSH using the host's stored credentials or
// credentials prompted from the operator.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marccolburn/poc-helper-menu/pkg/metrics"
	"github.com/marccolburn/poc-helper-menu/pkg/model"
	"github.com/marccolburn/poc-helper-menu/pkg/prompt"
	"github.com/marccolburn/poc-helper-menu/pkg/resolve"
	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

// Route is the transport chosen for a command.
type Route string

const (
	RouteLocal            Route = "local"              // local process
	RouteRemoteShell      Route = "remote-shell"       // ssh to the remote containerlab host
	RouteDockerExec       Route = "docker-exec"        // local docker exec
	RouteRemoteDockerExec Route = "remote-docker-exec" // docker exec on the remote containerlab host
	RouteSSH              Route = "ssh"                // direct SSH to the device
)

// Config wires a Dispatcher to its collaborators. Metrics may be nil.
type Config struct {
	Runner   Runner
	Shell    Shell
	Prompter prompt.Prompter
	Metrics  *metrics.Registry

	// SSHPort is the device SSH port. Zero means 22.
	SSHPort int
}

// Dispatcher routes and sends commands.
type Dispatcher struct {
	runner  Runner
	shell   Shell
	prompt  prompt.Prompter
	metrics *metrics.Registry
	sshPort int
}

// New creates a dispatcher. Nil Runner and Shell default to the real
// implementations.
func New(cfg Config) *Dispatcher {
	d := &Dispatcher{
		runner:  cfg.Runner,
		shell:   cfg.Shell,
		prompt:  cfg.Prompter,
		metrics: cfg.Metrics,
		sshPort: cfg.SSHPort,
	}
	if d.runner == nil {
		d.runner = ExecRunner{}
	}
	if d.shell == nil {
		d.shell = SSHShell{}
	}
	if d.prompt == nil {
		d.prompt = prompt.NewTermPrompter()
	}
	if d.sshPort == 0 {
		d.sshPort = 22
	}
	return d
}

// Request is one command for one host.
type Request struct {
	Lab  *model.Lab
	Host *model.Host
	// Command is a shell command line. Empty with Interactive set opens a
	// login shell.
	Command     string
	Interactive bool
	// Description names the command in logs and errors.
	Description string
}

// Result describes a delivered command.
type Result struct {
	Route    Route
	Target   string
	Output   string
	Duration time.Duration
}

// ContainerName returns the docker container for a containerlab node. The
// second value is false when the lab has no containerlab topology name and
// the bare hostname is used instead; that name is probably wrong.
func ContainerName(lab *model.Lab, hostname string) (string, bool) {
	if lab == nil || lab.ContainerlabName == "" {
		return hostname, false
	}
	return fmt.Sprintf("clab-%s-%s", lab.ContainerlabName, hostname), true
}

// containerName is ContainerName plus the fallback warning.
func containerName(lab *model.Lab, hostname string) string {
	name, ok := ContainerName(lab, hostname)
	if !ok {
		util.WithHost(lab.Name, hostname).Warnf("containerlab topology name unknown; using container name '%s'", name)
	}
	return name
}

// Route picks the transport for a host.
func (d *Dispatcher) Route(host *model.Host, lab *model.Lab) Route {
	if lab != nil && lab.Type == model.LabContainerlab && host.NetworkOS == resolve.Linux {
		if lab.IsRemote() {
			return RouteRemoteDockerExec
		}
		return RouteDockerExec
	}
	return RouteSSH
}

// Execute sends a command to a host over the route chosen by Route.
func (d *Dispatcher) Execute(ctx context.Context, req Request) (*Result, error) {
	if req.Host == nil {
		return nil, fmt.Errorf("dispatch: no host: %w", util.ErrNotFound)
	}
	route := d.Route(req.Host, req.Lab)
	log := util.WithHost(req.Host.LabName, req.Host.Hostname).WithField("route", route)
	log.WithField("command", req.Command).Debugf("dispatching %s", describe(req))

	start := time.Now()
	var res *Result
	var err error
	switch route {
	case RouteDockerExec, RouteRemoteDockerExec:
		res, err = d.dockerExec(ctx, req, route)
	default:
		res, err = d.ssh(ctx, req)
	}
	if res == nil {
		res = &Result{Route: route}
	}
	res.Duration = time.Since(start)
	d.metrics.RecordDispatch(string(route), res.Duration, err)
	if err != nil {
		log.WithError(err).Warnf("%s failed", describe(req))
		return res, err
	}
	return res, nil
}

func describe(req Request) string {
	if req.Description != "" {
		return req.Description
	}
	if req.Interactive {
		return "session"
	}
	return "command"
}

// dockerExec runs the command inside the host's container, locally or on
// the lab's remote containerlab host.
func (d *Dispatcher) dockerExec(ctx context.Context, req Request, route Route) (*Result, error) {
	name := containerName(req.Lab, req.Host.Hostname)
	res := &Result{Route: route, Target: name}

	var argv []string
	switch {
	case req.Interactive && req.Command == "":
		argv = []string{"docker", "exec", "-it", name, "/bin/sh"}
	case req.Interactive:
		argv = []string{"docker", "exec", "-it", name, "sh", "-c", req.Command}
	default:
		argv = []string{"docker", "exec", name, "sh", "-c", req.Command}
	}

	if route == RouteDockerExec {
		if req.Interactive {
			err := d.runner.Attach(ctx, argv[0], argv[1:]...)
			return res, wrapDispatch(route, name, err)
		}
		out, err := d.runner.Run(ctx, argv[0], argv[1:]...)
		res.Output = out
		return res, wrapDispatch(route, name, err)
	}

	remote := req.Lab.RemoteTarget()
	res.Target = remote + "/" + name
	if req.Interactive {
		err := d.attachRemote(ctx, remote, JoinArgs(argv))
		return res, wrapDispatch(route, res.Target, err)
	}
	out, err := d.remote(ctx, remote, JoinArgs(argv), describe(req))
	res.Output = out
	return res, wrapDispatch(route, res.Target, err)
}

// ssh runs the command directly on the device.
func (d *Dispatcher) ssh(ctx context.Context, req Request) (*Result, error) {
	h := req.Host
	addr := h.IPAddress
	if addr == "" {
		addr = h.Hostname
	}
	res := &Result{Route: RouteSSH, Target: addr}

	t, err := d.deviceTarget(h, addr)
	if err != nil {
		return res, err
	}
	res.Target = t.String()

	if req.Interactive {
		return res, wrapDispatch(RouteSSH, res.Target, d.shell.Attach(ctx, t, req.Command))
	}
	out, err := d.shell.Exec(ctx, t, req.Command)
	res.Output = out
	return res, wrapDispatch(RouteSSH, res.Target, err)
}

// deviceTarget uses the stored credentials when both are set and prompts
// for whichever is missing otherwise.
func (d *Dispatcher) deviceTarget(h *model.Host, addr string) (Target, error) {
	t := Target{Host: addr, Port: d.sshPort, User: h.Username, Password: h.Password}
	if h.HasCredentials() {
		return t, nil
	}
	var err error
	if t.User == "" {
		t.User, err = d.prompt.Input(fmt.Sprintf("Enter username for %s: ", h.Hostname))
		if err != nil {
			return t, err
		}
	}
	if t.Password == "" {
		t.Password, err = d.prompt.Password(fmt.Sprintf("Enter password for %s@%s: ", t.User, addr))
		if err != nil {
			return t, err
		}
	}
	return t, nil
}

func wrapDispatch(route Route, target string, err error) error {
	if err == nil {
		return nil
	}
	return util.NewDispatchError(string(route), target, err)
}

// logEntry is the logger for a remote target.
func logEntry(target string) *logrus.Entry {
	return util.WithField("remote", target)
}
