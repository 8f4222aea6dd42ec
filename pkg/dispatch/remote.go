package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"strings"
	"time"

	"github.com/marccolburn/poc-helper-menu/pkg/model"
	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

// keyAuthOpts make ssh/scp fail fast instead of asking for a password.
var keyAuthOpts = []string{
	"-o", "PasswordAuthentication=no",
	"-o", "BatchMode=yes",
	"-o", "ConnectTimeout=10",
}

// RunRemote runs a shell command on a remote host ("user@host" or "host").
// SSH key authentication is tried first; if that attempt fails for any
// reason the operator is asked for a password and the command is run again
// over a password session. There is no further retry.
func (d *Dispatcher) RunRemote(ctx context.Context, target, command, description string) (*Result, error) {
	start := time.Now()
	out, err := d.remote(ctx, target, command, description)
	res := &Result{Route: RouteRemoteShell, Target: target, Output: out, Duration: time.Since(start)}
	d.metrics.RecordDispatch(string(RouteRemoteShell), res.Duration, err)
	return res, wrapDispatch(RouteRemoteShell, target, err)
}

// RunOnLab runs argv where the lab's containerlab commands run: on the
// remote containerlab host when one is configured, locally otherwise.
func (d *Dispatcher) RunOnLab(ctx context.Context, lab *model.Lab, argv []string, description string) (*Result, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("dispatch: empty command: %w", util.ErrInvalidConfig)
	}
	if lab.IsRemote() {
		return d.RunRemote(ctx, lab.RemoteTarget(), JoinArgs(argv), description)
	}

	util.WithLab(lab.Name).WithField("command", JoinArgs(argv)).Debugf("running %s locally", description)
	start := time.Now()
	out, err := d.runner.Run(ctx, argv[0], argv[1:]...)
	res := &Result{Route: RouteLocal, Target: "localhost", Output: out, Duration: time.Since(start)}
	d.metrics.RecordDispatch(string(RouteLocal), res.Duration, err)
	return res, wrapDispatch(RouteLocal, res.Target, err)
}

// CopyFromRemote copies a file from the lab's remote containerlab host to
// localPath. scp with key authentication is tried first; the fallback reads
// the file over a password session.
func (d *Dispatcher) CopyFromRemote(ctx context.Context, lab *model.Lab, remotePath, localPath string) error {
	if !lab.IsRemote() {
		return fmt.Errorf("lab '%s' has no remote containerlab host: %w", lab.Name, util.ErrInvalidConfig)
	}
	target := lab.RemoteTarget()
	log := logEntry(target).WithField("path", remotePath)

	args := append(append([]string{}, keyAuthOpts...), target+":"+remotePath, localPath)
	_, err := d.runner.Run(ctx, "scp", args...)
	if err == nil {
		log.Debug("copied with key authentication")
		return nil
	}
	log.WithError(err).Warn("SSH key authentication failed, trying password authentication")
	d.metrics.RecordAuthFallback()

	t, err := d.remoteTarget(target)
	if err != nil {
		return wrapDispatch(RouteRemoteShell, target, err)
	}
	data, err := d.shell.ReadFile(ctx, t, remotePath)
	if err != nil {
		return wrapDispatch(RouteRemoteShell, target, err)
	}
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", localPath, err)
	}
	return nil
}

// remote is the key-then-password sequence shared by RunRemote and remote
// docker exec.
func (d *Dispatcher) remote(ctx context.Context, target, command, description string) (string, error) {
	log := logEntry(target)
	log.WithField("command", command).Debugf("executing %s", description)

	args := append(append([]string{}, keyAuthOpts...), target, command)
	out, err := d.runner.Run(ctx, "ssh", args...)
	if err == nil {
		return out, nil
	}
	log.WithError(err).Warnf("SSH key authentication failed for %s, trying password authentication", description)
	d.metrics.RecordAuthFallback()

	t, perr := d.remoteTarget(target)
	if perr != nil {
		return "", perr
	}
	return d.shell.Exec(ctx, t, command)
}

// attachRemote runs an interactive command on the remote host with a TTY.
// Only an ssh connection failure (exit 255) falls back to a password
// session; a non-zero exit from the remote command itself is returned.
func (d *Dispatcher) attachRemote(ctx context.Context, target, command string) error {
	err := d.runner.Attach(ctx, "ssh", "-t", "-o", "ConnectTimeout=10", target, command)
	if err == nil || !connectFailed(err) {
		return err
	}
	logEntry(target).WithError(err).Warn("SSH key authentication failed, trying password authentication")
	d.metrics.RecordAuthFallback()

	t, err := d.remoteTarget(target)
	if err != nil {
		return err
	}
	return d.shell.Attach(ctx, t, command)
}

// connectFailed reports whether an ssh process error means ssh itself
// failed rather than the remote command.
func connectFailed(err error) bool {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode() == 255
	}
	return true
}

// remoteTarget builds a password target for "user@host", prompting for the
// password. Without a user part the local user name is used, as ssh does.
func (d *Dispatcher) remoteTarget(target string) (Target, error) {
	t := Target{Host: target, Port: 22}
	if u, h, ok := strings.Cut(target, "@"); ok {
		t.User, t.Host = u, h
	} else if cur, err := user.Current(); err == nil {
		t.User = cur.Username
	}
	pw, err := d.prompt.Password(fmt.Sprintf("Enter password for %s: ", target))
	if err != nil {
		return t, err
	}
	t.Password = pw
	return t, nil
}
