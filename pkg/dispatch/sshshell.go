package dispatch

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/term"
)

// Target is a password-authenticated SSH destination.
type Target struct {
	Host     string
	Port     int
	User     string
	Password string
}

func (t Target) addr() string {
	port := t.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

func (t Target) String() string {
	if t.User == "" {
		return t.Host
	}
	return t.User + "@" + t.Host
}

// Shell runs commands over password SSH.
type Shell interface {
	Exec(ctx context.Context, t Target, command string) (string, error)
	ReadFile(ctx context.Context, t Target, path string) ([]byte, error)
	Attach(ctx context.Context, t Target, command string) error
}

// SSHShell is the x/crypto/ssh implementation of Shell. Host keys are not
// verified; lab devices are rebuilt too often for known_hosts to be useful.
type SSHShell struct {
	// ConnectTimeout bounds the TCP dial only. Zero means no limit.
	ConnectTimeout time.Duration
}

func (s SSHShell) dial(ctx context.Context, t Target) (*ssh.Client, error) {
	config := &ssh.ClientConfig{
		User: t.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(t.Password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = t.Password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         s.ConnectTimeout,
	}

	d := net.Dialer{Timeout: s.ConnectTimeout}
	conn, err := d.DialContext(ctx, "tcp", t.addr())
	if err != nil {
		return nil, err
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, t.addr(), config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ssh.NewClient(c, chans, reqs), nil
}

// run opens a session and hands it to fn. Cancelling ctx closes the
// connection.
func (s SSHShell) run(ctx context.Context, t Target, fn func(*ssh.Session) ([]byte, error)) ([]byte, error) {
	client, err := s.dial(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", t, err)
	}
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", t, err)
	}
	defer sess.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			client.Close()
		case <-done:
		}
	}()

	out, err := fn(sess)
	if err != nil {
		return out, fmt.Errorf("%s: %w", t, err)
	}
	return out, nil
}

// Exec runs command and returns its combined output.
func (s SSHShell) Exec(ctx context.Context, t Target, command string) (string, error) {
	out, err := s.run(ctx, t, func(sess *ssh.Session) ([]byte, error) {
		return sess.CombinedOutput(command)
	})
	return strings.TrimSpace(string(out)), err
}

// ReadFile returns the remote file's bytes as written. Only stdout is kept.
func (s SSHShell) ReadFile(ctx context.Context, t Target, path string) ([]byte, error) {
	return s.run(ctx, t, func(sess *ssh.Session) ([]byte, error) {
		return sess.Output("cat " + ShellQuote(path))
	})
}

// Attach opens a PTY session wired to the local terminal. With an empty
// command the remote login shell is started.
func (s SSHShell) Attach(ctx context.Context, t Target, command string) error {
	client, err := s.dial(ctx, t)
	if err != nil {
		return fmt.Errorf("connect %s: %w", t, err)
	}
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("session %s: %w", t, err)
	}
	defer sess.Close()

	sess.Stdin = os.Stdin
	sess.Stdout = os.Stdout
	sess.Stderr = os.Stderr

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("raw terminal: %w", err)
		}
		defer term.Restore(fd, state)

		w, h, err := term.GetSize(fd)
		if err != nil {
			w, h = 80, 24
		}
		modes := ssh.TerminalModes{ssh.ECHO: 1, ssh.TTY_OP_ISPEED: 14400, ssh.TTY_OP_OSPEED: 14400}
		if err := sess.RequestPty(envOr("TERM", "xterm"), h, w, modes); err != nil {
			return fmt.Errorf("pty %s: %w", t, err)
		}
	}

	if command == "" {
		if err := sess.Shell(); err != nil {
			return fmt.Errorf("shell %s: %w", t, err)
		}
		return sess.Wait()
	}
	return sess.Run(command)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
