package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Runner starts local processes: docker, ssh, scp, containerlab.
type Runner interface {
	// Run executes the command and returns its combined output. A non-zero
	// exit is an error.
	Run(ctx context.Context, name string, args ...string) (string, error)
	// Attach executes the command with the terminal's stdio.
	Attach(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs processes with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	output := strings.TrimSpace(out.String())
	if err != nil {
		if output != "" {
			return output, fmt.Errorf("%s: %w: %s", name, err, output)
		}
		return output, fmt.Errorf("%s: %w", name, err)
	}
	return output, nil
}

func (ExecRunner) Attach(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
