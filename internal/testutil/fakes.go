// Package testutil provides test helpers: fakes for the process, SSH and
// prompt collaborators, plus Redis and PostgreSQL helpers for integration
// tests (build tag integration).
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/marccolburn/poc-helper-menu/pkg/dispatch"
)

// Call is one recorded process invocation.
type Call struct {
	Name     string
	Args     []string
	Attached bool
}

// Line renders the call as a space-joined command line.
func (c Call) Line() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// FakeRunner records process invocations instead of running them.
type FakeRunner struct {
	mu    sync.Mutex
	Calls []Call

	// Respond decides the outcome of a call. Nil means success, no output.
	Respond func(c Call) (string, error)
}

func (f *FakeRunner) record(c Call) (string, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, c)
	respond := f.Respond
	f.mu.Unlock()
	if respond == nil {
		return "", nil
	}
	return respond(c)
}

func (f *FakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	return f.record(Call{Name: name, Args: args})
}

func (f *FakeRunner) Attach(_ context.Context, name string, args ...string) error {
	_, err := f.record(Call{Name: name, Args: args, Attached: true})
	return err
}

// Lines returns every recorded call as a command line.
func (f *FakeRunner) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := make([]string, len(f.Calls))
	for i, c := range f.Calls {
		lines[i] = c.Line()
	}
	return lines
}

// FailMatching returns a Respond func that fails calls whose line contains
// substr and succeeds otherwise.
func FailMatching(substr string, err error) func(Call) (string, error) {
	return func(c Call) (string, error) {
		if strings.Contains(c.Line(), substr) {
			return "", err
		}
		return "", nil
	}
}

// ShellCall is one recorded SSH session.
type ShellCall struct {
	Target   dispatch.Target
	Command  string
	Attached bool
}

// FakeShell records SSH sessions instead of connecting.
type FakeShell struct {
	mu    sync.Mutex
	Calls []ShellCall

	// Respond decides the outcome of a session. Nil means success, no output.
	Respond func(c ShellCall) (string, error)
}

func (f *FakeShell) record(c ShellCall) (string, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, c)
	respond := f.Respond
	f.mu.Unlock()
	if respond == nil {
		return "", nil
	}
	return respond(c)
}

func (f *FakeShell) Exec(_ context.Context, t dispatch.Target, command string) (string, error) {
	return f.record(ShellCall{Target: t, Command: command})
}

// ReadFile records the session as "cat <path>" and returns the response
// bytes untouched.
func (f *FakeShell) ReadFile(_ context.Context, t dispatch.Target, path string) ([]byte, error) {
	out, err := f.record(ShellCall{Target: t, Command: "cat " + dispatch.ShellQuote(path)})
	return []byte(out), err
}

func (f *FakeShell) Attach(_ context.Context, t dispatch.Target, command string) error {
	_, err := f.record(ShellCall{Target: t, Command: command, Attached: true})
	return err
}

// Commands returns the commands of every recorded session.
func (f *FakeShell) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmds := make([]string, len(f.Calls))
	for i, c := range f.Calls {
		cmds[i] = c.Command
	}
	return cmds
}

// FakePrompter answers prompts from scripted queues and records what was
// asked.
type FakePrompter struct {
	Inputs    []string
	Passwords []string
	Asked     []string
}

func (p *FakePrompter) Input(prompt string) (string, error) {
	p.Asked = append(p.Asked, prompt)
	if len(p.Inputs) == 0 {
		return "", fmt.Errorf("no scripted input for %q", prompt)
	}
	a := p.Inputs[0]
	p.Inputs = p.Inputs[1:]
	return a, nil
}

func (p *FakePrompter) Password(prompt string) (string, error) {
	p.Asked = append(p.Asked, prompt)
	if len(p.Passwords) == 0 {
		return "", fmt.Errorf("no scripted password for %q", prompt)
	}
	a := p.Passwords[0]
	p.Passwords = p.Passwords[1:]
	return a, nil
}
