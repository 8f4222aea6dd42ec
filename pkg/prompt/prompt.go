// Package prompt reads operator input from the terminal.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// Prompter asks the operator for values. Implementations must not echo
// passwords.
type Prompter interface {
	Input(prompt string) (string, error)
	Password(prompt string) (string, error)
}

// ErrNoInput is returned when input is closed before a line is read.
var ErrNoInput = errors.New("no input")

// TermPrompter prompts on a terminal. Prompts go to Out; lines come from In.
// Password reads use raw mode when In is a terminal and fall back to a plain
// line read otherwise (pipes, tests).
type TermPrompter struct {
	In  *os.File
	Out io.Writer

	reader *bufio.Reader
}

// NewTermPrompter prompts on stdin/stderr.
func NewTermPrompter() *TermPrompter {
	return &TermPrompter{In: os.Stdin, Out: os.Stderr}
}

func (p *TermPrompter) lines() *bufio.Reader {
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	return p.reader
}

// Input prints prompt and returns the next line with surrounding whitespace
// trimmed.
func (p *TermPrompter) Input(prompt string) (string, error) {
	fmt.Fprint(p.Out, prompt)
	line, err := p.lines().ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", ErrNoInput
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Password prints prompt and reads a line without echo.
func (p *TermPrompter) Password(prompt string) (string, error) {
	fd := int(p.In.Fd())
	if !term.IsTerminal(fd) {
		return p.Input(prompt)
	}
	fmt.Fprint(p.Out, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(p.Out)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}

// Confirm asks a yes/no question; only "y" or "yes" (any case) is yes.
func Confirm(p Prompter, question string) (bool, error) {
	answer, err := p.Input(question + " (y/n): ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// Int asks for a non-negative integer, re-asking on bad input up to three
// times.
func Int(p Prompter, question string) (int, error) {
	var lastErr error
	for i := 0; i < 3; i++ {
		answer, err := p.Input(question)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(answer)
		if err != nil || n < 0 {
			lastErr = fmt.Errorf("invalid number %q", answer)
			continue
		}
		return n, nil
	}
	return 0, lastErr
}
