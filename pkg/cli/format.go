// Package cli provides shared formatting helpers for the poclab CLI.
package cli

import (
	"os"
	"strings"

	"github.com/marccolburn/poc-helper-menu/pkg/model"
)

// colorEnabled is false when NO_COLOR env var is set (per no-color.org).
var colorEnabled = os.Getenv("NO_COLOR") == ""

// Green wraps s in ANSI green. Returns s unchanged when NO_COLOR is set.
func Green(s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[32m" + s + "\033[0m"
}

// Yellow wraps s in ANSI yellow. Returns s unchanged when NO_COLOR is set.
func Yellow(s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[33m" + s + "\033[0m"
}

// Red wraps s in ANSI red. Returns s unchanged when NO_COLOR is set.
func Red(s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[31m" + s + "\033[0m"
}

// Bold wraps s in ANSI bold. Returns s unchanged when NO_COLOR is set.
func Bold(s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[1m" + s + "\033[0m"
}

// Dim wraps s in ANSI dim. Returns s unchanged when NO_COLOR is set.
func Dim(s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[2m" + s + "\033[0m"
}

// DotPad pads name with dots to the given width.
// Example: DotPad("state", 12) → "state ......"
func DotPad(name string, width int) string {
	if width <= 0 || len(name) >= width-1 {
		return name
	}
	dots := width - len(name) - 1
	return name + " " + strings.Repeat(".", dots)
}

// State renders a link state, green when enabled and red when disabled.
func State(s model.LinkState) string {
	if s == model.LinkDisabled {
		return Red(string(s))
	}
	return Green(string(s))
}

// Location describes where a lab's containerlab commands run: the remote
// target, "Local" for a local containerlab lab, "N/A" for hardware.
func Location(l *model.Lab) string {
	switch {
	case l.IsHardware():
		return "N/A"
	case l.IsRemote():
		return l.RemoteTarget()
	}
	return "Local"
}
