// Package linkstate moves links between enabled and disabled and manages
// netem impairments on containerlab links.
//
// Every transition follows the same order: build the device commands,
// dispatch them, then persist and re-read the link. A dispatch failure
// leaves the stored link untouched.
package linkstate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/marccolburn/poc-helper-menu/pkg/model"
	"github.com/marccolburn/poc-helper-menu/pkg/resolve"
	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

// InterfaceCommand builds the command that brings iface to state on a host
// running os. Only Linux and Junos are supported.
func InterfaceCommand(os, iface string, state model.LinkState) (string, error) {
	switch os {
	case resolve.Linux:
		verb := "down"
		if state == model.LinkEnabled {
			verb = "up"
		}
		return fmt.Sprintf("ip link set %s %s", iface, verb), nil
	case resolve.Junos:
		verb := "disable"
		if state == model.LinkEnabled {
			verb = "enable"
		}
		return fmt.Sprintf("configure; set interfaces %s %s; commit and-quit", iface, verb), nil
	}
	return "", fmt.Errorf("%q: %w", os, util.ErrUnsupportedOS)
}

// NetemCommand builds the containerlab netem invocation for the source
// interface of a link. Each non-zero dimension adds one flag; with none the
// command resets the interface.
func NetemCommand(container, iface string, imp model.Impairment) []string {
	argv := []string{"sudo", "containerlab", "tools", "netem", "set", "-n", container, "-i", iface}
	if imp.Latency > 0 {
		argv = append(argv, "--delay", strconv.Itoa(imp.Latency)+"ms")
	}
	if imp.Jitter > 0 {
		argv = append(argv, "--jitter", strconv.Itoa(imp.Jitter)+"ms")
	}
	if imp.Loss > 0 {
		argv = append(argv, "--loss", strconv.Itoa(imp.Loss))
	}
	if imp.Rate > 0 {
		argv = append(argv, "--rate", strconv.Itoa(imp.Rate))
	}
	if imp.Corruption > 0 {
		argv = append(argv, "--corruption", strconv.Itoa(imp.Corruption))
	}
	return argv
}

// units per impairment dimension, for display.
var units = map[model.ImpairmentField]string{
	model.FieldJitter:     "ms",
	model.FieldLatency:    "ms",
	model.FieldLoss:       "%",
	model.FieldRate:       "kbit/s",
	model.FieldCorruption: "%",
}

// Summary renders the applied impairments as "Jitter: 10ms, Latency: 50ms",
// or "No impairments".
func Summary(imp model.Impairment) string {
	fields := imp.NonZero()
	if len(fields) == 0 {
		return "No impairments"
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s: %d%s", util.CapitalizeFirst(string(f)), imp.Get(f), units[f])
	}
	return strings.Join(parts, ", ")
}
