package inventory

import (
	"fmt"
	"strings"
)

// QualifyConsole completes a bare console hostname. A value with neither
// ':' nor '.' is taken to lack a domain: the operator is asked for one and
// "host" becomes "host.domain". An empty answer keeps the value as is.
// The question is asked every time; answers are not remembered.
func QualifyConsole(console string, p DomainPrompter) (string, error) {
	console = strings.TrimSpace(console)
	if console == "" || strings.ContainsAny(console, ":.") || p == nil {
		return console, nil
	}
	domain, err := p.Input(fmt.Sprintf("Enter domain for console '%s' (or press Enter to use as-is): ", console))
	if err != nil {
		return "", fmt.Errorf("console domain for '%s': %w", console, err)
	}
	domain = strings.Trim(strings.TrimSpace(domain), ".")
	if domain == "" {
		return console, nil
	}
	return console + "." + domain, nil
}

// qualifyHosts runs QualifyConsole over every host in order.
func qualifyHosts(b *Batch, p DomainPrompter) error {
	for _, h := range b.Hosts {
		c, err := QualifyConsole(h.Console, p)
		if err != nil {
			return err
		}
		h.Console = c
	}
	return nil
}
