// Package inventory turns Ansible inventories and containerlab topologies
// into lab hosts and links.
//
// Parsers are pure apart from console qualification, which may ask the
// operator for a domain. They return a Batch; the Importer writes a batch to
// the store in one transaction so a duplicate rolls back the whole import.
package inventory

import (
	"fmt"
	"strings"

	"github.com/marccolburn/poc-helper-menu/pkg/model"
	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

// Format identifies a source file format.
type Format string

const (
	FormatAuto              Format = "auto"
	FormatAnsibleYAML       Format = "ansible-yaml"
	FormatAnsibleINI        Format = "ansible-ini"
	FormatContainerlab      Format = "containerlab"
	FormatContainerlabLinks Format = "containerlab-links"
)

// Formats lists the concrete formats.
var Formats = []Format{FormatAnsibleYAML, FormatAnsibleINI, FormatContainerlab, FormatContainerlabLinks}

// ParseFormat accepts a format name or one of the short aliases
// yaml, ini, clab and links.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "yaml", "yml", string(FormatAnsibleYAML):
		return FormatAnsibleYAML, nil
	case "ini", string(FormatAnsibleINI):
		return FormatAnsibleINI, nil
	case "clab", string(FormatContainerlab):
		return FormatContainerlab, nil
	case "links", string(FormatContainerlabLinks):
		return FormatContainerlabLinks, nil
	}
	return "", fmt.Errorf("unknown format %q: %w", s, util.ErrInvalidConfig)
}

// DomainPrompter asks the operator for a console domain.
type DomainPrompter interface {
	Input(prompt string) (string, error)
}

// Skip records a source entry dropped on purpose.
type Skip struct {
	Kind   string // "node", "group", "link" or "section"
	Name   string
	Reason string
}

// Skip reasons.
const (
	SkipBridge        = "bridge"
	SkipMalformedLink = "malformed_link"
	SkipChildren      = "children_section"
)

// Batch is the output of one parse: rows for a single lab.
type Batch struct {
	Format Format
	Lab    string

	// ContainerlabName is the topology name to record on the lab; empty
	// leaves the lab untouched.
	ContainerlabName string

	Hosts   []*model.Host
	Links   []*model.Link
	Skipped []Skip
}

func (b *Batch) skip(kind, name, reason string) {
	b.Skipped = append(b.Skipped, Skip{Kind: kind, Name: name, Reason: reason})
}

// SkippedBy counts skipped entries per reason.
func (b *Batch) SkippedBy() map[string]int {
	counts := make(map[string]int)
	for _, s := range b.Skipped {
		counts[s.Reason]++
	}
	return counts
}
