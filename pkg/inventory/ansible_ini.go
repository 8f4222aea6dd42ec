package inventory

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
	"gopkg.in/ini.v1"

	"github.com/marccolburn/poc-helper-menu/pkg/model"
	"github.com/marccolburn/poc-helper-menu/pkg/resolve"
	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

// isVarKey reports whether an INI key is a section variable rather than a
// host entry.
func isVarKey(key string) bool {
	return strings.HasPrefix(key, "ansible_") || key == varConsole
}

// ParseAnsibleINI reads an Ansible INI inventory. Sections are groups.
// "host = ip" lines are hosts; ansible_* and console keys are section
// variables that apply to every host in the section. "[group:vars]"
// sections add variables to "[group]". "[group:children]" sections are
// skipped. A host listed twice in one section fails the parse with
// util.ErrAlreadyExists.
func ParseAnsibleINI(data []byte, lab string, p DomainPrompter) (*Batch, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		KeyValueDelimiters:      "=",
		IgnoreInlineComment:     true,
		SkipUnrecognizableLines: false,
		AllowShadows:            true,
		PreserveSurroundedQuote: true,
	}, data)
	if err != nil {
		return nil, util.NewParseError("", string(FormatAnsibleINI), err)
	}

	b := &Batch{Format: FormatAnsibleINI, Lab: lab}
	strategy := resolve.ForFormat(string(FormatAnsibleINI))

	extra := make(map[string]map[string]string)
	for _, sec := range cfg.Sections() {
		if group, ok := strings.CutSuffix(sec.Name(), ":vars"); ok {
			extra[group] = mergeVars(extra[group], sectionVars(sec, func(string) bool { return true }))
		}
	}

	for _, sec := range cfg.Sections() {
		name := sec.Name()
		switch {
		case name == ini.DefaultSection:
			continue
		case strings.HasSuffix(name, ":vars"):
			continue
		case strings.HasSuffix(name, ":children"):
			b.skip("section", name, SkipChildren)
			continue
		}

		vars := mergeVars(extra[name], sectionVars(sec, isVarKey))

		seen := make(map[string]bool)
		for _, k := range sec.Keys() {
			if isVarKey(k.Name()) {
				continue
			}
			hostname, hv, err := parseHostLine(k.Name(), k.Value())
			if err != nil {
				return nil, util.NewParseError("", string(FormatAnsibleINI), err)
			}
			if seen[hostname] || len(k.ValueWithShadows()) > 1 {
				return nil, util.NewParseError("", string(FormatAnsibleINI),
					fmt.Errorf("host %s listed more than once in [%s]: %w", hostname, name, util.ErrAlreadyExists))
			}
			seen[hostname] = true
			hv = mergeVars(vars, hv)
			b.Hosts = append(b.Hosts, &model.Host{
				Hostname:  hostname,
				IPAddress: hv[varHost],
				NetworkOS: strategy(name, hv),
				Username:  hv[varUser],
				Password:  hv[varPassword],
				ImageType: "",
				Console:   hv[varConsole],
				LabName:   lab,
			})
		}
	}

	if err := qualifyHosts(b, p); err != nil {
		return nil, err
	}
	return b, nil
}

// sectionVars collects the keys accepted by keep, with surrounding quotes
// removed. A repeated key keeps its last value.
func sectionVars(sec *ini.Section, keep func(string) bool) map[string]string {
	vars := make(map[string]string)
	for _, k := range sec.Keys() {
		if !keep(k.Name()) {
			continue
		}
		v := k.Value()
		if shadows := k.ValueWithShadows(); len(shadows) > 0 {
			v = shadows[len(shadows)-1]
		}
		vars[k.Name()] = unquote(v)
	}
	return vars
}

// unquote strips one pair of matching single or double quotes.
func unquote(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

// parseHostLine splits an INI host entry into a hostname and host vars.
//
//	r1 = 10.0.0.1                              -> r1, ansible_host=10.0.0.1
//	r1 ansible_host=10.0.0.1 console=cs1       -> r1, ansible_host=10.0.0.1 console=cs1
//	r1 ansible_host=10.0.0.1 ansible_password="a b" -> ..., ansible_password=a b
//
// The INI reader splits the second form at the first '=', so the key is
// "r1 ansible_host" and the value holds the rest of the line. The rejoined
// line is split with shell quoting rules.
func parseHostLine(key, value string) (string, map[string]string, error) {
	fields := strings.Fields(key)
	if len(fields) <= 1 {
		return strings.TrimSpace(key), map[string]string{varHost: unquote(value)}, nil
	}

	tokens, err := shlex.Split(strings.Join(fields[1:], " ") + "=" + value)
	if err != nil {
		return "", nil, fmt.Errorf("host %s: %w", fields[0], err)
	}
	vars := make(map[string]string)
	for _, tok := range tokens {
		if k, v, ok := strings.Cut(tok, "="); ok {
			vars[k] = v
		}
	}
	return fields[0], vars, nil
}
