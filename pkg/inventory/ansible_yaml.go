package inventory

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/marccolburn/poc-helper-menu/pkg/model"
	"github.com/marccolburn/poc-helper-menu/pkg/resolve"
	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

// Inventory variables read from group, section and host scope.
const (
	varHost     = "ansible_host"
	varUser     = "ansible_user"
	varPassword = "ansible_password"
	varConsole  = "console"
)

// bridgeGroup is skipped with its whole subtree.
const bridgeGroup = "bridge"

// AnsibleInventory is the YAML inventory layout rooted at all.children.
type AnsibleInventory struct {
	All AnsibleGroup `yaml:"all"`
}

// AnsibleGroup is one inventory group. Vars apply to the group's hosts and
// to every descendant group unless overridden further down.
type AnsibleGroup struct {
	Hosts    ordered[map[string]interface{}] `yaml:"hosts"`
	Vars     map[string]interface{}          `yaml:"vars"`
	Children ordered[*AnsibleGroup]          `yaml:"children"`
}

// ParseAnsibleYAML reads an Ansible YAML inventory. Groups under
// all.children are walked recursively with all.vars as the outermost scope;
// hosts listed directly under all are ignored. Each host gets its OS
// from the group rules (explicit ansible_network_os, else the group name),
// credentials from the merged group vars, and an empty image type.
func ParseAnsibleYAML(data []byte, lab string, p DomainPrompter) (*Batch, error) {
	var inv AnsibleInventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, util.NewParseError("", string(FormatAnsibleYAML), err)
	}

	b := &Batch{Format: FormatAnsibleYAML, Lab: lab}
	strategy := resolve.ForFormat(string(FormatAnsibleYAML))
	root := stringVars(inv.All.Vars)
	for _, child := range inv.All.Children {
		b.Hosts = append(b.Hosts, walkGroup(b, child.Key, child.Value, root, lab, strategy)...)
	}

	if err := qualifyHosts(b, p); err != nil {
		return nil, err
	}
	return b, nil
}

// walkGroup flattens a group and its descendants into hosts. inherited is
// never modified; each level builds its own merged copy.
func walkGroup(b *Batch, name string, g *AnsibleGroup, inherited map[string]string, lab string, strategy resolve.Strategy) []*model.Host {
	if name == bridgeGroup {
		b.skip("group", name, SkipBridge)
		return nil
	}
	if g == nil {
		return nil
	}
	vars := mergeVars(inherited, stringVars(g.Vars))

	var hosts []*model.Host
	for _, e := range g.Hosts {
		hv := mergeVars(vars, stringVars(e.Value))
		hosts = append(hosts, &model.Host{
			Hostname:  e.Key,
			IPAddress: hv[varHost],
			NetworkOS: strategy(name, hv),
			Username:  hv[varUser],
			Password:  hv[varPassword],
			ImageType: "",
			Console:   hv[varConsole],
			LabName:   lab,
		})
	}
	for _, child := range g.Children {
		hosts = append(hosts, walkGroup(b, child.Key, child.Value, vars, lab, strategy)...)
	}
	return hosts
}

// String summarizes the batch for logs.
func (b *Batch) String() string {
	return fmt.Sprintf("%s: %d hosts, %d links, %d skipped", b.Format, len(b.Hosts), len(b.Links), len(b.Skipped))
}
