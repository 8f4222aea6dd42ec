// Package resolve maps topology node kinds and inventory group names to
// network OS driver identifiers.
//
// Resolution never fails. An empty result means "no opinion"; consumers
// decide whether an unknown OS is fatal for what they are doing.
package resolve

import "strings"

// Network OS driver identifiers.
const (
	EOS      = "eos"
	IOS      = "ios"
	NXOS     = "nxos"
	IOSXR    = "iosxr"
	Junos    = "junos"
	SROS     = "sros"
	Linux    = "linux"
	FortiOS  = "fortios"
	PANOS    = "panos"
	RouterOS = "routeros"
)

// kindTable maps containerlab node kinds to drivers. Matching is exact and
// case-sensitive.
var kindTable = map[string]string{
	// Arista
	"arista_ceos": EOS,
	"arista_veos": EOS,
	"ceos":        EOS,
	"veos":        EOS,

	// Cisco IOS/IOS-XE
	"cisco_c8000v":   IOS,
	"cisco_cat9kv":   IOS,
	"cisco_csr1000v": IOS,
	"cisco_c9300v":   IOS,
	"c8000v":         IOS,
	"cat9kv":         IOS,
	"csr1000v":       IOS,
	"c9300v":         IOS,

	// Cisco NX-OS
	"cisco_n9kv":       NXOS,
	"cisco_nexus9000v": NXOS,
	"n9kv":             NXOS,
	"nexus9000v":       NXOS,

	// Cisco IOS-XR
	"cisco_xrd":    IOSXR,
	"cisco_xrv9k":  IOSXR,
	"cisco_iosxrv": IOSXR,
	"xrd":          IOSXR,
	"xrv9k":        IOSXR,
	"iosxrv":       IOSXR,

	// Juniper
	"juniper_vjunosevolved": Junos,
	"juniper_vjunosswitch":  Junos,
	"juniper_vmx":           Junos,
	"juniper_vsrx":          Junos,
	"juniper_vqfx":          Junos,
	"juniper_vrr":           Junos,
	"vjunosevolved":         Junos,
	"vjunosswitch":          Junos,
	"vmx":                   Junos,
	"vsrx":                  Junos,
	"vqfx":                  Junos,
	"vrr":                   Junos,

	// Nokia
	"nokia_sros": SROS,
	"sros":       SROS,

	// Generic Linux
	"linux":  Linux,
	"ubuntu": Linux,
	"centos": Linux,
	"alpine": Linux,

	// Fortinet
	"fortinet_fortigate": FortiOS,
	"fortigate":          FortiOS,

	// Palo Alto
	"paloalto_panos": PANOS,
	"panos":          PANOS,

	// Mikrotik
	"mikrotik_routeros": RouterOS,
	"routeros":          RouterOS,
}

// Kind resolves a containerlab node kind. Unmapped kinds yield "".
func Kind(kind string) string {
	return kindTable[kind]
}

// Kinds returns every kind the table knows, for listing and tests.
func Kinds() map[string]string {
	out := make(map[string]string, len(kindTable))
	for k, v := range kindTable {
		out[k] = v
	}
	return out
}

// NetworkOSVar is the inventory variable that names a group's driver.
const NetworkOSVar = "ansible_network_os"

// Rule is one step of the group-name fallback chain. Match returns the
// driver and true when the rule applies.
type Rule struct {
	Name  string
	Match func(group string, vars map[string]string) (string, bool)
}

// containsRule resolves to os when the group name contains any marker.
func containsRule(name, os string, markers ...string) Rule {
	return Rule{
		Name: name,
		Match: func(group string, _ map[string]string) (string, bool) {
			lower := strings.ToLower(group)
			for _, m := range markers {
				if strings.Contains(lower, m) {
					return os, true
				}
			}
			return "", false
		},
	}
}

// GroupRules is the ordered chain used for inventory groups and sections.
// Evaluated top to bottom; the first match wins.
var GroupRules = []Rule{
	containsRule("junos-marker", Junos, "junos", "juniper"),
	containsRule("linux-marker", Linux, "linux"),
	{
		Name: "explicit-var",
		Match: func(_ string, vars map[string]string) (string, bool) {
			v, ok := vars[NetworkOSVar]
			return v, ok && v != ""
		},
	},
	{
		Name: "group-name",
		Match: func(group string, _ map[string]string) (string, bool) {
			return group, true
		},
	},
}

// Group resolves an inventory group or section name using GroupRules.
func Group(name string, vars map[string]string) string {
	for _, r := range GroupRules {
		if os, ok := r.Match(name, vars); ok {
			return os
		}
	}
	return ""
}

// Strategy resolves a name (kind, group or section) plus any variables in
// scope to a driver.
type Strategy func(name string, vars map[string]string) string

// KindStrategy is table lookup with empty fallback.
func KindStrategy(name string, _ map[string]string) string {
	return Kind(name)
}

// GroupStrategy is the ordered group-name fallback chain.
func GroupStrategy(name string, vars map[string]string) string {
	return Group(name, vars)
}

// ForFormat picks the strategy a source format uses. Containerlab topologies
// use the kind table; everything else is an inventory and uses group rules.
func ForFormat(format string) Strategy {
	switch format {
	case "containerlab", "containerlab-links":
		return KindStrategy
	default:
		return GroupStrategy
	}
}
