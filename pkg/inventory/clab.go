package inventory

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/marccolburn/poc-helper-menu/pkg/model"
	"github.com/marccolburn/poc-helper-menu/pkg/resolve"
	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

// Credentials containerlab nodes boot with.
const (
	ClabDefaultUser     = "admin"
	ClabDefaultPassword = "admin@123"
)

// bridgeKind nodes are Linux bridges, not hosts.
const bridgeKind = "bridge"

// ClabTopology represents the containerlab topology YAML structure.
type ClabTopology struct {
	Name     string       `yaml:"name"`
	Topology ClabTopoSpec `yaml:"topology"`
}

// ClabTopoSpec contains the nodes and links sections.
type ClabTopoSpec struct {
	Defaults ClabNode          `yaml:"defaults"`
	Nodes    ordered[ClabNode] `yaml:"nodes"`
	Links    []ClabLink        `yaml:"links"`
}

// ClabNode is the part of a containerlab node declaration poclab reads.
type ClabNode struct {
	Kind     string `yaml:"kind"`
	Image    string `yaml:"image"`
	MgmtIPv4 string `yaml:"mgmt-ipv4"`
}

// ClabLink defines a containerlab link. Endpoints are "node:interface"
// strings; anything else (including the extended map form) is skipped.
type ClabLink struct {
	Endpoints []interface{} `yaml:"endpoints"`
}

func loadClab(data []byte, format Format) (*ClabTopology, error) {
	var topo ClabTopology
	if err := yaml.Unmarshal(data, &topo); err != nil {
		return nil, util.NewParseError("", string(format), err)
	}
	return &topo, nil
}

// ParseContainerlab reads a containerlab topology: the topology name, every
// node except bridges, and the links. Nodes get the containerlab default
// credentials, their kind as image type and an OS from the kind table.
func ParseContainerlab(data []byte, lab string) (*Batch, error) {
	topo, err := loadClab(data, FormatContainerlab)
	if err != nil {
		return nil, err
	}

	b := &Batch{Format: FormatContainerlab, Lab: lab, ContainerlabName: topo.Name}
	strategy := resolve.ForFormat(string(FormatContainerlab))
	for _, n := range topo.Topology.Nodes {
		kind := n.Value.Kind
		if kind == "" {
			kind = topo.Topology.Defaults.Kind
		}
		if kind == bridgeKind {
			b.skip("node", n.Key, SkipBridge)
			continue
		}
		b.Hosts = append(b.Hosts, &model.Host{
			Hostname:  n.Key,
			IPAddress: n.Value.MgmtIPv4,
			NetworkOS: strategy(kind, nil),
			Username:  ClabDefaultUser,
			Password:  ClabDefaultPassword,
			ImageType: kind,
			LabName:   lab,
		})
	}
	addClabLinks(b, topo.Topology.Links, lab)
	return b, nil
}

// ParseContainerlabLinks reads only the links of a containerlab topology.
// Used for hardware labs cabled after a containerlab design; the lab record
// is left alone.
func ParseContainerlabLinks(data []byte, lab string) (*Batch, error) {
	topo, err := loadClab(data, FormatContainerlabLinks)
	if err != nil {
		return nil, err
	}
	b := &Batch{Format: FormatContainerlabLinks, Lab: lab}
	addClabLinks(b, topo.Topology.Links, lab)
	return b, nil
}

func addClabLinks(b *Batch, links []ClabLink, lab string) {
	for i, l := range links {
		src, dst, ok := parseEndpoints(l.Endpoints)
		if !ok {
			b.skip("link", linkLabel(i, l.Endpoints), SkipMalformedLink)
			continue
		}
		b.Links = append(b.Links, model.NewLink(lab, src[0], src[1], dst[0], dst[1]))
	}
}

// parseEndpoints accepts exactly two "node:interface" strings with both
// parts non-empty.
func parseEndpoints(eps []interface{}) (src, dst []string, ok bool) {
	if len(eps) != 2 {
		return nil, nil, false
	}
	if src, ok = splitEndpoint(eps[0]); !ok {
		return nil, nil, false
	}
	if dst, ok = splitEndpoint(eps[1]); !ok {
		return nil, nil, false
	}
	return src, dst, true
}

func splitEndpoint(ep interface{}) ([]string, bool) {
	s, isString := ep.(string)
	if !isString {
		return nil, false
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, false
	}
	return parts, true
}

func linkLabel(i int, eps []interface{}) string {
	var parts []string
	for _, ep := range eps {
		if s, ok := ep.(string); ok {
			parts = append(parts, s)
		} else {
			parts = append(parts, "?")
		}
	}
	if len(parts) == 0 {
		return "links[" + strconv.Itoa(i) + "]"
	}
	return strings.Join(parts, " <-> ")
}
