// Package model defines the canonical lab inventory: labs, hosts and the
// links between them.
package model

import "fmt"

// LabType selects how hosts in a lab are reached and which link operations
// the lab exposes.
type LabType string

const (
	LabHardware     LabType = "hardware"
	LabContainerlab LabType = "containerlab"
)

// Lab is a named collection of hosts and links.
type Lab struct {
	Name        string  `json:"lab_name" validate:"required,labname"`
	Type        LabType `json:"lab_type" validate:"required,oneof=hardware containerlab"`
	Description string  `json:"description,omitempty"`

	// Remote containerlab execution target. Only meaningful for containerlab labs.
	RemoteHost string `json:"remote_containerlab_host,omitempty"`
	RemoteUser string `json:"remote_containerlab_username,omitempty"`

	TopologyPath string `json:"topology_path,omitempty"`

	// ContainerlabName is the topology "name" captured at import; containerlab
	// prefixes container names with clab-<name>-.
	ContainerlabName string `json:"containerlab_name,omitempty"`
}

// IsHardware reports whether the lab is backed by physical devices.
func (l *Lab) IsHardware() bool {
	return l.Type == LabHardware
}

// IsRemote reports whether containerlab commands for this lab run on a
// remote host over SSH.
func (l *Lab) IsRemote() bool {
	return l.Type == LabContainerlab && l.RemoteHost != ""
}

// RemoteTarget returns the ssh destination for the remote containerlab host:
// "user@host", or just "host" when no remote user is set.
func (l *Lab) RemoteTarget() string {
	if l.RemoteUser == "" {
		return l.RemoteHost
	}
	return fmt.Sprintf("%s@%s", l.RemoteUser, l.RemoteHost)
}

// HasRemoteTopology reports whether topology files can be discovered on the
// remote containerlab host.
func (l *Lab) HasRemoteTopology() bool {
	return l.IsRemote() && l.RemoteUser != "" && l.TopologyPath != ""
}

// ClearRemote drops the remote execution target. Used when a lab is switched
// to hardware, where remote containerlab settings have no meaning.
func (l *Lab) ClearRemote() {
	l.RemoteHost = ""
	l.RemoteUser = ""
}
