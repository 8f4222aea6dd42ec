package model

import "strings"

// Host is a device in a lab. Hostnames are unique within a lab only.
type Host struct {
	Hostname  string `json:"hostname" validate:"required"`
	IPAddress string `json:"ip_address"`
	NetworkOS string `json:"network_os"` // resolved driver id; empty when unmapped
	Username  string `json:"username"`
	Password  string `json:"password"` // empty triggers a prompt at dispatch time
	ImageType string `json:"image_type"`
	Console   string `json:"console,omitempty"` // host[:port]
	LabName   string `json:"lab_name" validate:"required,labname"`
}

// HasCredentials reports whether both username and password are stored.
func (h *Host) HasCredentials() bool {
	return h.Username != "" && h.Password != ""
}

// ConsoleAddr splits Console into host and port, defaulting to telnet/23.
func (h *Host) ConsoleAddr() (string, string) {
	if host, port, ok := strings.Cut(h.Console, ":"); ok {
		return host, port
	}
	return h.Console, "23"
}
