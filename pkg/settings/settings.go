// Package settings manages persistent user settings for the poclab CLI.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

// Environment overrides.
const (
	EnvSettings = "POCLAB_SETTINGS"
	EnvStore    = "POCLAB_STORE"
	EnvLab      = "POCLAB_LAB"
)

// DefaultStoreURL is used when no store is configured anywhere.
const DefaultStoreURL = "redis://127.0.0.1:6379/0"

// Settings holds persistent user preferences
type Settings struct {
	// Store is the inventory store URL (memory://, redis://, postgres://)
	Store string `json:"store,omitempty"`

	// DefaultLab is the lab to use when --lab is not specified
	DefaultLab string `json:"default_lab,omitempty"`

	// AuditLog is the JSON-lines file link operations are recorded to
	AuditLog string `json:"audit_log,omitempty"`

	// MetricsFile receives a Prometheus textfile at exit
	MetricsFile string `json:"metrics_file,omitempty"`

	// LogFormat is "text" (default) or "json"
	LogFormat string `json:"log_format,omitempty"`

	// SSHPort for direct device sessions; 0 means 22
	SSHPort int `json:"ssh_port,omitempty"`
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	if p := os.Getenv(EnvSettings); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "poclab_settings.json"
	}
	return filepath.Join(home, ".poclab", "settings.json")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty settings if file doesn't exist
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("settings %s: %w", path, err)
	}

	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// StoreURL resolves the store URL: flag, then POCLAB_STORE, then the
// settings file, then DefaultStoreURL.
func (s *Settings) StoreURL(flag string) string {
	return firstNonEmpty(flag, os.Getenv(EnvStore), s.Store, DefaultStoreURL)
}

// LabName resolves the working lab: flag, then POCLAB_LAB, then default_lab.
// Empty means no lab is selected.
func (s *Settings) LabName(flag string) string {
	return firstNonEmpty(flag, os.Getenv(EnvLab), s.DefaultLab)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Keys lists the settable keys, sorted.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var setters = map[string]func(s *Settings, v string) error{
	"store":        func(s *Settings, v string) error { s.Store = v; return nil },
	"default_lab":  func(s *Settings, v string) error { s.DefaultLab = v; return nil },
	"audit_log":    func(s *Settings, v string) error { s.AuditLog = v; return nil },
	"metrics_file": func(s *Settings, v string) error { s.MetricsFile = v; return nil },
	"log_format": func(s *Settings, v string) error {
		switch v {
		case "", "text", "json":
			s.LogFormat = v
			return nil
		}
		return fmt.Errorf("log_format must be text or json: %w", util.ErrInvalidConfig)
	},
	"ssh_port": func(s *Settings, v string) error {
		if v == "" {
			s.SSHPort = 0
			return nil
		}
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("ssh_port %q is not a port number: %w", v, util.ErrInvalidConfig)
		}
		s.SSHPort = port
		return nil
	},
}

// Set assigns one setting by its JSON key. An empty value unsets it.
func (s *Settings) Set(key, value string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown setting %q: %w", key, util.ErrInvalidConfig)
	}
	return set(s, value)
}

// IsKey reports whether key names a setting.
func IsKey(key string) bool {
	_, ok := setters[key]
	return ok
}

// Get returns one setting by its JSON key, empty when unset or unknown.
func (s *Settings) Get(key string) string {
	switch key {
	case "store":
		return s.Store
	case "default_lab":
		return s.DefaultLab
	case "audit_log":
		return s.AuditLog
	case "metrics_file":
		return s.MetricsFile
	case "log_format":
		return s.LogFormat
	case "ssh_port":
		if s.SSHPort != 0 {
			return strconv.Itoa(s.SSHPort)
		}
	}
	return ""
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}
