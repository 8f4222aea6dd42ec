package inventory

import (
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

// DetectFormat guesses a file's format from its extension and, for YAML,
// its top-level keys: a "topology" key means containerlab, anything else is
// taken as an Ansible inventory.
func DetectFormat(path string, data []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".cfg":
		return FormatAnsibleINI, nil
	case ".yml", ".yaml":
		var top map[string]interface{}
		if err := yaml.Unmarshal(data, &top); err != nil {
			return "", util.NewParseError(path, "yaml", err)
		}
		if _, ok := top["topology"]; ok {
			return FormatContainerlab, nil
		}
		return FormatAnsibleYAML, nil
	}
	return "", fmt.Errorf("cannot detect format of %s (use --format): %w", path, util.ErrInvalidConfig)
}
