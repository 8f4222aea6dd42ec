package inventory

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/marccolburn/poc-helper-menu/pkg/dispatch"
	"github.com/marccolburn/poc-helper-menu/pkg/model"
	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

// RemoteRunner is the part of the dispatcher discovery needs.
type RemoteRunner interface {
	RunRemote(ctx context.Context, target, command, description string) (*dispatch.Result, error)
	CopyFromRemote(ctx context.Context, lab *model.Lab, remotePath, localPath string) error
}

// Discoverer finds containerlab topology files on a lab's remote host.
type Discoverer struct {
	runner RemoteRunner
}

// NewDiscoverer creates a discoverer.
func NewDiscoverer(r RemoteRunner) *Discoverer {
	return &Discoverer{runner: r}
}

// List returns the .yml/.yaml files directly under the lab's topology path
// on its remote containerlab host, sorted.
func (d *Discoverer) List(ctx context.Context, lab *model.Lab) ([]string, error) {
	if !lab.HasRemoteTopology() {
		return nil, fmt.Errorf("lab '%s' needs a remote host, remote user and topology path: %w", lab.Name, util.ErrInvalidConfig)
	}

	cmd := fmt.Sprintf(`find %s -maxdepth 1 -type f \( -name "*.yml" -o -name "*.yaml" \) 2>/dev/null`,
		dispatch.ShellQuote(lab.TopologyPath))
	res, err := d.runner.RunRemote(ctx, lab.RemoteTarget(), cmd, "topology listing")
	if err != nil {
		return nil, fmt.Errorf("listing %s on %s: %w", lab.TopologyPath, lab.RemoteTarget(), err)
	}

	var files []string
	for _, line := range strings.Split(res.Output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ext := strings.ToLower(path.Ext(line))
		if ext == ".yml" || ext == ".yaml" {
			files = append(files, line)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no topology files in %s on %s: %w", lab.TopologyPath, lab.RemoteTarget(), util.ErrNotFound)
	}
	sort.Strings(files)
	return files, nil
}

// Fetch copies remotePath into dir and returns the local path.
func (d *Discoverer) Fetch(ctx context.Context, lab *model.Lab, remotePath, dir string) (string, error) {
	local := filepath.Join(dir, path.Base(remotePath))
	if err := d.runner.CopyFromRemote(ctx, lab, remotePath, local); err != nil {
		return "", fmt.Errorf("copying %s from %s: %w", remotePath, lab.RemoteTarget(), err)
	}
	util.WithLab(lab.Name).Infof("copied %s to %s", remotePath, local)
	return local, nil
}
