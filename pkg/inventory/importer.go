package inventory

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/marccolburn/poc-helper-menu/pkg/metrics"
	"github.com/marccolburn/poc-helper-menu/pkg/model"
	"github.com/marccolburn/poc-helper-menu/pkg/store"
	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

// Importer parses source files and commits the rows to a store.
type Importer struct {
	store    store.Store
	prompter DomainPrompter
	metrics  *metrics.Registry
}

// NewImporter creates an importer. m may be nil.
func NewImporter(s store.Store, p DomainPrompter, m *metrics.Registry) *Importer {
	return &Importer{store: s, prompter: p, metrics: m}
}

// Result reports what an import committed.
type Result struct {
	Lab              string
	Format           Format
	Path             string
	ContainerlabName string
	Hosts            []*model.Host
	Links            []*model.Link
	Skipped          []Skip
}

// Parse runs the parser for format.
func (im *Importer) Parse(format Format, data []byte, lab string) (*Batch, error) {
	switch format {
	case FormatAnsibleYAML:
		return ParseAnsibleYAML(data, lab, im.prompter)
	case FormatAnsibleINI:
		return ParseAnsibleINI(data, lab, im.prompter)
	case FormatContainerlab:
		return ParseContainerlab(data, lab)
	case FormatContainerlabLinks:
		return ParseContainerlabLinks(data, lab)
	}
	return nil, fmt.Errorf("unsupported import format %q: %w", format, util.ErrInvalidConfig)
}

// Import reads path, parses it as format (FormatAuto detects) and adds the
// rows to lab in one transaction. A containerlab import also records the
// topology name on the lab. On any error nothing is written.
func (im *Importer) Import(ctx context.Context, lab string, format Format, path string) (res *Result, err error) {
	log := util.WithLab(lab).WithField("path", path)
	defer func() {
		n, l := 0, 0
		if res != nil {
			n, l = len(res.Hosts), len(res.Links)
		}
		im.metrics.RecordImport(string(format), n, l, err)
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, util.NewParseError(path, string(format), err)
	}
	if format == FormatAuto || format == "" {
		if format, err = DetectFormat(path, data); err != nil {
			return nil, err
		}
		log.Debugf("detected format %s", format)
	}

	batch, err := im.Parse(format, data, lab)
	if err != nil {
		var pe *util.ParseError
		if errors.As(err, &pe) && pe.Path == "" {
			pe.Path = path
		}
		return nil, err
	}
	log.Debug(batch.String())

	if err := im.Commit(ctx, batch); err != nil {
		return nil, err
	}

	for reason, n := range batch.SkippedBy() {
		im.metrics.RecordSkipped(reason, n)
	}
	log.Infof("imported %d hosts, %d links", len(batch.Hosts), len(batch.Links))
	return &Result{
		Lab:              lab,
		Format:           format,
		Path:             path,
		ContainerlabName: batch.ContainerlabName,
		Hosts:            batch.Hosts,
		Links:            batch.Links,
		Skipped:          batch.Skipped,
	}, nil
}

// Commit writes a parsed batch. Imports only add rows; the one update is
// the containerlab topology name on the lab record.
func (im *Importer) Commit(ctx context.Context, b *Batch) error {
	l, err := im.store.GetLab(ctx, b.Lab)
	if err != nil {
		return err
	}

	tx, err := im.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if b.ContainerlabName != "" && b.ContainerlabName != l.ContainerlabName {
		l.ContainerlabName = b.ContainerlabName
		if err := tx.UpdateLab(l); err != nil {
			return err
		}
		util.WithLab(l.Name).Infof("captured containerlab topology name: %s", b.ContainerlabName)
	}
	for _, h := range b.Hosts {
		if err := tx.AddHost(h); err != nil {
			return fmt.Errorf("host '%s': %w", h.Hostname, err)
		}
	}
	for _, link := range b.Links {
		if err := tx.AddLink(link); err != nil {
			return fmt.Errorf("link %s: %w", link, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		if errors.Is(err, util.ErrAlreadyExists) {
			return fmt.Errorf("import into lab '%s' rolled back, one or more rows already exist: %w", b.Lab, err)
		}
		return err
	}
	return nil
}

// AddHost adds one manually entered host, qualifying its console first.
func (im *Importer) AddHost(ctx context.Context, lab string, h *model.Host) error {
	if _, err := im.store.GetLab(ctx, lab); err != nil {
		return err
	}
	h.LabName = lab
	console, err := QualifyConsole(h.Console, im.prompter)
	if err != nil {
		return err
	}
	h.Console = console

	tx, err := im.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := tx.AddHost(h); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("host '%s': %w", h.Hostname, err)
	}
	util.WithHost(lab, h.Hostname).Info("host added")
	return nil
}
