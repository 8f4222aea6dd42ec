package linkstate

import (
	"context"
	"fmt"
	"time"

	"github.com/marccolburn/poc-helper-menu/pkg/audit"
	"github.com/marccolburn/poc-helper-menu/pkg/dispatch"
	"github.com/marccolburn/poc-helper-menu/pkg/model"
	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

// Change overwrites the listed impairment dimensions and leaves the others
// as they are. Values replace, they never accumulate.
type Change map[model.ImpairmentField]int

// DelayJitter is the combined delay and jitter entry. Delay is stored as
// latency.
func DelayJitter(delay, jitter int) Change {
	return Change{model.FieldLatency: delay, model.FieldJitter: jitter}
}

// Validate rejects negative values and an empty change.
func (c Change) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("no impairment given: %w", util.ErrValidationFailed)
	}
	v := &util.ValidationBuilder{}
	for f, n := range c {
		v.Add(n >= 0, fmt.Sprintf("%s must be >= 0, got %d", f, n))
	}
	return v.Build()
}

// ImpairResult describes one impairment change and its application.
type ImpairResult struct {
	Link      *model.Link // as persisted
	Container string
	Command   []string
	Result    *dispatch.Result
}

// SetImpairment overwrites the changed dimensions on a containerlab link,
// persists them, and applies the full impairment set to the source
// interface. The new values stay stored if applying fails.
func (m *Machine) SetImpairment(ctx context.Context, lab *model.Lab, linkID string, c Change) (*ImpairResult, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return m.rewrite(ctx, lab, linkID, audit.OpLinkImpair, func(imp *model.Impairment) {
		for f, n := range c {
			imp.Set(f, n)
		}
	})
}

// ClearImpairments zeroes all five dimensions, persists, and issues the
// clearing command to the device.
func (m *Machine) ClearImpairments(ctx context.Context, lab *model.Lab, linkID string) (*ImpairResult, error) {
	return m.rewrite(ctx, lab, linkID, audit.OpLinkClear, func(imp *model.Impairment) {
		*imp = model.Impairment{}
	})
}

// rewrite is the persist-then-apply sequence shared by set and clear.
func (m *Machine) rewrite(ctx context.Context, lab *model.Lab, linkID string, op audit.Operation, edit func(*model.Impairment)) (res *ImpairResult, err error) {
	if err := requireImpairable(lab); err != nil {
		return nil, err
	}
	link, err := m.store.GetLink(ctx, lab.Name, linkID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res = &ImpairResult{}
	defer func() { m.record(op, lab, link, cmdLine(res.Command), nil, start, err) }()

	edit(&link.Impairment)
	want := link.Impairment
	if res.Link, err = m.persist(ctx, link, func(got *model.Link) bool { return got.Impairment == want }); err != nil {
		return res, err
	}
	util.WithLink(lab.Name, link.String()).Infof("impairments stored: %s", Summary(want))

	applied, err := m.apply(ctx, lab, res.Link)
	if applied != nil {
		res.Container, res.Command, res.Result = applied.Container, applied.Command, applied.Result
	}
	return res, err
}

// ApplyImpairments pushes a link's stored impairments to its source
// interface without changing anything in the store.
func (m *Machine) ApplyImpairments(ctx context.Context, lab *model.Lab, link *model.Link) (res *ImpairResult, err error) {
	if err := requireImpairable(lab); err != nil {
		return nil, err
	}
	start := time.Now()
	res, err = m.apply(ctx, lab, link)
	var cmd []string
	if res != nil {
		cmd = res.Command
	}
	m.record(audit.OpLinkImpair, lab, link, cmdLine(cmd), nil, start, err)
	return res, err
}

// apply resolves the source container and runs the netem command where the
// lab's containerlab commands run.
func (m *Machine) apply(ctx context.Context, lab *model.Lab, link *model.Link) (*ImpairResult, error) {
	h, err := m.store.FindHost(ctx, lab.Name, link.SourceHost)
	if err != nil {
		return nil, fmt.Errorf("source host '%s': %w", link.SourceHost, err)
	}
	container, ok := dispatch.ContainerName(lab, h.Hostname)
	if !ok {
		util.WithHost(lab.Name, h.Hostname).Warnf("no containerlab topology name for lab '%s'; using container name '%s'", lab.Name, container)
	}

	res := &ImpairResult{
		Link:      link,
		Container: container,
		Command:   NetemCommand(container, link.SourceInterface, link.Impairment),
	}
	res.Result, err = m.exec.RunOnLab(ctx, lab, res.Command, "impairments")
	if err != nil {
		return res, fmt.Errorf("applying impairments to %s: %w", link, err)
	}
	util.WithLink(lab.Name, link.String()).Infof("impairments applied on %s", container)
	return res, nil
}

func requireImpairable(lab *model.Lab) error {
	if lab.IsHardware() {
		return fmt.Errorf("lab '%s' is a hardware lab; impairments need containerlab: %w", lab.Name, util.ErrInvalidConfig)
	}
	return nil
}

func cmdLine(argv []string) []string {
	if len(argv) == 0 {
		return nil
	}
	return []string{dispatch.JoinArgs(argv)}
}
