package linkstate

import (
	"context"
	"errors"
	"fmt"
	"os/user"
	"time"

	"github.com/marccolburn/poc-helper-menu/pkg/audit"
	"github.com/marccolburn/poc-helper-menu/pkg/dispatch"
	"github.com/marccolburn/poc-helper-menu/pkg/metrics"
	"github.com/marccolburn/poc-helper-menu/pkg/model"
	"github.com/marccolburn/poc-helper-menu/pkg/store"
	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

// Executor is the part of the dispatcher the state machine drives.
type Executor interface {
	Execute(ctx context.Context, req dispatch.Request) (*dispatch.Result, error)
	RunOnLab(ctx context.Context, lab *model.Lab, argv []string, description string) (*dispatch.Result, error)
}

// Config wires a Machine. Metrics and Audit may be nil.
type Config struct {
	Store      store.Store
	Dispatcher Executor
	Metrics    *metrics.Registry
	Audit      audit.Logger

	// User is recorded on audit events. Empty means the OS user.
	User string
}

// Machine runs link transitions.
type Machine struct {
	store   store.Store
	exec    Executor
	metrics *metrics.Registry
	audit   audit.Logger
	user    string
}

// New creates a state machine.
func New(cfg Config) *Machine {
	m := &Machine{
		store:   cfg.Store,
		exec:    cfg.Dispatcher,
		metrics: cfg.Metrics,
		audit:   cfg.Audit,
		user:    cfg.User,
	}
	if m.user == "" {
		if u, err := user.Current(); err == nil {
			m.user = u.Username
		}
	}
	return m
}

// Endpoint roles.
const (
	RoleSource      = "source"
	RoleDestination = "destination"
)

// Skip reasons for an endpoint that produced no command.
const (
	SkipUnresolved    = "unresolved_host"
	SkipUnsupportedOS = "unsupported_os"
)

// EndpointOutcome is what happened at one end of a link.
type EndpointOutcome struct {
	Role      string
	Name      string // endpoint name as stored on the link
	Interface string
	Host      *model.Host // nil when unresolved
	Command   string
	Result    *dispatch.Result
	Skipped   string // skip reason; empty when a command was built
	Err       error  // dispatch error
}

// Dispatched reports whether a command was sent without error.
func (o *EndpointOutcome) Dispatched() bool {
	return o != nil && o.Command != "" && o.Err == nil
}

// ToggleResult describes one enable/disable transition.
type ToggleResult struct {
	Link        *model.Link // as persisted after the flip
	From        model.LinkState
	To          model.LinkState
	Source      *EndpointOutcome
	Destination *EndpointOutcome // nil for hardware labs
}

// Partial reports whether only one end of a two-ended toggle was commanded.
func (r *ToggleResult) Partial() bool {
	return r.Destination != nil && r.Source.Dispatched() != r.Destination.Dispatched()
}

// Commands lists the commands sent, source first.
func (r *ToggleResult) Commands() []string {
	var cmds []string
	for _, o := range []*EndpointOutcome{r.Source, r.Destination} {
		if o != nil && o.Command != "" {
			cmds = append(cmds, o.Command)
		}
	}
	return cmds
}

func (r *ToggleResult) skipped() []string {
	var s []string
	for _, o := range []*EndpointOutcome{r.Source, r.Destination} {
		if o != nil && o.Skipped != "" {
			s = append(s, fmt.Sprintf("%s %s: %s", o.Role, o.Name, o.Skipped))
		}
	}
	return s
}

// Toggle flips a link between enabled and disabled.
//
// Hardware labs command the source interface only; an unresolved source or
// unsupported OS aborts before anything is sent. Other labs command each
// end independently: an end that cannot be resolved or has no command for
// its OS is skipped and the other end still proceeds. The link flips only
// when every command built was sent successfully; the stored state is then
// re-read and must match.
func (m *Machine) Toggle(ctx context.Context, lab *model.Lab, linkID string) (res *ToggleResult, err error) {
	start := time.Now()
	link, err := m.store.GetLink(ctx, lab.Name, linkID)
	if err != nil {
		return nil, err
	}
	target := link.State.Toggle()
	op := audit.OpLinkDisable
	if target == model.LinkEnabled {
		op = audit.OpLinkEnable
	}
	res = &ToggleResult{From: link.State, To: target}
	defer func() { m.record(op, lab, link, res.Commands(), res.skipped(), start, err) }()

	log := util.WithLink(lab.Name, link.String())
	log.Debugf("%s -> %s", link.State, target)

	if lab.IsHardware() {
		res.Source, err = m.hardwareEndpoint(ctx, lab, link, target)
		if err != nil {
			return res, err
		}
	} else {
		res.Source = m.endpoint(ctx, lab, RoleSource, link.SourceHost, link.SourceInterface, target)
		res.Destination = m.endpoint(ctx, lab, RoleDestination, link.DestinationHost, link.DestinationInterface, target)
		if err = m.checkEndpoints(link, res.Source, res.Destination); err != nil {
			return res, err
		}
	}

	// Both ends are attempted before the outcome is judged.
	for _, o := range []*EndpointOutcome{res.Source, res.Destination} {
		m.send(ctx, lab, o)
	}
	if err = dispatchErr(res.Source, res.Destination); err != nil {
		log.WithError(err).Warn("link state unchanged")
		return res, err
	}

	link.State = target
	if res.Link, err = m.persist(ctx, link, func(got *model.Link) bool { return got.State == target }); err != nil {
		return res, err
	}
	if res.Partial() {
		log.Warnf("only one end commanded; link marked %s", target)
	} else {
		log.Infof("link %s", target)
	}
	return res, nil
}

// hardwareEndpoint resolves and builds the single source command for a
// hardware lab. Any gap is an error.
func (m *Machine) hardwareEndpoint(ctx context.Context, lab *model.Lab, link *model.Link, target model.LinkState) (*EndpointOutcome, error) {
	o := &EndpointOutcome{Role: RoleSource, Name: link.SourceHost, Interface: link.SourceInterface}
	h, err := m.store.FindHost(ctx, lab.Name, link.SourceHost)
	if err != nil {
		o.Skipped = SkipUnresolved
		return o, fmt.Errorf("source host '%s': %w", link.SourceHost, err)
	}
	o.Host = h
	if o.Command, err = InterfaceCommand(h.NetworkOS, link.SourceInterface, target); err != nil {
		o.Skipped = SkipUnsupportedOS
		m.metrics.RecordEndpointSkipped(SkipUnsupportedOS)
		return o, fmt.Errorf("host '%s': %w", h.Hostname, err)
	}
	return o, nil
}

// endpoint resolves and builds one end of a two-ended toggle. Gaps are
// recorded on the outcome, not returned.
func (m *Machine) endpoint(ctx context.Context, lab *model.Lab, role, name, iface string, target model.LinkState) *EndpointOutcome {
	o := &EndpointOutcome{Role: role, Name: name, Interface: iface}
	log := util.WithHost(lab.Name, name).WithField("role", role)

	h, err := m.store.FindHost(ctx, lab.Name, name)
	if err != nil {
		o.Skipped = SkipUnresolved
		if !errors.Is(err, util.ErrNotFound) {
			o.Err = err
		}
		log.Warnf("%s host '%s' not found in lab '%s'", role, name, lab.Name)
		m.metrics.RecordEndpointSkipped(SkipUnresolved)
		return o
	}
	o.Host = h

	if o.Command, err = InterfaceCommand(h.NetworkOS, iface, target); err != nil {
		o.Skipped = SkipUnsupportedOS
		log.Warnf("unsupported network OS %q on '%s'; %s interface skipped", h.NetworkOS, h.Hostname, role)
		m.metrics.RecordEndpointSkipped(SkipUnsupportedOS)
	}
	return o
}

// checkEndpoints fails a two-ended toggle that has nothing to send.
func (m *Machine) checkEndpoints(link *model.Link, src, dst *EndpointOutcome) error {
	for _, o := range []*EndpointOutcome{src, dst} {
		if o.Err != nil {
			return o.Err
		}
	}
	if src.Host == nil && dst.Host == nil {
		return fmt.Errorf("neither '%s' nor '%s' found in lab '%s': %w",
			link.SourceHost, link.DestinationHost, link.LabName, util.ErrNotFound)
	}
	if src.Command == "" && dst.Command == "" {
		return fmt.Errorf("no command for either end of %s: %w", link, util.ErrUnsupportedOS)
	}
	return nil
}

// send dispatches an outcome's command, if it has one.
func (m *Machine) send(ctx context.Context, lab *model.Lab, o *EndpointOutcome) {
	if o == nil || o.Command == "" {
		return
	}
	o.Result, o.Err = m.exec.Execute(ctx, dispatch.Request{
		Lab:         lab,
		Host:        o.Host,
		Command:     o.Command,
		Description: fmt.Sprintf("%s interface %s", o.Role, o.Interface),
	})
}

// dispatchErr joins the dispatch failures of both ends.
func dispatchErr(outcomes ...*EndpointOutcome) error {
	var errs []error
	for _, o := range outcomes {
		if o != nil && o.Err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", o.Role, o.Name, o.Err))
		}
	}
	return errors.Join(errs...)
}

// persist writes the mutable link fields and re-reads the link. check
// decides whether the stored row matches what was written.
func (m *Machine) persist(ctx context.Context, link *model.Link, check func(*model.Link) bool) (*model.Link, error) {
	tx, err := m.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := tx.UpdateLink(link); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("saving link %s: %w", link, err)
	}

	got, err := m.store.GetLink(ctx, link.LabName, link.ID)
	if err != nil {
		return nil, fmt.Errorf("re-reading link %s: %w", link, err)
	}
	if !check(got) {
		return got, fmt.Errorf("link %s: stored state %s, impairments {%s}: %w",
			link, got.State, Summary(got.Impairment), util.ErrInconsistentState)
	}
	util.WithLink(link.LabName, link.String()).Debugf("verified stored state %s", got.State)
	return got, nil
}

// record writes the audit event and metric for a transition attempt.
func (m *Machine) record(op audit.Operation, lab *model.Lab, link *model.Link, cmds, skipped []string, start time.Time, err error) {
	m.metrics.RecordLinkTransition(string(op), err)
	if m.audit == nil {
		return
	}
	e := audit.NewEvent(m.user, lab.Name, op).
		WithLink(link.String(), link.ID).
		WithCommands(cmds).
		WithSkipped(skipped).
		WithResult(err).
		WithDuration(time.Since(start))
	if aerr := m.audit.Log(e); aerr != nil {
		util.WithLab(lab.Name).WithError(aerr).Warn("audit log write failed")
	}
}
