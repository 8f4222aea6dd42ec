// Package store persists the lab inventory.
//
// Reads go straight to the backend. Writes are collected in a Tx and applied
// all-or-nothing on Commit, so an import that trips over a duplicate leaves
// nothing behind.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/marccolburn/poc-helper-menu/pkg/model"
	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

// Store is a session over the Lab, Host and Link tables.
type Store interface {
	GetLab(ctx context.Context, name string) (*model.Lab, error)
	ListLabs(ctx context.Context) ([]*model.Lab, error)

	// GetHost matches the hostname exactly.
	GetHost(ctx context.Context, lab, hostname string) (*model.Host, error)
	// FindHost resolves a link endpoint name to a host: an exact match if
	// there is one, otherwise the first host (in insertion order) whose
	// hostname contains fragment.
	FindHost(ctx context.Context, lab, fragment string) (*model.Host, error)
	ListHosts(ctx context.Context, lab string) ([]*model.Host, error)

	GetLink(ctx context.Context, lab, id string) (*model.Link, error)
	ListLinks(ctx context.Context, lab string) ([]*model.Link, error)

	Begin(ctx context.Context) (Tx, error)
	Close() error
}

// Tx buffers writes until Commit. Records are validated when queued; identity
// conflicts surface from Commit as util.ErrAlreadyExists.
type Tx interface {
	CreateLab(l *model.Lab) error
	UpdateLab(l *model.Lab) error
	// DeleteLab removes the lab with all of its hosts and links.
	DeleteLab(name string) error
	AddHost(h *model.Host) error
	AddLink(l *model.Link) error
	// UpdateLink overwrites the mutable link fields: state and impairments.
	UpdateLink(l *model.Link) error

	Commit(ctx context.Context) error
	Rollback() error
}

// ErrTxDone is returned when a finished Tx is used again.
var ErrTxDone = errors.New("transaction already committed or rolled back")

type opKind int

const (
	opCreateLab opKind = iota
	opUpdateLab
	opDeleteLab
	opAddHost
	opAddLink
	opUpdateLink
)

func (k opKind) String() string {
	switch k {
	case opCreateLab:
		return "create lab"
	case opUpdateLab:
		return "update lab"
	case opDeleteLab:
		return "delete lab"
	case opAddHost:
		return "add host"
	case opAddLink:
		return "add link"
	case opUpdateLink:
		return "update link"
	}
	return "unknown"
}

// op is one queued write. Records are copied when queued so later caller
// mutations do not leak into the batch.
type op struct {
	kind opKind
	lab  *model.Lab
	name string
	host *model.Host
	link *model.Link
}

// batch is the backend-independent half of a Tx.
type batch struct {
	ops  []op
	done bool
}

func (b *batch) queue(o op) error {
	if b.done {
		return ErrTxDone
	}
	b.ops = append(b.ops, o)
	return nil
}

func (b *batch) CreateLab(l *model.Lab) error {
	if err := model.ValidateLab(l); err != nil {
		return err
	}
	c := *l
	return b.queue(op{kind: opCreateLab, lab: &c})
}

func (b *batch) UpdateLab(l *model.Lab) error {
	if err := model.ValidateLab(l); err != nil {
		return err
	}
	c := *l
	return b.queue(op{kind: opUpdateLab, lab: &c})
}

func (b *batch) DeleteLab(name string) error {
	return b.queue(op{kind: opDeleteLab, name: name})
}

func (b *batch) AddHost(h *model.Host) error {
	if err := model.ValidateHost(h); err != nil {
		return err
	}
	c := *h
	return b.queue(op{kind: opAddHost, host: &c})
}

func (b *batch) AddLink(l *model.Link) error {
	if err := model.ValidateLink(l); err != nil {
		return err
	}
	c := *l
	return b.queue(op{kind: opAddLink, link: &c})
}

func (b *batch) UpdateLink(l *model.Link) error {
	if err := model.ValidateLink(l); err != nil {
		return err
	}
	c := *l
	return b.queue(op{kind: opUpdateLink, link: &c})
}

// finish marks the batch used and returns its ops.
func (b *batch) finish() ([]op, error) {
	if b.done {
		return nil, ErrTxDone
	}
	b.done = true
	return b.ops, nil
}

func (b *batch) Rollback() error {
	if b.done {
		return nil
	}
	b.done = true
	b.ops = nil
	return nil
}

func labNotFound(name string) error {
	return fmt.Errorf("lab '%s': %w", name, util.ErrNotFound)
}

func hostNotFound(lab, name string) error {
	return fmt.Errorf("host '%s' in lab '%s': %w", name, lab, util.ErrNotFound)
}

func linkNotFound(lab, id string) error {
	return fmt.Errorf("link %s in lab '%s': %w", id, lab, util.ErrNotFound)
}

func duplicate(what string) error {
	return fmt.Errorf("%s: %w", what, util.ErrAlreadyExists)
}

// matchHost applies the FindHost rule to hosts in insertion order.
func matchHost(hosts []*model.Host, fragment string) *model.Host {
	if fragment == "" {
		return nil
	}
	for _, h := range hosts {
		if h.Hostname == fragment {
			return h
		}
	}
	for _, h := range hosts {
		if strings.Contains(h.Hostname, fragment) {
			return h
		}
	}
	return nil
}
