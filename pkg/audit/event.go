// Package audit records link state changes and impairment operations.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event is one auditable link operation.
type Event struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	User      string        `json:"user"`
	Lab       string        `json:"lab"`
	Link      string        `json:"link"`
	LinkID    string        `json:"link_id,omitempty"`
	Operation Operation     `json:"operation"`
	Commands  []string      `json:"commands,omitempty"`
	Skipped   []string      `json:"skipped,omitempty"` // endpoints that produced no command
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Operation names a link operation.
type Operation string

const (
	OpLinkEnable  Operation = "link.enable"
	OpLinkDisable Operation = "link.disable"
	OpLinkImpair  Operation = "link.impair"
	OpLinkClear   Operation = "link.clear"
)

// Filter defines criteria for querying audit events
type Filter struct {
	Lab         string
	Link        string
	User        string
	Operation   Operation
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates a new audit event
func NewEvent(user, lab string, op Operation) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		User:      user,
		Lab:       lab,
		Operation: op,
	}
}

// WithLink sets the link description and id
func (e *Event) WithLink(desc, id string) *Event {
	e.Link = desc
	e.LinkID = id
	return e
}

// WithCommands sets the device commands that were dispatched
func (e *Event) WithCommands(cmds []string) *Event {
	e.Commands = cmds
	return e
}

// WithSkipped sets the endpoints that produced no command
func (e *Event) WithSkipped(skipped []string) *Event {
	e.Skipped = skipped
	return e
}

// WithSuccess marks the event as successful
func (e *Event) WithSuccess() *Event {
	e.Success = true
	return e
}

// WithError marks the event as failed
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithResult marks the event from an operation's outcome
func (e *Event) WithResult(err error) *Event {
	if err != nil {
		return e.WithError(err)
	}
	return e.WithSuccess()
}

// WithDuration sets the operation duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}
