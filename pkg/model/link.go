package model

import (
	"fmt"

	"github.com/google/uuid"
)

// LinkState is the administrative state of both ends of a link.
type LinkState string

const (
	LinkEnabled  LinkState = "enabled"
	LinkDisabled LinkState = "disabled"
)

// Toggle returns the opposite state. Anything that is not disabled is
// treated as enabled.
func (s LinkState) Toggle() LinkState {
	if s == LinkDisabled {
		return LinkEnabled
	}
	return LinkDisabled
}

// Impairment holds netem magnitudes. Zero means not applied.
type Impairment struct {
	Latency    int `json:"latency" validate:"min=0"`    // ms
	Jitter     int `json:"jitter" validate:"min=0"`     // ms
	Loss       int `json:"loss" validate:"min=0"`       // percent
	Rate       int `json:"rate" validate:"min=0"`       // kbit/s
	Corruption int `json:"corruption" validate:"min=0"` // percent
}

// ImpairmentField names one impairment dimension.
type ImpairmentField string

const (
	FieldJitter     ImpairmentField = "jitter"
	FieldLatency    ImpairmentField = "latency"
	FieldLoss       ImpairmentField = "loss"
	FieldRate       ImpairmentField = "rate"
	FieldCorruption ImpairmentField = "corruption"
)

// ImpairmentFields lists the dimensions in display order.
var ImpairmentFields = []ImpairmentField{FieldJitter, FieldLatency, FieldLoss, FieldRate, FieldCorruption}

// Get returns the magnitude of a single dimension.
func (i Impairment) Get(f ImpairmentField) int {
	switch f {
	case FieldJitter:
		return i.Jitter
	case FieldLatency:
		return i.Latency
	case FieldLoss:
		return i.Loss
	case FieldRate:
		return i.Rate
	case FieldCorruption:
		return i.Corruption
	}
	return 0
}

// Set overwrites a single dimension.
func (i *Impairment) Set(f ImpairmentField, v int) {
	switch f {
	case FieldJitter:
		i.Jitter = v
	case FieldLatency:
		i.Latency = v
	case FieldLoss:
		i.Loss = v
	case FieldRate:
		i.Rate = v
	case FieldCorruption:
		i.Corruption = v
	}
}

// IsZero reports whether no impairment is applied.
func (i Impairment) IsZero() bool {
	return i == Impairment{}
}

// NonZero returns the applied dimensions in display order.
func (i Impairment) NonZero() []ImpairmentField {
	var fields []ImpairmentField
	for _, f := range ImpairmentFields {
		if i.Get(f) != 0 {
			fields = append(fields, f)
		}
	}
	return fields
}

// Link connects a source interface to a destination interface. Host names
// are identifiers matched against Host.Hostname at use time, not foreign keys.
type Link struct {
	ID                   string    `json:"id" validate:"required"`
	SourceHost           string    `json:"source_host" validate:"required"`
	SourceInterface      string    `json:"source_interface" validate:"required"`
	DestinationHost      string    `json:"destination_host" validate:"required"`
	DestinationInterface string    `json:"destination_interface" validate:"required"`
	LabName              string    `json:"lab_name" validate:"required,labname"`
	State                LinkState `json:"state" validate:"required,oneof=enabled disabled"`

	Impairment
}

// NewLink creates an enabled, unimpaired link with a fresh ID.
func NewLink(lab, srcHost, srcIface, dstHost, dstIface string) *Link {
	return &Link{
		ID:                   uuid.NewString(),
		SourceHost:           srcHost,
		SourceInterface:      srcIface,
		DestinationHost:      dstHost,
		DestinationInterface: dstIface,
		LabName:              lab,
		State:                LinkEnabled,
	}
}

// Key is the identity of a link within its lab. Two links with the same key
// are duplicates.
func (l *Link) Key() string {
	return fmt.Sprintf("%s:%s|%s:%s", l.SourceHost, l.SourceInterface, l.DestinationHost, l.DestinationInterface)
}

// String renders the link as "src:if -> dst:if".
func (l *Link) String() string {
	return fmt.Sprintf("%s:%s -> %s:%s", l.SourceHost, l.SourceInterface, l.DestinationHost, l.DestinationInterface)
}

// IsEnabled reports whether the link is administratively up.
func (l *Link) IsEnabled() bool {
	return l.State != LinkDisabled
}
