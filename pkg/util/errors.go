// Package util provides logging and the error taxonomy shared by poclab packages.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Packages wrap these so callers can branch with errors.Is.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrAlreadyExists     = errors.New("resource already exists")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrValidationFailed  = errors.New("validation failed")
	ErrParse             = errors.New("parse failed")
	ErrUnsupportedOS     = errors.New("unsupported network OS")
	ErrDispatchFailed    = errors.New("command dispatch failed")
	ErrInconsistentState = errors.New("persisted state does not match intent")
)

// ParseError reports a structural failure reading an inventory or topology file.
type ParseError struct {
	Path   string
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s %s: %v", e.Format, e.Path, e.Err)
}

// Is lets errors.Is(err, ErrParse) match any ParseError.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a parse error
func NewParseError(path, format string, err error) *ParseError {
	return &ParseError{Path: path, Format: format, Err: err}
}

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddError adds an error message unconditionally
func (v *ValidationBuilder) AddError(message string) *ValidationBuilder {
	v.errors = append(v.errors, message)
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}

// DispatchError describes a command that could not be delivered to its target.
type DispatchError struct {
	Route  string
	Target string
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch via %s to %s: %v", e.Route, e.Target, e.Err)
}

// Is lets errors.Is(err, ErrDispatchFailed) match any DispatchError.
func (e *DispatchError) Is(target error) bool {
	return target == ErrDispatchFailed
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// NewDispatchError creates a dispatch error
func NewDispatchError(route, target string, err error) *DispatchError {
	return &DispatchError{Route: route, Target: target, Err: err}
}
