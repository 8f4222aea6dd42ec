package util

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestParseError(t *testing.T) {
	inner := errors.New("yaml: line 3: did not find expected key")
	err := NewParseError("hosts.yml", "ansible-yaml", inner)

	msg := err.Error()
	if !strings.Contains(msg, "hosts.yml") || !strings.Contains(msg, "ansible-yaml") {
		t.Errorf("Error message should contain path and format: %s", msg)
	}
	if !errors.Is(err, ErrParse) {
		t.Error("ParseError should match ErrParse")
	}
	if !errors.Is(err, inner) {
		t.Error("ParseError should unwrap to the underlying error")
	}

	wrapped := fmt.Errorf("import: %w", err)
	var pe *ParseError
	if !errors.As(wrapped, &pe) || pe.Path != "hosts.yml" {
		t.Errorf("errors.As through wrap failed: %v", wrapped)
	}
}

func TestDispatchError(t *testing.T) {
	inner := errors.New("connection refused")
	err := NewDispatchError("ssh", "admin@10.0.0.1", inner)

	if !errors.Is(err, ErrDispatchFailed) {
		t.Error("DispatchError should match ErrDispatchFailed")
	}
	if !errors.Is(err, inner) {
		t.Error("DispatchError should unwrap to the underlying error")
	}
	if !strings.Contains(err.Error(), "admin@10.0.0.1") {
		t.Errorf("Error message should contain the target: %s", err)
	}
}

func TestValidationError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		err := NewValidationError("field is required")
		msg := err.Error()
		if !strings.Contains(msg, "field is required") {
			t.Errorf("Error message should contain the error: %s", msg)
		}
		if !errors.Is(err, ErrValidationFailed) {
			t.Errorf("ValidationError should unwrap to ErrValidationFailed")
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		err := NewValidationError("lab name is required", "latency must be >= 0")
		msg := err.Error()
		if !strings.Contains(msg, "lab name is required") || !strings.Contains(msg, "latency must be >= 0") {
			t.Errorf("Error message should contain all errors: %s", msg)
		}
	})
}

func TestValidationBuilder(t *testing.T) {
	var v ValidationBuilder
	v.Add(true, "never added").
		Add(false, "hostname is required").
		AddErrorf("loss %d out of range", 101)

	if !v.HasErrors() {
		t.Fatal("HasErrors() = false, want true")
	}
	err := v.Build()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Build() = %T, want *ValidationError", err)
	}
	if len(ve.Errors) != 2 {
		t.Errorf("len(Errors) = %d, want 2", len(ve.Errors))
	}

	var empty ValidationBuilder
	if empty.Build() != nil {
		t.Error("Build() on empty builder should be nil")
	}
}
