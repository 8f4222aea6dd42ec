package audit

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEvent_New(t *testing.T) {
	event := NewEvent("alice", "dc1", OpLinkDisable)

	if event.User != "alice" {
		t.Errorf("User = %q, want %q", event.User, "alice")
	}
	if event.Lab != "dc1" {
		t.Errorf("Lab = %q, want %q", event.Lab, "dc1")
	}
	if event.Operation != OpLinkDisable {
		t.Errorf("Operation = %q, want %q", event.Operation, OpLinkDisable)
	}
	if event.ID == "" {
		t.Error("ID should not be empty")
	}
	if event.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
	if other := NewEvent("alice", "dc1", OpLinkDisable); other.ID == event.ID {
		t.Error("IDs should be unique")
	}
}

func TestEvent_Chaining(t *testing.T) {
	event := NewEvent("alice", "dc1", OpLinkImpair).
		WithLink("r1:eth1 -> r2:eth1", "abc").
		WithCommands([]string{"sudo containerlab tools netem set -n clab-dc1-r1 -i eth1 --delay 50ms"}).
		WithSkipped([]string{"r2"}).
		WithSuccess().
		WithDuration(time.Second)

	if event.Link != "r1:eth1 -> r2:eth1" || event.LinkID != "abc" {
		t.Errorf("Link = %q / %q", event.Link, event.LinkID)
	}
	if len(event.Commands) != 1 {
		t.Errorf("Expected 1 command, got %d", len(event.Commands))
	}
	if len(event.Skipped) != 1 {
		t.Errorf("Expected 1 skipped endpoint, got %d", len(event.Skipped))
	}
	if !event.Success {
		t.Error("Success should be true")
	}
	if event.Duration != time.Second {
		t.Errorf("Duration = %v", event.Duration)
	}
}

func TestEvent_WithError(t *testing.T) {
	event := NewEvent("alice", "dc1", OpLinkEnable).
		WithError(errors.New("test error"))

	if event.Success {
		t.Error("Success should be false")
	}
	if event.Error != "test error" {
		t.Errorf("Error = %q", event.Error)
	}

	// Test with nil error
	event2 := NewEvent("alice", "dc1", OpLinkEnable).WithError(nil)
	if event2.Success {
		t.Error("Success should be false even with nil error")
	}
	if event2.Error != "" {
		t.Errorf("Error should be empty with nil error, got %q", event2.Error)
	}
}

func TestEvent_WithResult(t *testing.T) {
	if e := NewEvent("a", "dc1", OpLinkClear).WithResult(nil); !e.Success {
		t.Error("nil error should mark success")
	}
	if e := NewEvent("a", "dc1", OpLinkClear).WithResult(errors.New("boom")); e.Success || e.Error != "boom" {
		t.Errorf("error result = %v / %q", e.Success, e.Error)
	}
}

func newTestLogger(t *testing.T, rotation RotationConfig) (*FileLogger, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewFileLogger(logPath, rotation)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger, logPath
}

func TestFileLogger_Basic(t *testing.T) {
	logger, _ := newTestLogger(t, RotationConfig{})

	event := NewEvent("alice", "dc1", OpLinkDisable).
		WithLink("r1:eth1 -> r2:eth1", "id1").
		WithSuccess()
	if err := logger.Log(event); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].User != "alice" {
		t.Errorf("User = %q, want %q", events[0].User, "alice")
	}
	if events[0].Operation != OpLinkDisable {
		t.Errorf("Operation = %q", events[0].Operation)
	}
	if events[0].ID != event.ID {
		t.Errorf("ID = %q, want %q", events[0].ID, event.ID)
	}
}

func TestFileLogger_QueryFilters(t *testing.T) {
	logger, _ := newTestLogger(t, RotationConfig{})

	events := []*Event{
		NewEvent("alice", "dc1", OpLinkDisable).WithLink("r1:eth1 -> r2:eth1", "l1").WithSuccess(),
		NewEvent("bob", "dc1", OpLinkEnable).WithLink("r1:eth1 -> r2:eth1", "l1").WithSuccess(),
		NewEvent("alice", "rack", OpLinkDisable).WithLink("sw1:Et1 -> sw2:Et1", "l2").WithError(errors.New("failed")),
		NewEvent("charlie", "dc2", OpLinkImpair).WithLink("a:eth1 -> b:eth1", "l3").WithSuccess(),
	}
	for _, e := range events {
		if err := logger.Log(e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"by user", Filter{User: "alice"}, 2},
		{"by lab", Filter{Lab: "dc1"}, 2},
		{"by operation", Filter{Operation: OpLinkDisable}, 2},
		{"by link description", Filter{Link: "r1:eth1 -> r2:eth1"}, 2},
		{"by link id", Filter{Link: "l3"}, 1},
		{"success only", Filter{SuccessOnly: true}, 3},
		{"failure only", Filter{FailureOnly: true}, 1},
		{"limit", Filter{Limit: 2}, 2},
		{"offset", Filter{Offset: 2}, 2},
		{"offset beyond", Filter{Offset: 10}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := logger.Query(tt.filter)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(results) != tt.want {
				t.Errorf("got %d events, want %d", len(results), tt.want)
			}
		})
	}
}

func TestFileLogger_QueryTimeFilter(t *testing.T) {
	logger, _ := newTestLogger(t, RotationConfig{})
	logger.Log(NewEvent("alice", "dc1", OpLinkEnable).WithSuccess())

	results, _ := logger.Query(Filter{
		StartTime: time.Now().Add(-time.Hour),
		EndTime:   time.Now().Add(time.Hour),
	})
	if len(results) != 1 {
		t.Errorf("Expected 1 event in time range, got %d", len(results))
	}

	results, _ = logger.Query(Filter{StartTime: time.Now().Add(time.Hour)})
	if len(results) != 0 {
		t.Errorf("Expected 0 events after start time, got %d", len(results))
	}

	results, _ = logger.Query(Filter{EndTime: time.Now().Add(-time.Hour)})
	if len(results) != 0 {
		t.Errorf("Expected 0 events before end time, got %d", len(results))
	}
}

func TestFileLogger_CreatesDirectories(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "audit.log")
	logger, err := NewFileLogger(logPath, RotationConfig{})
	if err != nil {
		t.Fatalf("NewFileLogger should create directories: %v", err)
	}
	defer logger.Close()
}

func TestFileLogger_QueryNonExistent(t *testing.T) {
	logger, logPath := newTestLogger(t, RotationConfig{})
	os.Remove(logPath)

	results, err := logger.Query(Filter{})
	if err != nil {
		t.Errorf("Query on non-existent should not error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected 0 events, got %d", len(results))
	}
}

func TestFileLogger_QueryMalformedJSON(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.log")
	content := `{"user":"alice","lab":"dc1","operation":"link.enable","success":true}
invalid json line
{"user":"bob","lab":"dc1","operation":"link.disable","success":true}
`
	if err := os.WriteFile(logPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test data: %v", err)
	}

	logger, err := NewFileLogger(logPath, RotationConfig{})
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	results, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 valid events (skipping malformed), got %d", len(results))
	}
}

func TestFileLogger_OpenErrors(t *testing.T) {
	if _, err := NewFileLogger("/dev/null/impossible/audit.log", RotationConfig{}); err == nil {
		t.Error("NewFileLogger should fail when directory creation fails")
	}

	logPath := filepath.Join(t.TempDir(), "audit.log")
	if err := os.Mkdir(logPath, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if _, err := NewFileLogger(logPath, RotationConfig{}); err == nil {
		t.Error("NewFileLogger should fail when log path is a directory")
	}
}

func TestFileLogger_RotationWithCleanup(t *testing.T) {
	logger, logPath := newTestLogger(t, RotationConfig{
		MaxSize:    50, // every event exceeds this
		MaxBackups: 2,
	})

	var ids []string
	for i := 0; i < 4; i++ {
		e := NewEvent("alice", "dc1", OpLinkEnable).WithSuccess()
		e.Timestamp = e.Timestamp.Add(time.Duration(i) * time.Second)
		ids = append(ids, e.ID)
		if err := logger.Log(e); err != nil {
			t.Fatalf("Log failed on iteration %d: %v", i, err)
		}
	}

	for _, name := range []string{logPath + ".1", logPath + ".2"} {
		if _, err := os.Stat(name); err != nil {
			t.Errorf("expected backup %s: %v", filepath.Base(name), err)
		}
	}
	if _, err := os.Stat(logPath + ".3"); !os.IsNotExist(err) {
		t.Errorf("backup beyond MaxBackups should be removed, stat err = %v", err)
	}

	// The oldest event went with the dropped backup; the rest read back
	// across the live file and both backups, newest first.
	events, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for i, want := range []string{ids[3], ids[2], ids[1]} {
		if events[i].ID != want {
			t.Errorf("events[%d].ID = %s, want %s", i, events[i].ID, want)
		}
	}
}

func TestFileLogger_NewestFirst(t *testing.T) {
	logger, _ := newTestLogger(t, RotationConfig{})

	base := time.Now().Add(-time.Hour)
	for i, op := range []Operation{OpLinkDisable, OpLinkImpair, OpLinkEnable} {
		e := NewEvent("alice", "dc1", op).WithLink("r1:eth1 -> r2:eth1", "3f2a9c10").WithSuccess()
		e.Timestamp = base.Add(time.Duration(i) * time.Minute)
		if err := logger.Log(e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	events, err := logger.Query(Filter{Limit: 2})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 2 || events[0].Operation != OpLinkEnable || events[1].Operation != OpLinkImpair {
		t.Errorf("Limit should keep the newest events first, got %v", operations(events))
	}

	events, _ = logger.Query(Filter{Offset: 1, Limit: 1})
	if len(events) != 1 || events[0].Operation != OpLinkImpair {
		t.Errorf("Offset counts from the newest event, got %v", operations(events))
	}

	events, _ = logger.Query(Filter{Link: "3f2a"})
	if len(events) != 3 {
		t.Errorf("link ID prefix should match, got %d events", len(events))
	}
	events, _ = logger.Query(Filter{Link: "a9c1"})
	if len(events) != 0 {
		t.Errorf("only a leading prefix of the link ID should match, got %d events", len(events))
	}
}

func TestFileLogger_ReopenKeepsSize(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.log")
	first, err := NewFileLogger(logPath, RotationConfig{MaxSize: 50})
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	if err := first.Log(NewEvent("alice", "dc1", OpLinkEnable)); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	first.Close()

	if err := first.Log(NewEvent("alice", "dc1", OpLinkEnable)); err == nil {
		t.Error("Log after Close should fail")
	}

	// A new process picks up the existing size and rotates on its first write.
	second, err := NewFileLogger(logPath, RotationConfig{MaxSize: 50})
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer second.Close()
	if err := second.Log(NewEvent("bob", "dc1", OpLinkDisable)); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if _, err := os.Stat(logPath + ".1"); err != nil {
		t.Errorf("expected rotation on reopen: %v", err)
	}
}

func operations(events []*Event) []Operation {
	ops := make([]Operation, len(events))
	for i, e := range events {
		ops[i] = e.Operation
	}
	return ops
}
