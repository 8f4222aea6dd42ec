package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

// Logger records link operations and answers queries over them.
type Logger interface {
	Log(event *Event) error
	Query(filter Filter) ([]*Event, error)
	Close() error
}

// RotationConfig configures log file rotation
type RotationConfig struct {
	MaxSize    int64 // Max file size in bytes before rotation
	MaxBackups int   // Numbered backups kept; zero keeps all
}

// FileLogger appends events to a JSON-lines file. Rotated files are named
// audit.log.1 (newest) to audit.log.N and are read back by Query.
type FileLogger struct {
	path     string
	rotation RotationConfig

	mu   sync.Mutex
	file *os.File
	size int64
}

// NewFileLogger opens (or creates) the audit log at path.
func NewFileLogger(path string, rotation RotationConfig) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating audit log directory: %w", err)
	}
	l := &FileLogger{path: path, rotation: rotation}
	if err := l.open(); err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return l, nil
}

func (l *FileLogger) open() error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	l.file, l.size = f, info.Size()
	return nil
}

// Log appends one event. The file is rotated first when it has reached
// MaxSize.
func (l *FileLogger) Log(event *Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding audit event: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return fmt.Errorf("audit log %s is closed", l.path)
	}
	if l.rotation.MaxSize > 0 && l.size >= l.rotation.MaxSize {
		if err := l.rotate(); err != nil {
			return fmt.Errorf("rotating audit log: %w", err)
		}
	}
	n, err := l.file.Write(line)
	l.size += int64(n)
	return err
}

// Query returns matching events newest first, reading backups as well as
// the live file. Offset and Limit count from the newest event.
func (l *FileLogger) Query(filter Filter) ([]*Event, error) {
	l.mu.Lock()
	files := append(l.backups(), l.path)
	l.mu.Unlock()

	var events []*Event
	for _, path := range files {
		found, err := readEvents(path, filter)
		if err != nil {
			return nil, err
		}
		events = append(events, found...)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	if filter.Offset >= len(events) {
		return []*Event{}, nil
	}
	events = events[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(events) {
		events = events[:filter.Limit]
	}
	return events, nil
}

// Close closes the log file
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func readEvents(path string, filter Filter) ([]*Event, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []*Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for n := 1; scanner.Scan(); n++ {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			util.Warnf("audit: skipping malformed entry %s:%d: %v", filepath.Base(path), n, err)
			continue
		}
		if filter.matches(&e) {
			events = append(events, &e)
		}
	}
	return events, scanner.Err()
}

// matches applies every set criterion. Link matches the description, the
// full link ID or a prefix of it, as link references do on the command line.
func (f Filter) matches(e *Event) bool {
	switch {
	case f.Lab != "" && e.Lab != f.Lab:
		return false
	case f.Link != "" && e.Link != f.Link && !(e.LinkID != "" && strings.HasPrefix(e.LinkID, f.Link)):
		return false
	case f.User != "" && e.User != f.User:
		return false
	case f.Operation != "" && e.Operation != f.Operation:
		return false
	case !f.StartTime.IsZero() && e.Timestamp.Before(f.StartTime):
		return false
	case !f.EndTime.IsZero() && e.Timestamp.After(f.EndTime):
		return false
	case f.SuccessOnly && !e.Success:
		return false
	case f.FailureOnly && e.Success:
		return false
	}
	return true
}

// backups lists rotated files oldest first.
func (l *FileLogger) backups() []string {
	nums := l.backupNumbers()
	paths := make([]string, len(nums))
	for i, n := range nums {
		paths[len(nums)-1-i] = l.backupPath(n)
	}
	return paths
}

// backupNumbers returns the existing backup suffixes in ascending order.
func (l *FileLogger) backupNumbers() []int {
	matches, _ := filepath.Glob(l.path + ".*")
	var nums []int
	for _, m := range matches {
		n, err := strconv.Atoi(strings.TrimPrefix(m, l.path+"."))
		if err == nil && n > 0 {
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)
	return nums
}

func (l *FileLogger) backupPath(n int) string {
	return l.path + "." + strconv.Itoa(n)
}

// rotate shifts audit.log.N to N+1, moves the live file to audit.log.1 and
// drops backups beyond MaxBackups.
func (l *FileLogger) rotate() error {
	if err := l.file.Close(); err != nil {
		return err
	}
	l.file = nil

	nums := l.backupNumbers()
	for i := len(nums) - 1; i >= 0; i-- {
		n := nums[i]
		if l.rotation.MaxBackups > 0 && n >= l.rotation.MaxBackups {
			os.Remove(l.backupPath(n))
			continue
		}
		if err := os.Rename(l.backupPath(n), l.backupPath(n+1)); err != nil {
			return err
		}
	}
	if err := os.Rename(l.path, l.backupPath(1)); err != nil {
		return err
	}
	return l.open()
}
