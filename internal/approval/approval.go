// Package approval persists replies awaiting human sign-off.
//
// The log is an append-only text file. There is no programmatic
// approve/reject surface; an operator reviews the file and sends
// approved replies by hand.
package approval

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultLogPath is used when no path is configured.
const DefaultLogPath = "data/pending_approvals.txt"

// Entry is one reply queued for human approval.
type Entry struct {
	ThreadID  string
	Timestamp time.Time
	Sender    string
	Subject   string
	Response  string
}

// Log appends pending-approval entries to a text file. Safe for concurrent
// use within one process.
type Log struct {
	mu   sync.Mutex
	path string
}

// NewLog creates an approval log at path, creating parent directories as
// needed. An empty path selects DefaultLogPath.
func NewLog(path string) (*Log, error) {
	if path == "" {
		path = DefaultLogPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create approval log directory: %w", err)
		}
	}
	return &Log{path: path}, nil
}

// Path returns the log file location.
func (l *Log) Path() string { return l.path }

// Append writes one entry to the log. The write is flushed before return.
func (l *Log) Append(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Error("approval log open failed", "path", l.path, "error", err)
		return fmt.Errorf("failed to open approval log: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	b.WriteString("\n" + strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&b, "Thread ID: %s\n", entry.ThreadID)
	fmt.Fprintf(&b, "Time: %s\n", entry.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "From: %s\n", entry.Sender)
	fmt.Fprintf(&b, "Subject: %s\n", entry.Subject)
	fmt.Fprintf(&b, "\nResponse:\n%s\n", entry.Response)

	if _, err := f.WriteString(b.String()); err != nil {
		slog.Error("approval log write failed", "path", l.path, "error", err)
		return fmt.Errorf("failed to append approval entry: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync approval log: %w", err)
	}

	slog.Info("approval requested", "threadID", entry.ThreadID, "sender", entry.Sender)
	return nil
}
