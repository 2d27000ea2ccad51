package approval

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLogAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pending.txt")
	log, err := NewLog(path)
	if err != nil {
		t.Fatalf("NewLog failed: %v", err)
	}

	entry := Entry{
		ThreadID:  "thread-1",
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Sender:    "recruiter@example.com",
		Subject:   "Offer details",
		Response:  "Happy to discuss compensation on a call.",
	}
	if err := log.Append(entry); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	content := string(data)
	for _, want := range []string{
		"Thread ID: thread-1",
		"From: recruiter@example.com",
		"Subject: Offer details",
		"Happy to discuss compensation",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("log missing %q:\n%s", want, content)
		}
	}
}

func TestLogAppendIsAppendOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending.txt")
	log, err := NewLog(path)
	if err != nil {
		t.Fatalf("NewLog failed: %v", err)
	}

	if err := log.Append(Entry{ThreadID: "a", Response: "first"}); err != nil {
		t.Fatalf("first append failed: %v", err)
	}
	if err := log.Append(Entry{ThreadID: "b", Response: "second"}); err != nil {
		t.Fatalf("second append failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	content := string(data)
	first := strings.Index(content, "Thread ID: a")
	second := strings.Index(content, "Thread ID: b")
	if first < 0 || second < 0 || second < first {
		t.Errorf("entries missing or out of order:\n%s", content)
	}
}
