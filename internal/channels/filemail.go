package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileEmailClient is an EmailClient backed by a drop directory, for
// deployments where a mail gateway delivers messages as JSON files instead
// of exposing a provider API.
//
// Layout under the root directory:
//
//	inbox/<id>.json    one fileEmail per inbound message
//	labels/<id>        one line per label applied to the message
//	outbox/<ts>.json   replies written by SendReply
//
// An external gateway fills inbox/ and drains outbox/.
type FileEmailClient struct {
	root string
}

// fileEmail is the on-disk schema of one inbound message.
type fileEmail struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
	From     string `json:"from"`
	FromName string `json:"from_name"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Read     bool   `json:"read"`
}

// fileReply is the on-disk schema of one outbound reply.
type fileReply struct {
	ThreadID string    `json:"thread_id"`
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
}

// NewFileEmailClient creates a file-gateway client rooted at dir, creating
// the directory layout as needed.
func NewFileEmailClient(dir string) (*FileEmailClient, error) {
	for _, sub := range []string{"inbox", "labels", "outbox"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create mail directory %s: %w", sub, err)
		}
	}
	return &FileEmailClient{root: dir}, nil
}

// FetchUnread reads up to max unread messages from inbox/, oldest first by
// file name.
func (c *FileEmailClient) FetchUnread(ctx context.Context, max int) ([]Email, error) {
	entries, err := os.ReadDir(filepath.Join(c.root, "inbox"))
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var emails []Email
	for _, name := range names {
		if max > 0 && len(emails) >= max {
			break
		}
		path := filepath.Join(c.root, "inbox", name)
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Error("FileEmailClient: unreadable message skipped", "path", path, "error", err)
			continue
		}
		var fe fileEmail
		if err := json.Unmarshal(data, &fe); err != nil {
			slog.Error("FileEmailClient: malformed message skipped", "path", path, "error", err)
			continue
		}
		if fe.Read {
			continue
		}
		if fe.ID == "" {
			fe.ID = strings.TrimSuffix(name, ".json")
		}
		if fe.ThreadID == "" {
			fe.ThreadID = fe.ID
		}
		emails = append(emails, Email{
			ID:       fe.ID,
			ThreadID: fe.ThreadID,
			From:     fe.From,
			FromName: fe.FromName,
			Subject:  fe.Subject,
			Body:     fe.Body,
			Labels:   c.readLabels(fe.ID),
		})
	}
	return emails, nil
}

// SendReply writes the reply to outbox/ for the gateway to deliver.
func (c *FileEmailClient) SendReply(ctx context.Context, threadID, to, subject, body string) error {
	reply := fileReply{
		ThreadID: threadID,
		To:       to,
		Subject:  subject,
		Body:     body,
		SentAt:   time.Now(),
	}
	data, err := json.MarshalIndent(reply, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}
	name := fmt.Sprintf("%d_%s.json", time.Now().UnixNano(), sanitizeFileName(threadID))
	path := filepath.Join(c.root, "outbox", name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write outbox reply: %w", err)
	}
	slog.Debug("FileEmailClient: reply written to outbox", "path", path)
	return nil
}

// AddLabel records the label in labels/<id>. Re-applying a label is a no-op.
func (c *FileEmailClient) AddLabel(ctx context.Context, emailID, label string) error {
	for _, existing := range c.readLabels(emailID) {
		if existing == label {
			return nil
		}
	}
	path := c.labelPath(emailID)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open label file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(label + "\n"); err != nil {
		return fmt.Errorf("failed to write label: %w", err)
	}
	return nil
}

// MarkRead flags the inbox file as read in place.
func (c *FileEmailClient) MarkRead(ctx context.Context, emailID string) error {
	path := filepath.Join(c.root, "inbox", sanitizeFileName(emailID)+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read message %s: %w", emailID, err)
	}
	var fe fileEmail
	if err := json.Unmarshal(data, &fe); err != nil {
		return fmt.Errorf("failed to parse message %s: %w", emailID, err)
	}
	fe.Read = true
	updated, err := json.MarshalIndent(fe, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal message %s: %w", emailID, err)
	}
	if err := os.WriteFile(path, updated, 0o644); err != nil {
		return fmt.Errorf("failed to update message %s: %w", emailID, err)
	}
	return nil
}

func (c *FileEmailClient) readLabels(emailID string) []string {
	data, err := os.ReadFile(c.labelPath(emailID))
	if err != nil {
		return nil
	}
	var labels []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			labels = append(labels, line)
		}
	}
	return labels
}

func (c *FileEmailClient) labelPath(emailID string) string {
	return filepath.Join(c.root, "labels", sanitizeFileName(emailID))
}

// sanitizeFileName keeps ids safe to use as file names.
func sanitizeFileName(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, id)
}
