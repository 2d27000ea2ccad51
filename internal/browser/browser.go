// Package browser defines the capability interface RecruitPipe requires from
// a browser-automation backend.
//
// The engine itself lives outside this module; anything that can navigate,
// capture page content, and click/fill/wait satisfies Session. Operations
// fail soft: they return errors rather than panicking, and callers must treat
// a missing session as a permanent failure for the rest of the call chain.
package browser

import (
	"context"
	"errors"
	"time"
)

// MaxCapturedElements caps the element list returned by Capture.
const MaxCapturedElements = 100

// Capability interface errors.
var (
	// ErrNoSession indicates the browser session is not active.
	ErrNoSession = errors.New("browser session not active")
	// ErrElementNotFound indicates no element matched the requested text or selector.
	ErrElementNotFound = errors.New("element not found")
	// ErrWaitTimeout indicates the awaited text did not appear in time.
	ErrWaitTimeout = errors.New("timed out waiting for text")
)

// Element is one visible page element (tag plus trimmed text).
type Element struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

// Input describes one form input on the page.
type Input struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Placeholder string `json:"placeholder"`
	Value       string `json:"value"`
}

// PageContent is a DOM-derived snapshot of the current page.
type PageContent struct {
	Text     string    `json:"text_content"`
	Elements []Element `json:"elements"` // capped at MaxCapturedElements
	Inputs   []Input   `json:"inputs"`
	Buttons  []string  `json:"buttons"`
	URL      string    `json:"url"`
}

// Session is one exclusively-owned browser page. At most one operation may be
// in flight at a time; callers serialize access.
type Session interface {
	// Navigate loads the given URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error

	// Capture extracts text content and structure from the current page.
	Capture(ctx context.Context) (*PageContent, error)

	// FindByText locates an element containing the given text and returns a
	// selector for it. Returns ErrElementNotFound when nothing matches.
	FindByText(ctx context.Context, text string, partial bool) (string, error)

	// Click clicks the element matching the selector.
	Click(ctx context.Context, selector string) error

	// Fill types the value into the input matching the selector.
	Fill(ctx context.Context, selector string, value string) error

	// WaitForText blocks until the text appears on the page or the timeout
	// elapses (ErrWaitTimeout).
	WaitForText(ctx context.Context, text string, timeout time.Duration) error

	// Close tears down the page and releases the session.
	Close() error
}

// Launcher acquires a fresh browser session. The interview controller owns
// the returned session until it calls Close.
type Launcher interface {
	Launch(ctx context.Context, headless bool) (Session, error)
}
