package browser

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MockSession is a scripted Session for tests. Pages are keyed by URL;
// clicking a selector can transition to another page via Transitions.
type MockSession struct {
	mu sync.Mutex

	// Pages maps URL -> page content served on navigation.
	Pages map[string]*PageContent
	// Transitions maps selector -> URL loaded after clicking it.
	Transitions map[string]string

	// Recorded interactions.
	NavigatedURLs []string
	Clicked       []string
	Filled        map[string]string

	// Error overrides for failure-path tests.
	NavigateErr error
	CaptureErr  error
	ClickErr    error
	FillErr     error

	currentURL string
	closed     bool
}

// NewMockSession creates a MockSession with no pages scripted.
func NewMockSession() *MockSession {
	return &MockSession{
		Pages:       make(map[string]*PageContent),
		Transitions: make(map[string]string),
		Filled:      make(map[string]string),
	}
}

// MockLauncher hands out a fixed session.
type MockLauncher struct {
	Session   *MockSession
	LaunchErr error
}

func (l *MockLauncher) Launch(ctx context.Context, headless bool) (Session, error) {
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	return l.Session, nil
}

func (m *MockSession) Navigate(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrNoSession
	}
	if m.NavigateErr != nil {
		return m.NavigateErr
	}
	m.NavigatedURLs = append(m.NavigatedURLs, url)
	m.currentURL = url
	return nil
}

func (m *MockSession) Capture(ctx context.Context) (*PageContent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrNoSession
	}
	if m.CaptureErr != nil {
		return nil, m.CaptureErr
	}
	page, ok := m.Pages[m.currentURL]
	if !ok {
		return &PageContent{URL: m.currentURL}, nil
	}
	copied := *page
	copied.URL = m.currentURL
	if len(copied.Elements) > MaxCapturedElements {
		copied.Elements = copied.Elements[:MaxCapturedElements]
	}
	return &copied, nil
}

func (m *MockSession) FindByText(ctx context.Context, text string, partial bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", ErrNoSession
	}
	page, ok := m.Pages[m.currentURL]
	if !ok {
		return "", ErrElementNotFound
	}
	needle := strings.ToLower(text)
	for _, b := range page.Buttons {
		hay := strings.ToLower(b)
		if (partial && strings.Contains(hay, needle)) || hay == needle {
			return "button:" + b, nil
		}
	}
	for _, el := range page.Elements {
		hay := strings.ToLower(el.Text)
		if (partial && strings.Contains(hay, needle)) || hay == needle {
			return el.Tag + ":" + el.Text, nil
		}
	}
	return "", ErrElementNotFound
}

func (m *MockSession) Click(ctx context.Context, selector string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrNoSession
	}
	if m.ClickErr != nil {
		return m.ClickErr
	}
	m.Clicked = append(m.Clicked, selector)
	if next, ok := m.Transitions[selector]; ok {
		m.currentURL = next
	}
	return nil
}

func (m *MockSession) Fill(ctx context.Context, selector string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrNoSession
	}
	if m.FillErr != nil {
		return m.FillErr
	}
	m.Filled[selector] = value
	return nil
}

func (m *MockSession) WaitForText(ctx context.Context, text string, timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrNoSession
	}
	page, ok := m.Pages[m.currentURL]
	if ok && strings.Contains(strings.ToLower(page.Text), strings.ToLower(text)) {
		return nil
	}
	return ErrWaitTimeout
}

func (m *MockSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MockSession) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
