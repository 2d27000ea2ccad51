package browser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// waitPollInterval is how often WaitForText refetches the page.
const waitPollInterval = 500 * time.Millisecond

// HTTPLauncher launches static-page sessions over plain HTTP. It covers
// interview portals that render server-side; script-driven pages need a real
// browser engine behind the same Session interface.
type HTTPLauncher struct {
	// Client overrides the HTTP client; nil selects a 30s-timeout default.
	Client *http.Client
}

// Launch creates a new HTTP session. The headless flag is accepted for
// interface parity and ignored.
func (l *HTTPLauncher) Launch(ctx context.Context, headless bool) (Session, error) {
	client := l.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPSession{client: client}, nil
}

// HTTPSession is a Session backed by plain HTTP fetches and HTML parsing.
// Not safe for concurrent use.
type HTTPSession struct {
	client *http.Client
	// current page state
	pageURL string
	doc     *html.Node
	// links maps FindByText selectors to their resolved targets.
	links map[string]string
	// filled records Fill values; there is no form submission over plain
	// HTTP, so values are kept for the captured snapshot only.
	filled map[string]string
	closed bool
}

func (s *HTTPSession) Navigate(ctx context.Context, pageURL string) error {
	if s.closed {
		return ErrNoSession
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", pageURL, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		slog.Error("HTTPSession.Navigate: fetch failed", "url", pageURL, "error", err)
		return fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		slog.Error("HTTPSession.Navigate: bad status", "url", pageURL, "status", resp.StatusCode)
		return fmt.Errorf("failed to fetch %s: status %d", pageURL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", pageURL, err)
	}
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}

	s.pageURL = pageURL
	s.doc = doc
	s.links = make(map[string]string)
	s.filled = make(map[string]string)
	slog.Debug("HTTPSession.Navigate: page loaded", "url", pageURL)
	return nil
}

func (s *HTTPSession) Capture(ctx context.Context) (*PageContent, error) {
	if s.closed {
		return nil, ErrNoSession
	}
	if s.doc == nil {
		return nil, ErrNoSession
	}

	page := &PageContent{URL: s.pageURL}
	var textParts []string
	s.walk(s.doc, page, &textParts)
	page.Text = strings.Join(textParts, "\n")
	for selector, value := range s.filled {
		for i := range page.Inputs {
			if inputSelector(page.Inputs[i]) == selector {
				page.Inputs[i].Value = value
			}
		}
	}
	return page, nil
}

// walk collects visible text, elements, inputs, buttons and link selectors.
func (s *HTTPSession) walk(n *html.Node, page *PageContent, textParts *[]string) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript":
			return
		case "input":
			input := Input{
				Type:        attr(n, "type"),
				Name:        attr(n, "name"),
				Placeholder: attr(n, "placeholder"),
				Value:       attr(n, "value"),
			}
			if input.Type == "submit" || input.Type == "button" {
				if input.Value != "" {
					page.Buttons = append(page.Buttons, input.Value)
				}
			} else {
				page.Inputs = append(page.Inputs, input)
			}
		case "button":
			if text := nodeText(n); text != "" {
				page.Buttons = append(page.Buttons, text)
			}
		case "a":
			if href := attr(n, "href"); href != "" {
				if text := nodeText(n); text != "" {
					selector := "link:" + text
					if target, err := s.resolve(href); err == nil {
						s.links[selector] = target
					}
				}
			}
		}
	}
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			*textParts = append(*textParts, text)
			tag := "text"
			if n.Parent != nil && n.Parent.Type == html.ElementNode {
				tag = n.Parent.Data
			}
			if len(page.Elements) < MaxCapturedElements {
				page.Elements = append(page.Elements, Element{Tag: tag, Text: text})
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		s.walk(c, page, textParts)
	}
}

func (s *HTTPSession) FindByText(ctx context.Context, text string, partial bool) (string, error) {
	if s.closed || s.doc == nil {
		return "", ErrNoSession
	}
	page, err := s.Capture(ctx)
	if err != nil {
		return "", err
	}
	needle := strings.ToLower(text)

	for _, b := range page.Buttons {
		if matches(b, needle, partial) {
			return "button:" + b, nil
		}
	}
	for selector := range s.links {
		label := strings.TrimPrefix(selector, "link:")
		if matches(label, needle, partial) {
			return selector, nil
		}
	}
	for _, el := range page.Elements {
		if matches(el.Text, needle, partial) {
			return el.Tag + ":" + el.Text, nil
		}
	}
	return "", ErrElementNotFound
}

// Click follows link selectors by navigating to their target. Buttons have
// no script backing over plain HTTP, so clicking one is a logged no-op.
func (s *HTTPSession) Click(ctx context.Context, selector string) error {
	if s.closed {
		return ErrNoSession
	}
	if target, ok := s.links[selector]; ok {
		return s.Navigate(ctx, target)
	}
	slog.Debug("HTTPSession.Click: selector has no navigation target", "selector", selector)
	return nil
}

func (s *HTTPSession) Fill(ctx context.Context, selector string, value string) error {
	if s.closed {
		return ErrNoSession
	}
	if s.filled == nil {
		s.filled = make(map[string]string)
	}
	s.filled[selector] = value
	return nil
}

func (s *HTTPSession) WaitForText(ctx context.Context, text string, timeout time.Duration) error {
	if s.closed {
		return ErrNoSession
	}
	deadline := time.Now().Add(timeout)
	needle := strings.ToLower(text)
	for {
		page, err := s.Capture(ctx)
		if err == nil && strings.Contains(strings.ToLower(page.Text), needle) {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrWaitTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitPollInterval):
		}
		// Refetch so server-side changes become visible.
		if s.pageURL != "" {
			if err := s.Navigate(ctx, s.pageURL); err != nil {
				slog.Debug("HTTPSession.WaitForText: refetch failed", "error", err)
			}
		}
	}
}

func (s *HTTPSession) Close() error {
	s.closed = true
	s.doc = nil
	s.links = nil
	s.filled = nil
	return nil
}

// resolve makes href absolute against the current page URL.
func (s *HTTPSession) resolve(href string) (string, error) {
	base, err := url.Parse(s.pageURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var parts []string
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.TextNode {
			if text := strings.TrimSpace(node.Data); text != "" {
				parts = append(parts, text)
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(parts, " ")
}

func matches(hay, needle string, partial bool) bool {
	hay = strings.ToLower(hay)
	if partial {
		return strings.Contains(hay, needle)
	}
	return hay == needle
}

func inputSelector(input Input) string {
	if input.Name != "" {
		return fmt.Sprintf("input[name=%q]", input.Name)
	}
	return fmt.Sprintf("input[placeholder=%q]", input.Placeholder)
}
