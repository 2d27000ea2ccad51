package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const interviewHTML = `<!DOCTYPE html>
<html>
<head><title>Interview</title><script>ignored()</script></head>
<body>
  <h1>Technical Interview</h1>
  <p>Welcome to your screening session.</p>
  <a href="/question/1">Begin Interview</a>
  <button>Submit Answer</button>
  <input type="text" name="answer" placeholder="Type your answer here">
  <input type="submit" value="Send">
</body>
</html>`

const questionHTML = `<html><body>
  <h2>What is a goroutine?</h2>
</body></html>`

func newPortalServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(interviewHTML))
	})
	mux.HandleFunc("/question/1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(questionHTML))
	})
	return httptest.NewServer(mux)
}

func TestHTTPSessionNavigateAndCapture(t *testing.T) {
	srv := newPortalServer()
	defer srv.Close()

	launcher := &HTTPLauncher{}
	session, err := launcher.Launch(context.Background(), true)
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	defer session.Close()

	if err := session.Navigate(context.Background(), srv.URL); err != nil {
		t.Fatalf("Navigate failed: %v", err)
	}
	page, err := session.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	if !strings.Contains(page.Text, "Technical Interview") {
		t.Errorf("page text missing heading: %q", page.Text)
	}
	if strings.Contains(page.Text, "ignored()") {
		t.Error("script content must not appear in page text")
	}
	if len(page.Buttons) != 2 {
		t.Errorf("expected button and submit input, got %v", page.Buttons)
	}
	if len(page.Inputs) != 1 || page.Inputs[0].Name != "answer" {
		t.Errorf("unexpected inputs: %+v", page.Inputs)
	}
	if page.URL != srv.URL {
		t.Errorf("url = %q, want %q", page.URL, srv.URL)
	}
}

func TestHTTPSessionFindAndClickLink(t *testing.T) {
	srv := newPortalServer()
	defer srv.Close()

	session := &HTTPSession{client: srv.Client()}
	ctx := context.Background()
	if err := session.Navigate(ctx, srv.URL); err != nil {
		t.Fatalf("Navigate failed: %v", err)
	}

	selector, err := session.FindByText(ctx, "begin", true)
	if err != nil {
		t.Fatalf("FindByText failed: %v", err)
	}
	if selector != "link:Begin Interview" {
		t.Errorf("unexpected selector: %q", selector)
	}

	if err := session.Click(ctx, selector); err != nil {
		t.Fatalf("Click failed: %v", err)
	}
	page, err := session.Capture(ctx)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if !strings.Contains(page.Text, "What is a goroutine?") {
		t.Errorf("click did not follow link: %q", page.Text)
	}
}

func TestHTTPSessionFindByTextAbsent(t *testing.T) {
	srv := newPortalServer()
	defer srv.Close()

	session := &HTTPSession{client: srv.Client()}
	ctx := context.Background()
	if err := session.Navigate(ctx, srv.URL); err != nil {
		t.Fatalf("Navigate failed: %v", err)
	}
	if _, err := session.FindByText(ctx, "no such text anywhere", true); err != ErrElementNotFound {
		t.Errorf("expected ErrElementNotFound, got %v", err)
	}
}

func TestHTTPSessionFillShowsInCapture(t *testing.T) {
	srv := newPortalServer()
	defer srv.Close()

	session := &HTTPSession{client: srv.Client()}
	ctx := context.Background()
	if err := session.Navigate(ctx, srv.URL); err != nil {
		t.Fatalf("Navigate failed: %v", err)
	}
	if err := session.Fill(ctx, `input[name="answer"]`, "a goroutine"); err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	page, _ := session.Capture(ctx)
	if len(page.Inputs) != 1 || page.Inputs[0].Value != "a goroutine" {
		t.Errorf("fill value not reflected: %+v", page.Inputs)
	}
}

func TestHTTPSessionWaitForText(t *testing.T) {
	srv := newPortalServer()
	defer srv.Close()

	session := &HTTPSession{client: srv.Client()}
	ctx := context.Background()
	if err := session.Navigate(ctx, srv.URL); err != nil {
		t.Fatalf("Navigate failed: %v", err)
	}
	if err := session.WaitForText(ctx, "screening session", 100*time.Millisecond); err != nil {
		t.Errorf("WaitForText for present text failed: %v", err)
	}
	if err := session.WaitForText(ctx, "absent text", 50*time.Millisecond); err != ErrWaitTimeout {
		t.Errorf("expected ErrWaitTimeout, got %v", err)
	}
}

func TestHTTPSessionClosedOperationsFail(t *testing.T) {
	session := &HTTPSession{client: http.DefaultClient}
	session.Close()

	ctx := context.Background()
	if err := session.Navigate(ctx, "http://example.com"); err != ErrNoSession {
		t.Errorf("Navigate after close: got %v", err)
	}
	if _, err := session.Capture(ctx); err != ErrNoSession {
		t.Errorf("Capture after close: got %v", err)
	}
}

func TestHTTPSessionNavigateBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	session := &HTTPSession{client: srv.Client()}
	if err := session.Navigate(context.Background(), srv.URL); err == nil {
		t.Error("expected error for 404 response")
	}
}
