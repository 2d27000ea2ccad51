package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/recruitpipe/recruitpipe/internal/browser"
	"github.com/recruitpipe/recruitpipe/internal/genai"
	"github.com/recruitpipe/recruitpipe/internal/models"
	"github.com/recruitpipe/recruitpipe/internal/store"
)

// Session step tags.
const (
	StepNotStarted = "not_started"
	StepStarted    = "started"
)

// Default interaction timing.
const (
	// DefaultSettleDelay is how long to wait after a click before recapturing.
	DefaultSettleDelay = 2 * time.Second
	// DefaultWaitTimeout bounds WaitForText during interact("wait").
	DefaultWaitTimeout = 10 * time.Second
)

// Canned answers used when generation is unavailable.
const (
	fallbackAnswerGenerationFailed = "I would approach this by analyzing the requirements and implementing a solution that follows best practices."
	fallbackAnswerNoProcessor      = "Based on my experience, I would approach this systematically, considering best practices and edge cases."
)

// AnsweredQuestion is one question/answer pair recorded during a session.
type AnsweredQuestion struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// CodeAnalysisRecord is one analyzed snippet recorded during a session.
type CodeAnalysisRecord struct {
	CodePreview string       `json:"code_preview"`
	Analysis    CodeAnalysis `json:"analysis"`
	Response    string       `json:"response"`
	Timestamp   time.Time    `json:"timestamp"`
}

// sessionState is the controller's working state, serialized into the
// interview-session table as an opaque JSON blob.
type sessionState struct {
	CurrentStep          string               `json:"current_step"`
	InterviewURL         string               `json:"interview_url"`
	Company              string               `json:"company,omitempty"`
	Position             string               `json:"position,omitempty"`
	QuestionsAnswered    []AnsweredQuestion   `json:"questions_answered"`
	CodeSnippetsAnalyzed []CodeAnalysisRecord `json:"code_snippets_analyzed"`
	StartedAt            string               `json:"started_at,omitempty"`
}

// StartResult reports the outcome of starting a session.
type StartResult struct {
	Success     bool                 `json:"success"`
	Error       string               `json:"error,omitempty"`
	PageContent *browser.PageContent `json:"page_content,omitempty"`
	NextAction  *NextAction          `json:"next_action,omitempty"`
	Message     string               `json:"message,omitempty"`
}

// AnalyzeResult reports the outcome of a code analysis.
type AnalyzeResult struct {
	Success         bool          `json:"success"`
	Error           string        `json:"error,omitempty"`
	Analysis        *CodeAnalysis `json:"analysis,omitempty"`
	Response        string        `json:"response,omitempty"`
	FormattedReport string        `json:"formatted_report,omitempty"`
}

// AnswerResult reports the outcome of answering a question.
type AnswerResult struct {
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Question string `json:"question,omitempty"`
	Answer   string `json:"answer,omitempty"`
}

// InteractResult reports the outcome of a page interaction. Failed
// preconditions surface here as error payloads, not Go errors.
type InteractResult struct {
	Success     bool                 `json:"success"`
	Error       string               `json:"error,omitempty"`
	Action      string               `json:"action,omitempty"`
	PageContent *browser.PageContent `json:"page_content,omitempty"`
}

// Status is a snapshot of the controller for operator surfaces.
type Status struct {
	Active               bool   `json:"active"`
	CurrentStep          string `json:"current_step"`
	Company              string `json:"company,omitempty"`
	Position             string `json:"position,omitempty"`
	QuestionsAnswered    int    `json:"questions_answered"`
	CodeSnippetsAnalyzed int    `json:"code_snippets_analyzed"`
	PageURL              string `json:"page_url,omitempty"`
	StartedAt            string `json:"started_at,omitempty"`
}

// Opts holds configuration options for the interview controller.
type Opts struct {
	Headless    bool
	SettleDelay time.Duration
	WaitTimeout time.Duration
}

// Option defines a configuration option for the interview controller.
type Option func(*Opts)

// WithHeadless controls whether the browser session runs headless.
func WithHeadless(headless bool) Option {
	return func(o *Opts) { o.Headless = headless }
}

// WithSettleDelay overrides the post-click settle delay.
func WithSettleDelay(d time.Duration) Option {
	return func(o *Opts) { o.SettleDelay = d }
}

// WithWaitTimeout overrides the default wait-for-text timeout.
func WithWaitTimeout(d time.Duration) Option {
	return func(o *Opts) { o.WaitTimeout = d }
}

// Controller owns one interview session at a time: the browser handle, the
// working session state, and write-through persistence to the store.
//
// The controller is not safe for concurrent use; callers serialize access.
type Controller struct {
	launcher    browser.Launcher
	gen         genai.ClientInterface
	st          store.Store
	headless    bool
	settleDelay time.Duration
	waitTimeout time.Duration

	session browser.Session
	state   sessionState
}

// NewController creates an interview controller. The generator and store may
// be nil; answering falls back to canned text and persistence is skipped.
func NewController(launcher browser.Launcher, gen genai.ClientInterface, st store.Store, opts ...Option) *Controller {
	cfg := Opts{SettleDelay: DefaultSettleDelay, WaitTimeout: DefaultWaitTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Controller{
		launcher:    launcher,
		gen:         gen,
		st:          st,
		headless:    cfg.Headless,
		settleDelay: cfg.SettleDelay,
		waitTimeout: cfg.WaitTimeout,
		state:       defaultState(),
	}
}

func defaultState() sessionState {
	return sessionState{CurrentStep: StepNotStarted}
}

// Start acquires a browser session, navigates to the interview URL, captures
// the page, persists initial session state, and recommends the next action.
// A session already in progress is closed out first; the controller owns at
// most one browser handle at a time.
func (c *Controller) Start(ctx context.Context, url, company, position string) StartResult {
	if c.session != nil || c.state.CurrentStep != StepNotStarted {
		slog.Info("interview.Start: closing previous session", "previousURL", c.state.InterviewURL)
		c.Close()
	}

	session, err := c.launcher.Launch(ctx, c.headless)
	if err != nil {
		slog.Error("interview.Start: failed to start browser", "error", err, "url", url)
		return StartResult{Error: "Failed to start browser"}
	}
	c.session = session

	if err := session.Navigate(ctx, url); err != nil {
		slog.Error("interview.Start: navigation failed", "error", err, "url", url)
		c.releaseSession()
		return StartResult{Error: "Failed to navigate to interview URL"}
	}

	page, err := session.Capture(ctx)
	if err != nil {
		slog.Error("interview.Start: page capture failed", "error", err, "url", url)
		c.releaseSession()
		return StartResult{Error: fmt.Sprintf("Failed to capture page: %v", err)}
	}

	c.state = sessionState{
		CurrentStep:  StepStarted,
		InterviewURL: url,
		Company:      company,
		Position:     position,
		StartedAt:    time.Now().Format(time.RFC3339),
	}
	c.persist()

	next := PlanNextAction(page)
	slog.Info("interview.Start: session started", "url", url, "company", company, "nextAction", next.Action)
	return StartResult{
		Success:     true,
		PageContent: page,
		NextAction:  &next,
		Message:     "Interview session started",
	}
}

// AnalyzeCodeSnippet analyzes the given code, extracting it from the current
// page when not supplied. The analysis itself is deterministic; only the
// record-keeping touches the store.
func (c *Controller) AnalyzeCodeSnippet(ctx context.Context, code, language string) AnalyzeResult {
	if language == "" {
		language = "python"
	}
	if code == "" {
		page, err := c.capture(ctx)
		if err != nil {
			return AnalyzeResult{Error: fmt.Sprintf("Failed to capture page: %v", err)}
		}
		extracted, ok := ExtractCode(page)
		if !ok {
			slog.Debug("interview.AnalyzeCodeSnippet: no code found on page", "url", c.state.InterviewURL)
			return AnalyzeResult{Error: "No code snippet found"}
		}
		code = extracted
	}

	analysis := AnalyzeCode(code, language)
	response := AnalysisResponse(analysis)

	preview := code
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	c.state.CodeSnippetsAnalyzed = append(c.state.CodeSnippetsAnalyzed, CodeAnalysisRecord{
		CodePreview: preview,
		Analysis:    analysis,
		Response:    response,
		Timestamp:   time.Now(),
	})
	c.persist()

	slog.Info("interview.AnalyzeCodeSnippet: snippet analyzed",
		"language", language, "issues", len(analysis.Issues), "score", analysis.QualityScore)
	return AnalyzeResult{
		Success:         true,
		Analysis:        &analysis,
		Response:        response,
		FormattedReport: FormatReport(analysis),
	}
}

// AnswerQuestion answers the given question, extracting one from the current
// page when not supplied. Generation failures are masked behind canned
// answers so the session never stalls.
func (c *Controller) AnswerQuestion(ctx context.Context, question string) AnswerResult {
	if question == "" {
		page, err := c.capture(ctx)
		if err != nil {
			return AnswerResult{Error: fmt.Sprintf("Failed to capture page: %v", err)}
		}
		extracted, ok := ExtractQuestion(page)
		if !ok {
			slog.Debug("interview.AnswerQuestion: no question found on page", "url", c.state.InterviewURL)
			return AnswerResult{Error: "No question found on page"}
		}
		question = extracted
	}

	var answer string
	if c.gen != nil {
		text, err := c.gen.GenerateText(ctx, answerSystemPrompt, buildAnswerPrompt(question))
		if err != nil {
			slog.Error("interview.AnswerQuestion: generation failed, using fallback", "error", err)
			answer = fallbackAnswerGenerationFailed
		} else {
			answer = text
		}
	} else {
		answer = fallbackAnswerNoProcessor
	}

	c.state.QuestionsAnswered = append(c.state.QuestionsAnswered, AnsweredQuestion{
		Question:  question,
		Answer:    answer,
		Timestamp: time.Now(),
	})
	c.persist()

	slog.Info("interview.AnswerQuestion: question answered", "questionLength", len(question))
	return AnswerResult{Success: true, Question: question, Answer: answer}
}

const answerSystemPrompt = "You are in a technical interview. Answer professionally and concisely."

func buildAnswerPrompt(question string) string {
	return fmt.Sprintf(`Answer the following interview question:

Question: %s

Provide a clear, technical answer that demonstrates your knowledge. Keep it to 2-3 sentences unless the question requires more detail.`, question)
}

// Interact dispatches a page interaction: click (resolve by text, click,
// settle, recapture), fill (match input by name/placeholder), or wait.
// Unmet preconditions come back as error payloads.
func (c *Controller) Interact(ctx context.Context, action, target, value string) InteractResult {
	switch action {
	case "click":
		return c.interactClick(ctx, target)
	case "fill":
		return c.interactFill(ctx, target, value)
	case "wait":
		return c.interactWait(ctx, target)
	default:
		return InteractResult{Error: fmt.Sprintf("Unknown action: %s", action)}
	}
}

func (c *Controller) interactClick(ctx context.Context, target string) InteractResult {
	if target == "" {
		return InteractResult{Error: "Target required for click action"}
	}
	if c.session == nil {
		return InteractResult{Error: "Browser session not active"}
	}
	selector, err := c.session.FindByText(ctx, target, true)
	if err != nil {
		slog.Debug("interview.Interact: click target not found", "target", target, "error", err)
		return InteractResult{Error: fmt.Sprintf("Could not find element: %s", target)}
	}
	if err := c.session.Click(ctx, selector); err != nil {
		slog.Error("interview.Interact: click failed", "selector", selector, "error", err)
		return InteractResult{Error: fmt.Sprintf("Could not find element: %s", target)}
	}
	time.Sleep(c.settleDelay)
	page, err := c.session.Capture(ctx)
	if err != nil {
		slog.Error("interview.Interact: recapture after click failed", "error", err)
		page = nil
	}
	return InteractResult{Success: true, Action: fmt.Sprintf("Clicked %s", target), PageContent: page}
}

func (c *Controller) interactFill(ctx context.Context, target, value string) InteractResult {
	if target == "" || value == "" {
		return InteractResult{Error: "Target and value required for fill action"}
	}
	if c.session == nil {
		return InteractResult{Error: "Browser session not active"}
	}
	page, err := c.session.Capture(ctx)
	if err != nil {
		return InteractResult{Error: fmt.Sprintf("Failed to capture page: %v", err)}
	}
	lower := strings.ToLower(target)
	for _, input := range page.Inputs {
		if !strings.Contains(strings.ToLower(input.Name), lower) &&
			!strings.Contains(strings.ToLower(input.Placeholder), lower) {
			continue
		}
		selector := fmt.Sprintf("input[name=%q]", input.Name)
		if input.Name == "" {
			selector = fmt.Sprintf("input[placeholder=%q]", input.Placeholder)
		}
		if err := c.session.Fill(ctx, selector, value); err != nil {
			slog.Error("interview.Interact: fill failed", "selector", selector, "error", err)
			return InteractResult{Error: fmt.Sprintf("Could not find input field: %s", target)}
		}
		return InteractResult{Success: true, Action: fmt.Sprintf("Filled %s with value", target)}
	}
	return InteractResult{Error: fmt.Sprintf("Could not find input field: %s", target)}
}

func (c *Controller) interactWait(ctx context.Context, target string) InteractResult {
	if c.session == nil {
		return InteractResult{Error: "Browser session not active"}
	}
	if target != "" {
		if err := c.session.WaitForText(ctx, target, c.waitTimeout); err != nil {
			return InteractResult{Error: fmt.Sprintf("Timed out waiting for %s", target)}
		}
		return InteractResult{Success: true, Action: fmt.Sprintf("Waited for %s", target)}
	}
	time.Sleep(c.settleDelay)
	return InteractResult{Success: true, Action: "Waited for page to settle"}
}

// GetStatus returns a snapshot of the current session.
func (c *Controller) GetStatus(ctx context.Context) Status {
	status := Status{
		Active:               c.session != nil,
		CurrentStep:          c.state.CurrentStep,
		Company:              c.state.Company,
		Position:             c.state.Position,
		QuestionsAnswered:    len(c.state.QuestionsAnswered),
		CodeSnippetsAnalyzed: len(c.state.CodeSnippetsAnalyzed),
		StartedAt:            c.state.StartedAt,
	}
	if c.session != nil {
		if page, err := c.session.Capture(ctx); err == nil {
			status.PageURL = page.URL
		}
	}
	return status
}

// Close tears down the browser session and resets in-memory state to
// defaults. Persisted session history is retained; the stored record is
// marked closed.
func (c *Controller) Close() {
	if c.st != nil && c.state.InterviewURL != "" {
		if err := c.st.UpdateInterviewSession(c.state.InterviewURL, "", models.SessionStatusClosed); err != nil {
			slog.Error("interview.Close: failed to mark session closed", "error", err, "url", c.state.InterviewURL)
		}
	}
	c.releaseSession()
	c.state = defaultState()
	slog.Info("interview.Close: session closed")
}

// capture returns current page content, treating a missing session as a
// permanent failure for this call chain.
func (c *Controller) capture(ctx context.Context) (*browser.PageContent, error) {
	if c.session == nil {
		return nil, browser.ErrNoSession
	}
	return c.session.Capture(ctx)
}

func (c *Controller) releaseSession() {
	if c.session == nil {
		return
	}
	if err := c.session.Close(); err != nil {
		slog.Error("interview controller failed to close browser session", "error", err)
	}
	c.session = nil
}

// persist writes the working state through to the interview-session table.
// Persistence failures are logged and skipped; the in-memory state remains
// the source of truth for the active session.
func (c *Controller) persist() {
	if c.st == nil || c.state.InterviewURL == "" {
		return
	}
	stateJSON, err := json.Marshal(c.state)
	if err != nil {
		slog.Error("interview controller failed to marshal session state", "error", err)
		return
	}
	session := models.InterviewSession{
		URL:      c.state.InterviewURL,
		Company:  c.state.Company,
		Position: c.state.Position,
		State:    string(stateJSON),
		Status:   models.SessionStatusActive,
	}
	if err := c.st.SaveInterviewSession(session); err != nil {
		slog.Error("interview controller failed to persist session state", "error", err, "url", c.state.InterviewURL)
	}
}
