package interview

import (
	"strings"
	"testing"

	"github.com/recruitpipe/recruitpipe/internal/browser"
)

func TestExtractCodeFencedBlock(t *testing.T) {
	page := &browser.PageContent{
		Text: "Review the following snippet:\n```python\ndef add(a, b):\n    return a + b\n```\nGood luck!",
	}

	code, ok := ExtractCode(page)
	if !ok {
		t.Fatal("expected code to be extracted from fenced block")
	}
	if !strings.Contains(code, "def add(a, b):") {
		t.Errorf("unexpected extracted code: %q", code)
	}
	if strings.Contains(code, "```") {
		t.Errorf("fence markers should be stripped: %q", code)
	}

	// End-to-end property: a well-formed fenced snippet analyzes clean.
	analysis := AnalyzeCode(code, "python")
	if len(analysis.Issues) != 0 || analysis.QualityScore != 100 {
		t.Errorf("expected clean analysis, got score %d, issues %+v", analysis.QualityScore, analysis.Issues)
	}
}

func TestExtractCodeHTMLBlocks(t *testing.T) {
	page := &browser.PageContent{
		Text: "Here: <code>import os\nprint(os.getcwd())</code>",
	}
	code, ok := ExtractCode(page)
	if !ok || !strings.Contains(code, "import os") {
		t.Errorf("expected code from <code> block, got %q (ok=%v)", code, ok)
	}
}

func TestExtractCodeFromElements(t *testing.T) {
	page := &browser.PageContent{
		Text: "nothing fenced here",
		Elements: []browser.Element{
			{Tag: "p", Text: "just prose that is long enough to pass the length filter"},
			{Tag: "pre", Text: "def solve(items):\n    return sorted(items)"},
		},
	}
	code, ok := ExtractCode(page)
	if !ok || !strings.HasPrefix(code, "def solve") {
		t.Errorf("expected code from pre element, got %q (ok=%v)", code, ok)
	}
}

func TestExtractCodeNone(t *testing.T) {
	page := &browser.PageContent{Text: "Welcome to the interview. Click start when ready."}
	if code, ok := ExtractCode(page); ok {
		t.Errorf("expected no code, got %q", code)
	}
	if _, ok := ExtractCode(nil); ok {
		t.Error("expected no code from nil page")
	}
}

func TestExtractQuestionFromElements(t *testing.T) {
	page := &browser.PageContent{
		Elements: []browser.Element{
			{Tag: "div", Text: "Interview"},
			{Tag: "h2", Text: "What is the difference between a slice and an array?"},
		},
	}
	question, ok := ExtractQuestion(page)
	if !ok {
		t.Fatal("expected a question to be extracted")
	}
	if !strings.HasPrefix(question, "What is the difference") {
		t.Errorf("unexpected question: %q", question)
	}
}

func TestExtractQuestionFromText(t *testing.T) {
	page := &browser.PageContent{
		Text: "Welcome. Please explain how garbage collection works? Take your time.",
	}
	question, ok := ExtractQuestion(page)
	if !ok || !strings.Contains(question, "garbage collection") {
		t.Errorf("expected question from raw text, got %q (ok=%v)", question, ok)
	}
}

func TestExtractQuestionNone(t *testing.T) {
	page := &browser.PageContent{Text: "Loading..."}
	if question, ok := ExtractQuestion(page); ok {
		t.Errorf("expected no question, got %q", question)
	}
}
