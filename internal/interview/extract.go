package interview

import (
	"regexp"
	"strings"

	"github.com/recruitpipe/recruitpipe/internal/browser"
)

// minEmbeddedCodeLength is the minimum text length for an element to be
// considered a code block when scanning captured elements.
const minEmbeddedCodeLength = 20

// Ordered patterns for locating code in raw page text. First match wins.
var codeBlockPatterns = []*regexp.Regexp{
	regexp.MustCompile("```[\\s\\S]*?```"),
	regexp.MustCompile(`(?i)<code>[\s\S]*?</code>`),
	regexp.MustCompile(`(?i)<pre>[\s\S]*?</pre>`),
}

var codeMarkerStripper = regexp.MustCompile("(?i)```[a-zA-Z0-9]*|```|</?code>|</?pre>")

// codeMarkers are tokens that suggest element text is actually code.
var codeMarkers = []string{"def ", "function", "class ", "import ", "="}

// ExtractCode recovers a code snippet from captured page content. It tries
// fenced/markup blocks in the raw text first, then falls back to code-like
// elements. Returns false when nothing recoverable is found.
func ExtractCode(page *browser.PageContent) (string, bool) {
	if page == nil {
		return "", false
	}
	for _, pattern := range codeBlockPatterns {
		if match := pattern.FindString(page.Text); match != "" {
			code := strings.TrimSpace(codeMarkerStripper.ReplaceAllString(match, ""))
			if code != "" {
				return code, true
			}
		}
	}
	for _, el := range page.Elements {
		if el.Tag != "code" && el.Tag != "pre" {
			continue
		}
		if len(el.Text) <= minEmbeddedCodeLength {
			continue
		}
		for _, marker := range codeMarkers {
			if strings.Contains(el.Text, marker) {
				return el.Text, true
			}
		}
	}
	return "", false
}

// questionKeywords mark text as a likely interview question.
var questionKeywords = []string{"question", "what", "how", "why", "explain", "describe", "?"}

// minQuestionLength filters out trivial element text when no question mark is
// present.
const minQuestionLength = 20

// ExtractQuestion recovers a question from captured page content: structured
// elements first, then sentence-splitting over the raw text. Returns false
// when no question is found.
func ExtractQuestion(page *browser.PageContent) (string, bool) {
	if page == nil {
		return "", false
	}
	for _, el := range page.Elements {
		if !containsQuestionKeyword(el.Text) {
			continue
		}
		if strings.Contains(el.Text, "?") || len(el.Text) > minQuestionLength {
			return el.Text, true
		}
	}
	for _, sentence := range strings.Split(page.Text, ".") {
		if containsQuestionKeyword(sentence) && strings.Contains(sentence, "?") {
			return strings.TrimSpace(sentence), true
		}
	}
	return "", false
}

func containsQuestionKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range questionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
