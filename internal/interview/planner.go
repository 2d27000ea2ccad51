package interview

import (
	"strings"

	"github.com/recruitpipe/recruitpipe/internal/browser"
)

// Next-action kinds produced by the planner.
const (
	ActionAnalyzeCode    = "analyze_code"
	ActionAnswerQuestion = "answer_question"
	ActionClick          = "click"
	ActionAnalyze        = "analyze"
)

// NextAction is the planner's recommendation for what to do with the current
// page.
type NextAction struct {
	Action    string `json:"action"`
	Target    string `json:"target,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
}

var (
	codeKeywords = []string{"code", "snippet", "function", "class"}
	askKeywords  = []string{"question", "answer", "what", "how", "why"}
)

// PlanNextAction classifies the page against an ordered rule list; the first
// matching rule wins. Behavior is deterministic by design so planning stays
// reproducible.
//
// Rule order: code keywords, question keywords, a "start" affordance, a
// "next" affordance, then generic re-analysis.
func PlanNextAction(page *browser.PageContent) NextAction {
	if page == nil {
		return NextAction{Action: ActionAnalyze, Reasoning: "No page content captured"}
	}
	text := strings.ToLower(page.Text)

	for _, kw := range codeKeywords {
		if strings.Contains(text, kw) {
			return NextAction{Action: ActionAnalyzeCode, Reasoning: "Code snippet detected on page"}
		}
	}
	for _, kw := range askKeywords {
		if strings.Contains(text, kw) {
			return NextAction{Action: ActionAnswerQuestion, Reasoning: "Question detected on page"}
		}
	}
	if strings.Contains(text, "start") || buttonContains(page.Buttons, "start") {
		return NextAction{Action: ActionClick, Target: "start", Reasoning: "Start button found"}
	}
	if strings.Contains(text, "next") || buttonContains(page.Buttons, "next") {
		return NextAction{Action: ActionClick, Target: "next", Reasoning: "Next button found"}
	}
	return NextAction{Action: ActionAnalyze, Reasoning: "Analyzing page structure"}
}

func buttonContains(buttons []string, needle string) bool {
	for _, b := range buttons {
		if strings.Contains(strings.ToLower(b), needle) {
			return true
		}
	}
	return false
}
