// Package interview drives automated interactions with interview portals.
package interview

import (
	"fmt"
	"go/parser"
	"go/token"
	"regexp"
	"strings"
)

// Issue severities reported by code analysis.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

// LongBlockThreshold is the line count above which a block is flagged as a
// code smell.
const LongBlockThreshold = 50

// Issue is one finding from code analysis.
type Issue struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Line     int    `json:"line,omitempty"`
}

// CodeAnalysis is the structured result of analyzing one snippet.
type CodeAnalysis struct {
	Issues       []Issue `json:"issues"`
	QualityScore int     `json:"quality_score"`
	Language     string  `json:"language"`
	CodeLength   int     `json:"code_length"`
}

// AnalyzeCode runs the deterministic analysis pipeline: a syntax check when
// the declared language supports one (at most one syntax issue is reported),
// then a length heuristic. Quality score is 100 minus 10 per issue, floored
// at zero.
func AnalyzeCode(code, language string) CodeAnalysis {
	var issues []Issue

	if issue := checkSyntax(code, language); issue != nil {
		issues = append(issues, *issue)
	}

	if len(strings.Split(code, "\n")) > LongBlockThreshold {
		issues = append(issues, Issue{
			Type:     "code_smell",
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("Function/block is very long (>%d lines). Consider breaking it into smaller functions.", LongBlockThreshold),
		})
	}

	score := 100 - 10*len(issues)
	if score < 0 {
		score = 0
	}
	return CodeAnalysis{
		Issues:       issues,
		QualityScore: score,
		Language:     language,
		CodeLength:   len(code),
	}
}

// checkSyntax returns at most one high-severity syntax issue, or nil when the
// language has no static check or the snippet parses.
func checkSyntax(code, language string) *Issue {
	switch strings.ToLower(language) {
	case "go", "golang":
		return checkGoSyntax(code)
	case "python", "py":
		return checkPythonSyntax(code)
	default:
		return nil
	}
}

func checkGoSyntax(code string) *Issue {
	src := code
	if !strings.Contains(src, "package ") {
		src = "package snippet\n\n" + src
	}
	fset := token.NewFileSet()
	if _, err := parser.ParseFile(fset, "snippet.go", src, 0); err != nil {
		return &Issue{
			Type:     "syntax_error",
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("Syntax error: %v", err),
		}
	}
	return nil
}

var pythonDefRe = regexp.MustCompile(`(?m)^\s*(?:def|class)\s+\w+\s*\(`)

// checkPythonSyntax is a deterministic approximation of a Python parse:
// bracket balance plus malformed def/class headers. The first failing check
// wins so that a broken snippet yields exactly one syntax issue.
func checkPythonSyntax(code string) *Issue {
	if line, ch := findUnbalancedBracket(code); line > 0 {
		return &Issue{
			Type:     "syntax_error",
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("Syntax error: unbalanced %q at line %d", ch, line),
			Line:     line,
		}
	}
	for _, loc := range pythonDefRe.FindAllStringIndex(code, -1) {
		rest := code[loc[1]:]
		trimmed := strings.TrimLeft(rest, " \t")
		if strings.HasPrefix(trimmed, ":") || strings.HasPrefix(trimmed, ",") {
			line := 1 + strings.Count(code[:loc[0]], "\n")
			return &Issue{
				Type:     "syntax_error",
				Severity: SeverityHigh,
				Message:  fmt.Sprintf("Syntax error: malformed parameter list at line %d", line),
				Line:     line,
			}
		}
	}
	return nil
}

// findUnbalancedBracket scans for bracket balance outside of string literals.
// Returns the 1-based line of the first unmatched bracket, or 0.
func findUnbalancedBracket(code string) (int, string) {
	type open struct {
		ch   byte
		line int
	}
	var stack []open
	line := 1
	var inString byte
	for i := 0; i < len(code); i++ {
		c := code[i]
		if c == '\n' {
			line++
			continue
		}
		if inString != 0 {
			if c == '\\' {
				i++
			} else if c == inString {
				inString = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			inString = c
		case '#':
			for i < len(code) && code[i] != '\n' {
				i++
			}
			line++
		case '(', '[', '{':
			stack = append(stack, open{c, line})
		case ')', ']', '}':
			if len(stack) == 0 {
				return line, string(c)
			}
			top := stack[len(stack)-1]
			if (c == ')' && top.ch != '(') || (c == ']' && top.ch != '[') || (c == '}' && top.ch != '{') {
				return line, string(c)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		return stack[0].line, string(stack[0].ch)
	}
	return 0, ""
}

// Preview caps for the human-readable analysis response.
const (
	maxHighPreview   = 3
	maxMediumPreview = 2
)

// AnalysisResponse renders the analysis as the reply the agent would give in
// an interview: critical issues first, capped previews, overall score.
func AnalysisResponse(analysis CodeAnalysis) string {
	if len(analysis.Issues) == 0 {
		return "This code looks good! I don't see any obvious issues. The implementation appears clean and follows good practices."
	}

	var high, medium []Issue
	for _, issue := range analysis.Issues {
		switch issue.Severity {
		case SeverityHigh:
			high = append(high, issue)
		case SeverityMedium:
			medium = append(medium, issue)
		}
	}

	var parts []string
	if len(high) > 0 {
		parts = append(parts, fmt.Sprintf("I found %d critical issue(s):", len(high)))
		for i, issue := range high {
			if i >= maxHighPreview {
				break
			}
			parts = append(parts, fmt.Sprintf("- %s", issue.Message))
		}
	}
	if len(medium) > 0 {
		parts = append(parts, fmt.Sprintf("\nThere are also %d issue(s) to consider:", len(medium)))
		for i, issue := range medium {
			if i >= maxMediumPreview {
				break
			}
			parts = append(parts, fmt.Sprintf("- %s", issue.Message))
		}
	}
	parts = append(parts, fmt.Sprintf("\nOverall quality score: %d/100", analysis.QualityScore))
	return strings.Join(parts, "\n")
}

// FormatReport renders the analysis as a readable multi-line report.
func FormatReport(analysis CodeAnalysis) string {
	var b strings.Builder
	b.WriteString("Code Analysis Report\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	fmt.Fprintf(&b, "Language: %s\n", analysis.Language)
	fmt.Fprintf(&b, "Quality Score: %d/100\n\n", analysis.QualityScore)

	if len(analysis.Issues) == 0 {
		b.WriteString("No issues found!\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Issues Found (%d):\n", len(analysis.Issues))
	for i, issue := range analysis.Issues {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, strings.ToUpper(issue.Severity), issue.Message)
	}
	return b.String()
}
