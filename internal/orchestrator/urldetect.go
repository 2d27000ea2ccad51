package orchestrator

import (
	"regexp"
	"strings"
)

// Ordered interview-URL matchers. Precedence is fixed: a bare interview URL,
// then "join ... meeting", "interview ... link", and "interview ... url"
// phrases followed by ':' or '=' and a URL. The first pattern whose match
// survives cleanup wins.
var interviewURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)https://[^\s<>"]*interview[^\s<>"]*`),
	regexp.MustCompile(`(?i)join[^"'<>]*?meeting[^"'<>]*?[:=]\s*([^\s"'<>]+)`),
	regexp.MustCompile(`(?i)interview[^"'<>]*?link[^"'<>]*?[:=]\s*([^\s"'<>]+)`),
	regexp.MustCompile(`(?i)interview[^"'<>]*?url[^"'<>]*?[:=]\s*([^\s"'<>]+)`),
}

// ExtractInterviewURL scans inbound text for an interview URL. A candidate
// is trimmed of trailing punctuation and must start with "http"; a pattern
// whose candidate fails that check falls through to the next pattern.
func ExtractInterviewURL(text string) (string, bool) {
	for _, pattern := range interviewURLPatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		url := match[0]
		if len(match) > 1 {
			url = match[1]
		}
		url = strings.TrimRight(strings.TrimSpace(url), ".,;:")
		if strings.HasPrefix(url, "http") {
			return url, true
		}
	}
	return "", false
}
