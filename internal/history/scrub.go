// internal/history/scrub.go
package history

import "regexp"

var (
	// Bearer tokens in serialized headers or payload text.
	bearerPattern = regexp.MustCompile(`Bearer\s+\S{20,}`)
	// GitHub personal access tokens.
	githubTokenPattern = regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{20,}\b`)
	// token=..., secret=..., api_key=... style query or form parameters.
	paramPattern = regexp.MustCompile(`(?i)\b(token|secret|api_key|password)=\S+`)
	// Long hex strings are likely API keys or signatures.
	hexKeyPattern = regexp.MustCompile(`\b[0-9a-fA-F]{32,}\b`)
)

// Scrub redacts likely secrets from text before it is persisted. Journal rows
// can contain webhook payloads verbatim, so anything token-shaped is replaced
// rather than stored.
func Scrub(s string) string {
	s = bearerPattern.ReplaceAllString(s, "Bearer [REDACTED]")
	s = githubTokenPattern.ReplaceAllString(s, "[REDACTED]")
	s = paramPattern.ReplaceAllString(s, "$1=[REDACTED]")
	s = hexKeyPattern.ReplaceAllString(s, "[REDACTED]")
	return s
}
