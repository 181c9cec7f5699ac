package logging

import (
	"regexp"
)

const (
	// MaxQueryLogLength is the maximum length of a SQL snippet to log
	MaxQueryLogLength = 100
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Pattern to match potential passwords in SQL text or error messages
	// Matches: password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Pattern to match potential API keys
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`)

	// Pattern to match single-quoted string literals, including doubled
	// quotes ('') and backslash escapes
	stringLiteralPattern = regexp.MustCompile(`'(?:\\.|''|[^'\\])*'`)

	// Pattern to match standalone numeric literals. Digits embedded in
	// identifiers (col1, users2) carry no word boundary and are left alone.
	numberLiteralPattern = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
)

// MaskLiterals replaces string and numeric literals in SQL text with
// placeholders so logged statements never leak row data:
//
//	WHERE email = 'bob@example.com' AND age > 30
//
// becomes
//
//	WHERE email = '?' AND age > ?
func MaskLiterals(sqlText string) string {
	if sqlText == "" {
		return ""
	}
	masked := stringLiteralPattern.ReplaceAllString(sqlText, "'?'")
	return numberLiteralPattern.ReplaceAllString(masked, "?")
}

// Snippet prepares a SQL statement for use as a log or audit field:
// literals are masked, credential-looking tokens are redacted, and the
// result is truncated to MaxQueryLogLength.
func Snippet(sqlText string) string {
	if sqlText == "" {
		return ""
	}

	sanitized := MaskLiterals(sqlText)
	sanitized = passwordPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)

	return TruncateString(sanitized, MaxQueryLogLength)
}

// SanitizeError sanitizes error messages that might echo SQL text back,
// which parser errors routinely do. Use this before logging any error
// produced while handling a statement.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := stringLiteralPattern.ReplaceAllString(err.Error(), "'?'")
	sanitized = passwordPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)

	return sanitized
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
