// Package sql wraps the TiDB parser behind a pooled, caching facade and
// provides the textual SQL helpers shared by the checkers: normalization,
// fingerprinting, multi-statement detection, and comment extraction.
package sql

import (
	"errors"
	"strings"
)

var (
	// ErrMultipleStatements indicates the query contains multiple SQL statements.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
)

// ValidationResult contains the normalized SQL and any validation errors.
type ValidationResult struct {
	NormalizedSQL string
	Error         error
}

// ValidateAndNormalize checks SQL for multiple statements and strips the trailing semicolon.
//
// The validation order is:
// 1. Strip trailing semicolon and whitespace (normalize)
// 2. Check for multiple statements (any remaining semicolons outside string literals and comments)
func ValidateAndNormalize(sqlQuery string) ValidationResult {
	// Trim whitespace first
	sqlQuery = strings.TrimSpace(sqlQuery)

	if sqlQuery == "" {
		return ValidationResult{NormalizedSQL: sqlQuery}
	}

	// Strip trailing semicolon first (normalize)
	normalized := stripTrailingSemicolon(sqlQuery)

	// Check for multiple statements (any semicolons remaining after normalization)
	if hasSemicolonOutsideStrings(normalized) {
		return ValidationResult{Error: ErrMultipleStatements}
	}

	return ValidationResult{NormalizedSQL: normalized}
}

// HasMultipleStatements reports whether the text contains more than one
// statement. A single trailing semicolon does not count as a second
// statement.
func HasMultipleStatements(sqlQuery string) bool {
	return ValidateAndNormalize(sqlQuery).Error != nil
}

// hasSemicolonOutsideStrings returns true if the SQL contains any semicolon
// outside of string literals, quoted identifiers, and comments.
func hasSemicolonOutsideStrings(sqlQuery string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
		stateBacktick
	)

	state := stateNormal
	i := 0
	n := len(sqlQuery)

	for i < n {
		char := sqlQuery[i]
		switch state {
		case stateNormal:
			switch {
			case char == ';':
				return true
			case char == '\'':
				state = stateSingleQuote
			case char == '"':
				state = stateDoubleQuote
			case char == '`':
				state = stateBacktick
			case char == '-' && i+1 < n && sqlQuery[i+1] == '-':
				i = skipToLineEnd(sqlQuery, i)
				continue
			case char == '#' && !(i+1 < n && sqlQuery[i+1] == '{'):
				i = skipToLineEnd(sqlQuery, i)
				continue
			case char == '/' && i+1 < n && sqlQuery[i+1] == '*':
				i = skipBlockComment(sqlQuery, i)
				continue
			}
		case stateSingleQuote:
			// Backslash escapes the next character; a bare quote closes the
			// literal. SQL standard doubled quotes ('') exit and immediately
			// re-enter, which keeps the scan correct.
			if char == '\\' {
				i++
			} else if char == '\'' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '\\' {
				i++
			} else if char == '"' {
				state = stateNormal
			}
		case stateBacktick:
			if char == '`' {
				state = stateNormal
			}
		}
		i++
	}

	return false
}

// stripTrailingSemicolon removes a trailing semicolon and any whitespace after it.
func stripTrailingSemicolon(sqlQuery string) string {
	// Trim trailing whitespace first
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")

	// Remove trailing semicolon if present
	if strings.HasSuffix(sqlQuery, ";") {
		sqlQuery = strings.TrimSuffix(sqlQuery, ";")
		// Trim any whitespace that was before the semicolon
		sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	}

	return sqlQuery
}

// Comment is one SQL comment occurrence within a statement.
type Comment struct {
	Text string
	Hint bool // optimizer hint form /*+ ... */
}

// CollectComments extracts SQL comments appearing outside string literals
// and quoted identifiers. Line comments (-- and #) run to end of line;
// block comments may span lines. A # opening a #{...} placeholder is not a
// comment.
func CollectComments(sqlQuery string) []Comment {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
		stateBacktick
	)

	var comments []Comment
	state := stateNormal
	i := 0
	n := len(sqlQuery)

	for i < n {
		char := sqlQuery[i]
		switch state {
		case stateNormal:
			switch {
			case char == '\'':
				state = stateSingleQuote
			case char == '"':
				state = stateDoubleQuote
			case char == '`':
				state = stateBacktick
			case char == '-' && i+1 < n && sqlQuery[i+1] == '-':
				end := skipToLineEnd(sqlQuery, i)
				comments = append(comments, Comment{Text: sqlQuery[i:end]})
				i = end
				continue
			case char == '#' && !(i+1 < n && sqlQuery[i+1] == '{'):
				end := skipToLineEnd(sqlQuery, i)
				comments = append(comments, Comment{Text: sqlQuery[i:end]})
				i = end
				continue
			case char == '/' && i+1 < n && sqlQuery[i+1] == '*':
				end := skipBlockComment(sqlQuery, i)
				text := sqlQuery[i:end]
				comments = append(comments, Comment{Text: text, Hint: strings.HasPrefix(text, "/*+")})
				i = end
				continue
			}
		case stateSingleQuote:
			if char == '\\' {
				i++
			} else if char == '\'' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '\\' {
				i++
			} else if char == '"' {
				state = stateNormal
			}
		case stateBacktick:
			if char == '`' {
				state = stateNormal
			}
		}
		i++
	}

	return comments
}

// skipToLineEnd returns the index just past the current line comment,
// excluding the newline itself.
func skipToLineEnd(sqlQuery string, start int) int {
	if idx := strings.IndexByte(sqlQuery[start:], '\n'); idx >= 0 {
		return start + idx
	}
	return len(sqlQuery)
}

// skipBlockComment returns the index just past the closing */ of the block
// comment opening at start, or the end of input for an unterminated one.
func skipBlockComment(sqlQuery string, start int) int {
	if idx := strings.Index(sqlQuery[start+2:], "*/"); idx >= 0 {
		return start + 2 + idx + 2
	}
	return len(sqlQuery)
}
