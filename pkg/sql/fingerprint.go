package sql

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
)

var (
	// whitespaceRegex collapses runs of whitespace during normalization.
	whitespaceRegex = regexp.MustCompile(`\s+`)

	// namedParamRegex matches :name bind placeholders.
	namedParamRegex = regexp.MustCompile(`:[a-zA-Z_]\w*`)

	// positionalParamRegex matches $1, $2, ... bind placeholders.
	positionalParamRegex = regexp.MustCompile(`\$\d+`)
)

// Normalize lowercases and trims a statement, collapses whitespace runs to
// a single space, and rewrites :name and $N bind placeholders to ? so that
// statements differing only in binding style share one canonical form.
func Normalize(sqlQuery string) string {
	normalized := strings.ToLower(strings.TrimSpace(sqlQuery))
	normalized = whitespaceRegex.ReplaceAllString(normalized, " ")
	normalized = namedParamRegex.ReplaceAllString(normalized, "?")
	normalized = positionalParamRegex.ReplaceAllString(normalized, "?")
	return normalized
}

// Fingerprint returns the FNV-1a 64-bit hash of the normalized statement as
// a fixed-width hex string. Two statements that differ only in case,
// whitespace, or placeholder style get the same fingerprint.
func Fingerprint(sqlQuery string) string {
	h := fnv.New64a()
	h.Write([]byte(Normalize(sqlQuery)))
	return fmt.Sprintf("%016x", h.Sum64())
}

// NormalizeCondition lowercases condition text and removes whitespace
// adjacent to punctuation, so "1 = 1" and "1=1" compare equal while word
// boundaries inside identifiers are preserved.
func NormalizeCondition(text string) string {
	lowered := whitespaceRegex.ReplaceAllString(strings.ToLower(text), " ")
	var b strings.Builder
	b.Grow(len(lowered))
	runes := []rune(lowered)
	for i, r := range runes {
		if r == ' ' {
			prevWord := i > 0 && isWordRune(runes[i-1])
			nextWord := i+1 < len(runes) && isWordRune(runes[i+1])
			if prevWord && nextWord {
				b.WriteRune(r)
			}
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ContainsCondition reports whether the normalized needle occurs in the
// normalized haystack bounded by non-word characters. The boundary rule
// keeps a pattern like "1=1" from matching inside "col1=10".
func ContainsCondition(sqlText, pattern string) bool {
	haystack := NormalizeCondition(sqlText)
	needle := NormalizeCondition(pattern)
	if needle == "" {
		return false
	}
	for start := 0; start <= len(haystack)-len(needle); {
		idx := strings.Index(haystack[start:], needle)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(needle)
		leftOK := idx == 0 || !isWordByte(haystack[idx-1])
		rightOK := end == len(haystack) || !isWordByte(haystack[end])
		if leftOK && rightOK {
			return true
		}
		start = idx + 1
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '_' || ('0' <= r && r <= '9') || ('a' <= r && r <= 'z') || r > 127
}

func isWordByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || c > 127
}
