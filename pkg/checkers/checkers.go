// Package checkers implements the rule family run by the engine chain:
// structural statement gates, bound-parameter injection detection, table
// and function access rules, filter-quality analysis, pagination cost
// rules, and the unconditioned-query risk stratifier. DefaultChain wires
// the enabled checkers in their fixed execution order from configuration.
package checkers

import (
	"strings"
)

// matchesFieldList reports whether name matches an entry in patterns,
// case-insensitively. A trailing * makes an entry a prefix pattern;
// everything else matches exactly.
func matchesFieldList(name string, patterns []string) bool {
	lowered := strings.ToLower(name)
	for _, pattern := range patterns {
		p := strings.ToLower(strings.TrimSpace(pattern))
		if p == "" {
			continue
		}
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			if strings.HasPrefix(lowered, prefix) {
				return true
			}
			continue
		}
		if lowered == p {
			return true
		}
	}
	return false
}

// containsField reports whether the list carries the name, compared
// case-insensitively and exactly.
func containsField(fields []string, name string) bool {
	for _, f := range fields {
		if strings.EqualFold(strings.TrimSpace(f), name) {
			return true
		}
	}
	return false
}
