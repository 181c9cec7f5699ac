package engine

import (
	"fmt"
	"strings"
)

// Severity grades a violation. Higher values dominate when a verdict's
// overall risk level is computed.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the canonical uppercase name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "NONE"
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	}
	return "UNKNOWN"
}

// ParseSeverity maps a configuration severity name to its Severity.
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "NONE":
		return SeverityNone, nil
	case "LOW":
		return SeverityLow, nil
	case "MEDIUM":
		return SeverityMedium, nil
	case "HIGH":
		return SeverityHigh, nil
	case "CRITICAL":
		return SeverityCritical, nil
	}
	return SeverityNone, fmt.Errorf("unknown severity %q", name)
}

// Violation is one finding reported by one checker.
type Violation struct {
	Checker    string
	Severity   Severity
	Message    string
	Suggestion string
}

// DiagnosticSource distinguishes degraded-parse records from isolated
// checker failures.
type DiagnosticSource string

const (
	DiagnosticParser  DiagnosticSource = "parser"
	DiagnosticChecker DiagnosticSource = "checker"
)

// Diagnostic is a processing note attached to a verdict. Diagnostics never
// affect the risk level; they record that the run was degraded.
type Diagnostic struct {
	Source  DiagnosticSource
	Checker string
	Message string
}

// Verdict accumulates findings across one chain run. It is not safe for
// concurrent use; a run owns its verdict exclusively while checkers write
// to it.
type Verdict struct {
	violations  []Violation
	diagnostics []Diagnostic

	paginationEarlyStop bool
	extractedLimit      *int64
	extractedOffset     *int64
}

// NewVerdict returns an empty verdict.
func NewVerdict() *Verdict { return &Verdict{} }

// AddViolation appends a finding.
func (v *Verdict) AddViolation(checker string, severity Severity, message, suggestion string) {
	v.violations = append(v.violations, Violation{
		Checker:    checker,
		Severity:   severity,
		Message:    message,
		Suggestion: suggestion,
	})
}

// Violations returns the findings in insertion order.
func (v *Verdict) Violations() []Violation { return v.violations }

// Passed reports whether no checker found anything.
func (v *Verdict) Passed() bool { return len(v.violations) == 0 }

// RiskLevel is the maximum severity across the findings, SeverityNone for
// a passed verdict.
func (v *Verdict) RiskLevel() Severity {
	level := SeverityNone
	for _, violation := range v.violations {
		if violation.Severity > level {
			level = violation.Severity
		}
	}
	return level
}

// AddDiagnostic records a processing note.
func (v *Verdict) AddDiagnostic(source DiagnosticSource, checker, message string) {
	v.diagnostics = append(v.diagnostics, Diagnostic{Source: source, Checker: checker, Message: message})
}

// Diagnostics returns the processing notes in insertion order.
func (v *Verdict) Diagnostics() []Diagnostic { return v.diagnostics }

// SetPaginationEarlyStop marks that an unconditioned pagination finding
// already explains everything downstream pagination checkers would add.
func (v *Verdict) SetPaginationEarlyStop() { v.paginationEarlyStop = true }

// PaginationEarlyStop reports whether downstream pagination checkers
// should stand down.
func (v *Verdict) PaginationEarlyStop() bool { return v.paginationEarlyStop }

// SetExtractedWindow records the literal limit/offset discovered during
// pagination analysis. A nil value means unknown or placeholder-bound.
func (v *Verdict) SetExtractedWindow(limit, offset *int64) {
	v.extractedLimit = limit
	v.extractedOffset = offset
}

// ExtractedLimit returns the literal row count recorded by pagination
// analysis, or nil.
func (v *Verdict) ExtractedLimit() *int64 { return v.extractedLimit }

// ExtractedOffset returns the literal offset recorded by pagination
// analysis, or nil.
func (v *Verdict) ExtractedOffset() *int64 { return v.extractedOffset }
