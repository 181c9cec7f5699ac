// Package template scans SQL templates before variable substitution.
// Once placeholders resolve into final SQL text, a concatenated value is
// indistinguishable from a bound one, so raw-substitution findings are
// only visible at this stage.
package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ekaya-inc/sqlguard/pkg/config"
	"github.com/ekaya-inc/sqlguard/pkg/engine"
)

// placeholderPattern matches raw-substitution placeholders. Bound
// parameter markers (#{...}, ?, :name) never match.
var placeholderPattern = regexp.MustCompile(`\$\{[^}]+\}`)

var selectStarPattern = regexp.MustCompile(`(?i)\bSELECT\s+\*\s+FROM\b`)

// Detector classifies raw-substitution placeholders by syntactic context
// and reports one violation per occurrence. Context sub-checks are
// individually toggleable, and a disabled sub-check silences its context
// entirely; the placeholder does not fall through to the generic check.
type Detector struct {
	cfg config.TemplateConfig
}

// NewDetector builds a detector over the given sub-check configuration.
func NewDetector(cfg config.TemplateConfig) *Detector {
	return &Detector{cfg: cfg}
}

// ScanText scans a flat template with no conditional structure.
func (d *Detector) ScanText(text string) []engine.Violation {
	return d.Scan(&Fragment{Text: text})
}

// Scan walks the fragment tree and routes every placeholder through the
// sub-check matching its context. LIMIT/OFFSET placeholders additionally
// get a window-reasonableness finding when a conditional fragment makes
// the window optional.
func (d *Detector) Scan(root *Fragment) []engine.Violation {
	if root == nil {
		return nil
	}
	text := root.CollectText()
	lower := strings.ToLower(text)

	var violations []engine.Violation
	for _, placeholder := range placeholderPattern.FindAllString(text, -1) {
		name := strings.ToLower(strings.Trim(placeholder, "${}"))
		switch {
		case orderByContext(name, lower):
			if d.cfg.OrderBy.Enabled {
				violations = append(violations, engine.Violation{
					Checker:    "template-order-by",
					Severity:   d.cfg.OrderBy.SeverityOr(engine.SeverityHigh),
					Message:    fmt.Sprintf("raw substitution %s controls the sort order", placeholder),
					Suggestion: "map the sort key through an allow-list of column names",
				})
			}
		case limitOffsetContext(name, lower):
			violations = append(violations, d.windowFindings(root, placeholder, name)...)
		case aggregateContext(name, lower):
			if d.cfg.Aggregate.Enabled {
				violations = append(violations, engine.Violation{
					Checker:    "template-aggregate-function",
					Severity:   d.cfg.Aggregate.SeverityOr(engine.SeverityMedium),
					Message:    fmt.Sprintf("raw substitution %s selects the aggregate-function column", placeholder),
					Suggestion: "resolve the column through an allow-list before building the template",
				})
			}
		default:
			if d.cfg.Generic.Enabled {
				violations = append(violations, engine.Violation{
					Checker:    "template-raw-injection",
					Severity:   d.cfg.Generic.SeverityOr(engine.SeverityCritical),
					Message:    fmt.Sprintf("raw substitution %s splices unescaped input into the statement", placeholder),
					Suggestion: "use a bound parameter; raw substitution cannot be escaped after the fact",
				})
			}
		}
	}

	if d.cfg.SelectStar.Enabled && selectStarPattern.MatchString(text) {
		violations = append(violations, engine.Violation{
			Checker:    "template-select-star",
			Severity:   d.cfg.SelectStar.SeverityOr(engine.SeverityLow),
			Message:    "SELECT * reads every column of the table",
			Suggestion: "name the columns the caller actually uses",
		})
	}
	return violations
}

// windowFindings reports on a placeholder in LIMIT/OFFSET context. The
// injection finding follows the sub-check toggle; the reasonableness
// finding runs whether or not that toggle is on.
func (d *Detector) windowFindings(root *Fragment, placeholder, name string) []engine.Violation {
	var violations []engine.Violation
	if d.cfg.LimitOffset.Enabled {
		violations = append(violations, engine.Violation{
			Checker:    "template-limit-offset",
			Severity:   d.cfg.LimitOffset.SeverityOr(engine.SeverityHigh),
			Message:    fmt.Sprintf("raw substitution %s controls the page window", placeholder),
			Suggestion: "bind the window as structured limit and offset parameters",
		})
	}
	if windowGuarded(root, placeholder, name) {
		violations = append(violations, engine.Violation{
			Checker:    "template-page-parameter",
			Severity:   engine.SeverityMedium,
			Message:    fmt.Sprintf("page parameter %s is optional; a missing or oversized value leaves the query unbounded", placeholder),
			Suggestion: "guarantee the window in the calling layer and cap both offset and page size",
		})
	}
	return violations
}

// Context classification pairs a clause keyword in the surrounding text
// with a name hint on the placeholder itself; either signal alone is too
// weak to route on.

func orderByContext(name, lowerText string) bool {
	if !strings.Contains(lowerText, "order by") {
		return false
	}
	return strings.Contains(name, "order") || strings.Contains(name, "sort")
}

func limitOffsetContext(name, lowerText string) bool {
	if !strings.Contains(lowerText, "limit") {
		return false
	}
	return strings.Contains(name, "limit") || strings.Contains(name, "offset") ||
		strings.Contains(name, "page")
}

var aggregateHeads = []string{"sum(", "avg(", "count(", "max(", "min("}

func aggregateContext(name, lowerText string) bool {
	var inAggregate bool
	for _, head := range aggregateHeads {
		if strings.Contains(lowerText, head) {
			inAggregate = true
			break
		}
	}
	if !inAggregate {
		return false
	}
	return strings.Contains(name, "col") || strings.Contains(name, "field") ||
		strings.Contains(name, "sum") || strings.Contains(name, "avg")
}
