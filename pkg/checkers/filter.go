package checkers

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/sqlguard/pkg/config"
	"github.com/ekaya-inc/sqlguard/pkg/engine"
	"github.com/ekaya-inc/sqlguard/pkg/sql"
)

// NoFilterChecker flags UPDATE and DELETE statements with no WHERE clause
// at all. SELECT coverage is optional; unbounded SELECT risk is normally
// graded by the unconditioned-query stratifier.
type NoFilterChecker struct {
	severity      engine.Severity
	includeSelect bool
}

func NewNoFilterChecker(cfg config.NoFilterConfig) *NoFilterChecker {
	return &NoFilterChecker{
		severity:      cfg.SeverityOr(engine.SeverityCritical),
		includeSelect: cfg.IncludeSelect,
	}
}

func (c *NoFilterChecker) Name() string { return "no-filter-clause" }

func (c *NoFilterChecker) Applicable(rctx *engine.ExecutionContext) bool {
	switch rctx.Command() {
	case engine.CommandUpdate, engine.CommandDelete:
		return rctx.HasStatement()
	case engine.CommandSelect:
		return c.includeSelect && rctx.HasStatement()
	}
	return false
}

func (c *NoFilterChecker) Check(rctx *engine.ExecutionContext, verdict *engine.Verdict) error {
	stmt, err := rctx.Statement()
	if err != nil {
		return nil
	}
	if sql.ExtractWhere(stmt) != nil {
		return nil
	}
	verdict.AddViolation(c.Name(), c.severity,
		fmt.Sprintf("%s statement has no filter clause and touches every row", rctx.Command()),
		"add a WHERE clause bounding the affected rows")
	return nil
}

// AlwaysTrueChecker flags WHERE clauses that contain a tautology, via AST
// constant-equality detection plus normalized substring matching against
// the built-in and configured patterns. On a degraded run the raw text is
// scanned instead.
type AlwaysTrueChecker struct {
	severity engine.Severity
	patterns []string
}

var builtinTautologies = []string{"1=1", "'1'='1'", "'a'='a'", "true"}

func NewAlwaysTrueChecker(cfg config.AlwaysTrueConfig) *AlwaysTrueChecker {
	patterns := make([]string, 0, len(builtinTautologies)+len(cfg.Patterns))
	patterns = append(patterns, builtinTautologies...)
	for _, p := range cfg.Patterns {
		if strings.TrimSpace(p) != "" {
			patterns = append(patterns, p)
		}
	}
	return &AlwaysTrueChecker{severity: cfg.SeverityOr(engine.SeverityHigh), patterns: patterns}
}

func (c *AlwaysTrueChecker) Name() string { return "always-true-condition" }

func (c *AlwaysTrueChecker) Applicable(*engine.ExecutionContext) bool { return true }

func (c *AlwaysTrueChecker) Check(rctx *engine.ExecutionContext, verdict *engine.Verdict) error {
	stmt, err := rctx.Statement()
	if err != nil || stmt == nil {
		// Degraded run: scan the raw text for the patterns.
		if matched, ok := c.matchPatterns(rctx.SQL()); ok {
			c.fire(verdict, matched)
		}
		return nil
	}
	where := sql.ExtractWhere(stmt)
	if where == nil {
		return nil
	}
	if sql.IsTautology(where) {
		c.fire(verdict, sql.RestoreExpr(where))
		return nil
	}
	text := strings.ReplaceAll(sql.RestoreExpr(where), "`", "")
	if matched, ok := c.matchPatterns(text); ok {
		c.fire(verdict, matched)
	}
	return nil
}

func (c *AlwaysTrueChecker) matchPatterns(text string) (string, bool) {
	for _, pattern := range c.patterns {
		if sql.ContainsCondition(text, pattern) {
			return pattern, true
		}
	}
	return "", false
}

func (c *AlwaysTrueChecker) fire(verdict *engine.Verdict, matched string) {
	verdict.AddViolation(c.Name(), c.severity,
		fmt.Sprintf("WHERE clause contains an always-true condition (%s)", matched),
		"remove the tautology or replace it with a real predicate")
}

// LowSelectivityChecker flags statements whose WHERE clause references
// columns exclusively from the configured low-selectivity blacklist.
type LowSelectivityChecker struct {
	severity engine.Severity
	fields   []string
}

func NewLowSelectivityChecker(cfg config.FieldListConfig) *LowSelectivityChecker {
	return &LowSelectivityChecker{severity: cfg.SeverityOr(engine.SeverityHigh), fields: cfg.Fields}
}

func (c *LowSelectivityChecker) Name() string { return "low-selectivity-field-only" }

func (c *LowSelectivityChecker) Applicable(rctx *engine.ExecutionContext) bool {
	return len(c.fields) > 0 && rctx.HasStatement()
}

func (c *LowSelectivityChecker) Check(rctx *engine.ExecutionContext, verdict *engine.Verdict) error {
	stmt, err := rctx.Statement()
	if err != nil {
		return nil
	}
	where := sql.ExtractWhere(stmt)
	if where == nil {
		return nil
	}
	columns := sql.CollectColumns(where)
	if len(columns) == 0 {
		return nil
	}
	for _, column := range columns {
		if !matchesFieldList(column, c.fields) {
			return nil
		}
	}
	verdict.AddViolation(c.Name(), c.severity,
		fmt.Sprintf("every filter column is low-selectivity (%s)", strings.Join(columns, ", ")),
		"add a selective predicate such as a key or an indexed column")
	return nil
}

// RequiredFieldChecker enforces a per-table required-filter map: the
// WHERE clause must reference at least one of the table's required
// columns. Tables without an entry are exempt unless
// enforce_for_unknown_tables applies the global field list.
type RequiredFieldChecker struct {
	severity engine.Severity
	tables   map[string][]string
	global   []string
	enforce  bool
}

func NewRequiredFieldChecker(cfg config.RequiredFieldConfig) *RequiredFieldChecker {
	tables := make(map[string][]string, len(cfg.Tables))
	for table, fields := range cfg.Tables {
		tables[strings.ToLower(strings.TrimSpace(table))] = fields
	}
	return &RequiredFieldChecker{
		severity: cfg.SeverityOr(engine.SeverityMedium),
		tables:   tables,
		global:   cfg.GlobalFields,
		enforce:  cfg.EnforceForUnknownTables,
	}
}

func (c *RequiredFieldChecker) Name() string { return "required-field" }

func (c *RequiredFieldChecker) Applicable(rctx *engine.ExecutionContext) bool {
	if len(c.tables) == 0 && !c.enforce {
		return false
	}
	switch rctx.Command() {
	case engine.CommandSelect, engine.CommandUpdate, engine.CommandDelete:
		return rctx.HasStatement()
	}
	return false
}

func (c *RequiredFieldChecker) Check(rctx *engine.ExecutionContext, verdict *engine.Verdict) error {
	stmt, err := rctx.Statement()
	if err != nil {
		return nil
	}
	where := sql.ExtractWhere(stmt)
	if where == nil {
		// An absent filter is the no-filter checker's finding.
		return nil
	}
	tables := sql.CollectTables(stmt)
	if len(tables) == 0 {
		return nil
	}
	primary := tables[0]
	required, known := c.tables[primary]
	if !known {
		if !c.enforce {
			return nil
		}
		required = c.global
	}
	if len(required) == 0 {
		return nil
	}
	for _, column := range sql.CollectColumns(where) {
		if containsField(required, column) {
			return nil
		}
	}
	verdict.AddViolation(c.Name(), c.severity,
		fmt.Sprintf("WHERE on %s references none of its required filter columns (%s)", primary, strings.Join(required, ", ")),
		"filter by one of the required columns so the scan stays bounded")
	return nil
}
