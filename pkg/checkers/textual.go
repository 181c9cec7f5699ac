package checkers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ekaya-inc/sqlguard/pkg/config"
	"github.com/ekaya-inc/sqlguard/pkg/engine"
	"github.com/ekaya-inc/sqlguard/pkg/sql"
)

// The checkers in this file work on the raw statement text, so they keep
// running when the statement does not parse.

var (
	intoFilePattern     = regexp.MustCompile(`(?i)\bINTO\s+(OUT|DUMP)FILE\b`)
	callLeadingPattern  = regexp.MustCompile(`(?i)^\s*(CALL|EXECUTE|EXEC)\b`)
	metadataLeadPattern = regexp.MustCompile(`(?i)^\s*(SHOW|DESCRIBE|DESC|USE)\b`)
	setLeadingPattern   = regexp.MustCompile(`(?i)^\s*SET\b`)
	setVariablePattern  = regexp.MustCompile(`(?i)^\s*SET\s+(@{0,2}[\w.]+)`)
)

// MultiStatementChecker flags SQL that stacks multiple statements in a
// single call.
type MultiStatementChecker struct {
	severity engine.Severity
}

func NewMultiStatementChecker(cfg config.CheckerConfig) *MultiStatementChecker {
	return &MultiStatementChecker{severity: cfg.SeverityOr(engine.SeverityCritical)}
}

func (c *MultiStatementChecker) Name() string { return "multi-statement" }

func (c *MultiStatementChecker) Applicable(*engine.ExecutionContext) bool { return true }

func (c *MultiStatementChecker) Check(rctx *engine.ExecutionContext, verdict *engine.Verdict) error {
	if sql.HasMultipleStatements(rctx.SQL()) {
		verdict.AddViolation(c.Name(), c.severity,
			"multiple SQL statements in one call",
			"submit each statement through its own call")
	}
	return nil
}

// CommentChecker flags SQL comments embedded in a statement. Optimizer
// hints (/*+ ... */) pass when allow_hints is set.
type CommentChecker struct {
	severity   engine.Severity
	allowHints bool
}

func NewCommentChecker(cfg config.CommentConfig) *CommentChecker {
	return &CommentChecker{
		severity:   cfg.SeverityOr(engine.SeverityCritical),
		allowHints: cfg.AllowHints,
	}
}

func (c *CommentChecker) Name() string { return "comment" }

func (c *CommentChecker) Applicable(*engine.ExecutionContext) bool { return true }

func (c *CommentChecker) Check(rctx *engine.ExecutionContext, verdict *engine.Verdict) error {
	flagged := 0
	for _, comment := range sql.CollectComments(rctx.SQL()) {
		if c.allowHints && comment.Hint {
			continue
		}
		flagged++
	}
	if flagged > 0 {
		verdict.AddViolation(c.Name(), c.severity,
			fmt.Sprintf("statement embeds %d SQL comment(s)", flagged),
			"strip comments before execution; comment syntax can hide injected code")
	}
	return nil
}

// IntoOutfileChecker flags INTO OUTFILE and INTO DUMPFILE clauses, which
// write query results to files on the database host.
type IntoOutfileChecker struct {
	severity engine.Severity
}

func NewIntoOutfileChecker(cfg config.CheckerConfig) *IntoOutfileChecker {
	return &IntoOutfileChecker{severity: cfg.SeverityOr(engine.SeverityCritical)}
}

func (c *IntoOutfileChecker) Name() string { return "into-outfile" }

func (c *IntoOutfileChecker) Applicable(*engine.ExecutionContext) bool { return true }

func (c *IntoOutfileChecker) Check(rctx *engine.ExecutionContext, verdict *engine.Verdict) error {
	if intoFilePattern.MatchString(rctx.SQL()) {
		verdict.AddViolation(c.Name(), c.severity,
			"INTO OUTFILE/DUMPFILE writes query results to a file on the database host",
			"remove the file export clause; export data through an audited channel")
	}
	return nil
}

// CallStatementChecker flags stored procedure invocations (CALL, EXECUTE,
// EXEC). Procedure bodies are opaque to statement-level analysis.
type CallStatementChecker struct {
	severity engine.Severity
}

func NewCallStatementChecker(cfg config.CheckerConfig) *CallStatementChecker {
	return &CallStatementChecker{severity: cfg.SeverityOr(engine.SeverityHigh)}
}

func (c *CallStatementChecker) Name() string { return "call-statement" }

func (c *CallStatementChecker) Applicable(*engine.ExecutionContext) bool { return true }

func (c *CallStatementChecker) Check(rctx *engine.ExecutionContext, verdict *engine.Verdict) error {
	m := callLeadingPattern.FindStringSubmatch(rctx.SQL())
	if m == nil {
		return nil
	}
	verdict.AddViolation(c.Name(), c.severity,
		fmt.Sprintf("stored procedure invocation (%s) cannot be analyzed statement by statement", strings.ToUpper(m[1])),
		"inline the procedure logic as reviewable SQL or route the call through an audited path")
	return nil
}

// MetadataStatementChecker flags schema introspection statements (SHOW,
// DESCRIBE, USE) unless the statement kind is allow-listed.
type MetadataStatementChecker struct {
	cfg      config.MetadataStatementConfig
	severity engine.Severity
}

func NewMetadataStatementChecker(cfg config.MetadataStatementConfig) *MetadataStatementChecker {
	return &MetadataStatementChecker{cfg: cfg, severity: cfg.SeverityOr(engine.SeverityHigh)}
}

func (c *MetadataStatementChecker) Name() string { return "metadata-statement" }

func (c *MetadataStatementChecker) Applicable(*engine.ExecutionContext) bool { return true }

func (c *MetadataStatementChecker) Check(rctx *engine.ExecutionContext, verdict *engine.Verdict) error {
	m := metadataLeadPattern.FindStringSubmatch(rctx.SQL())
	if m == nil {
		return nil
	}
	keyword := strings.ToUpper(m[1])
	if keyword == "DESC" {
		keyword = "DESCRIBE"
	}
	if c.cfg.Allowed(keyword) {
		return nil
	}
	verdict.AddViolation(c.Name(), c.severity,
		fmt.Sprintf("metadata statement (%s) exposes schema details", keyword),
		"allow-list the statement kind if the exposure is intended")
	return nil
}

// SetStatementChecker flags leading SET statements, which alter session
// or global state. The SET clause of an UPDATE never matches because
// UPDATE is the leading keyword there.
type SetStatementChecker struct {
	severity engine.Severity
}

func NewSetStatementChecker(cfg config.CheckerConfig) *SetStatementChecker {
	return &SetStatementChecker{severity: cfg.SeverityOr(engine.SeverityMedium)}
}

func (c *SetStatementChecker) Name() string { return "set-statement" }

func (c *SetStatementChecker) Applicable(*engine.ExecutionContext) bool { return true }

func (c *SetStatementChecker) Check(rctx *engine.ExecutionContext, verdict *engine.Verdict) error {
	if !setLeadingPattern.MatchString(rctx.SQL()) {
		return nil
	}
	message := "SET statement alters session or global state"
	if m := setVariablePattern.FindStringSubmatch(rctx.SQL()); m != nil {
		message = fmt.Sprintf("SET statement alters session or global state (variable %s)", m[1])
	}
	verdict.AddViolation(c.Name(), c.severity,
		message,
		"configure session state at pool setup, not on the query path")
	return nil
}
