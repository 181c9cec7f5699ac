package checkers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ekaya-inc/sqlguard/pkg/config"
	"github.com/ekaya-inc/sqlguard/pkg/engine"
	"github.com/ekaya-inc/sqlguard/pkg/sql"
)

// DDLOperationChecker flags schema-changing statements. Allow-listed DDL
// kinds pass; kinds outside the allowlist universe are always flagged.
type DDLOperationChecker struct {
	cfg      config.DDLOperationConfig
	severity engine.Severity
}

func NewDDLOperationChecker(cfg config.DDLOperationConfig) *DDLOperationChecker {
	return &DDLOperationChecker{cfg: cfg, severity: cfg.SeverityOr(engine.SeverityCritical)}
}

func (c *DDLOperationChecker) Name() string { return "ddl-operation" }

func (c *DDLOperationChecker) Applicable(rctx *engine.ExecutionContext) bool {
	return rctx.HasStatement()
}

func (c *DDLOperationChecker) Check(rctx *engine.ExecutionContext, verdict *engine.Verdict) error {
	stmt, err := rctx.Statement()
	if err != nil {
		return nil
	}
	kind := sql.DDLKind(stmt)
	if kind == "" {
		return nil
	}
	if kind != "OTHER" && c.cfg.Allowed(kind) {
		return nil
	}
	message := "DDL statement changes schema state"
	if kind != "OTHER" {
		message = fmt.Sprintf("%s statement changes schema state", kind)
	}
	verdict.AddViolation(c.Name(), c.severity,
		message,
		"run schema changes through the migration pipeline, not the query path")
	return nil
}

// SetOperationChecker flags set operators (UNION and friends) combining
// result sets, unless the operator is allow-listed.
type SetOperationChecker struct {
	cfg      config.SetOperationConfig
	severity engine.Severity
}

func NewSetOperationChecker(cfg config.SetOperationConfig) *SetOperationChecker {
	return &SetOperationChecker{cfg: cfg, severity: cfg.SeverityOr(engine.SeverityCritical)}
}

func (c *SetOperationChecker) Name() string { return "set-operation" }

func (c *SetOperationChecker) Applicable(rctx *engine.ExecutionContext) bool {
	return rctx.HasStatement()
}

func (c *SetOperationChecker) Check(rctx *engine.ExecutionContext, verdict *engine.Verdict) error {
	stmt, err := rctx.Statement()
	if err != nil {
		return nil
	}
	for _, op := range sql.SetOperations(stmt) {
		if c.cfg.Allowed(op) {
			continue
		}
		verdict.AddViolation(c.Name(), c.severity,
			fmt.Sprintf("set operation (%s) combines result sets", strings.ReplaceAll(op, "_", " ")),
			"allow-list the operator if combining these results is intended")
	}
	return nil
}

// DangerousFunctionChecker flags calls to blacklisted functions. The AST
// walk covers nested and aliased call sites; when the statement did not
// parse, a per-function textual scan still catches direct calls.
type DangerousFunctionChecker struct {
	severity engine.Severity
	denied   map[string]struct{}
	fallback []*regexp.Regexp
	names    []string
}

func NewDangerousFunctionChecker(cfg config.DangerousFunctionConfig) *DangerousFunctionChecker {
	c := &DangerousFunctionChecker{
		severity: cfg.SeverityOr(engine.SeverityCritical),
		denied:   make(map[string]struct{}, len(cfg.Functions)),
	}
	for _, fn := range cfg.Functions {
		name := strings.ToLower(strings.TrimSpace(fn))
		if name == "" {
			continue
		}
		if _, dup := c.denied[name]; dup {
			continue
		}
		c.denied[name] = struct{}{}
		c.names = append(c.names, name)
		c.fallback = append(c.fallback, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(name)+`\s*\(`))
	}
	return c
}

func (c *DangerousFunctionChecker) Name() string { return "dangerous-function" }

func (c *DangerousFunctionChecker) Applicable(*engine.ExecutionContext) bool { return true }

func (c *DangerousFunctionChecker) Check(rctx *engine.ExecutionContext, verdict *engine.Verdict) error {
	if len(c.denied) == 0 {
		return nil
	}
	if stmt, err := rctx.Statement(); err == nil && stmt != nil {
		for _, name := range sql.CollectDeniedFunctions(stmt, c.denied) {
			c.fire(verdict, name)
		}
		return nil
	}
	for i, pattern := range c.fallback {
		if pattern.MatchString(rctx.SQL()) {
			c.fire(verdict, c.names[i])
		}
	}
	return nil
}

func (c *DangerousFunctionChecker) fire(verdict *engine.Verdict, name string) {
	verdict.AddViolation(c.Name(), c.severity,
		fmt.Sprintf("dangerous function %s detected", name),
		fmt.Sprintf("remove %s or replace it with a safe equivalent", name))
}

// DeniedTableChecker flags statements touching tables on the deny list.
type DeniedTableChecker struct {
	severity engine.Severity
	tables   []string
}

func NewDeniedTableChecker(cfg config.TableListConfig) *DeniedTableChecker {
	return &DeniedTableChecker{severity: cfg.SeverityOr(engine.SeverityCritical), tables: cfg.Tables}
}

func (c *DeniedTableChecker) Name() string { return "denied-table" }

func (c *DeniedTableChecker) Applicable(rctx *engine.ExecutionContext) bool {
	return len(c.tables) > 0 && rctx.HasStatement()
}

func (c *DeniedTableChecker) Check(rctx *engine.ExecutionContext, verdict *engine.Verdict) error {
	stmt, err := rctx.Statement()
	if err != nil {
		return nil
	}
	for _, table := range sql.CollectTables(stmt) {
		if matchesFieldList(table, c.tables) {
			verdict.AddViolation(c.Name(), c.severity,
				fmt.Sprintf("table %s is on the deny list", table),
				"query a permitted table or view instead")
		}
	}
	return nil
}

// ReadOnlyTableChecker flags writes whose target table is declared
// read-only for this service.
type ReadOnlyTableChecker struct {
	severity engine.Severity
	tables   []string
}

func NewReadOnlyTableChecker(cfg config.TableListConfig) *ReadOnlyTableChecker {
	return &ReadOnlyTableChecker{severity: cfg.SeverityOr(engine.SeverityHigh), tables: cfg.Tables}
}

func (c *ReadOnlyTableChecker) Name() string { return "read-only-table" }

func (c *ReadOnlyTableChecker) Applicable(rctx *engine.ExecutionContext) bool {
	if len(c.tables) == 0 {
		return false
	}
	switch rctx.Command() {
	case engine.CommandInsert, engine.CommandUpdate, engine.CommandDelete:
		return rctx.HasStatement()
	}
	return false
}

func (c *ReadOnlyTableChecker) Check(rctx *engine.ExecutionContext, verdict *engine.Verdict) error {
	stmt, err := rctx.Statement()
	if err != nil {
		return nil
	}
	for _, table := range sql.WriteTargets(stmt) {
		if matchesFieldList(table, c.tables) {
			verdict.AddViolation(c.Name(), c.severity,
				fmt.Sprintf("table %s is read-only for this service", table),
				"route the write to the owning service")
		}
	}
	return nil
}
