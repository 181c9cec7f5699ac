package checkers

import (
	"strings"

	"github.com/ekaya-inc/sqlguard/pkg/config"
	"github.com/ekaya-inc/sqlguard/pkg/engine"
	"github.com/ekaya-inc/sqlguard/pkg/sql"
)

// UnconditionedChecker grades SELECT statements that run with no bounded
// window at all. Rather than flag every such query, it stratifies the
// risk: no real filter is CRITICAL, a filter built solely from
// low-selectivity columns is HIGH, and an ordinary filter is MEDIUM when
// configuration demands pagination everywhere. The tiers are fixed; the
// grade is the classification, so no severity override applies.
//
// Exemptions run first: an origin identifier matching a configured
// wildcard pattern, every accessed table allow-listed, or a WHERE clause
// pinning a unique-key column by equality. Unique-key equality proves an
// at-most-one-row result, which makes pagination moot.
type UnconditionedChecker struct {
	cfg        config.UnconditionedConfig
	blacklist  []string
	uniqueKeys []string
}

// NewUnconditionedChecker builds the stratifier. The blacklist is shared
// with the low-selectivity checker so both rules agree on which columns
// count as non-selective. cfg must have been through config.Validate so
// its origin patterns are compiled.
func NewUnconditionedChecker(cfg config.UnconditionedConfig, blacklist []string) *UnconditionedChecker {
	keys := []string{"id"}
	for _, key := range cfg.UniqueKeys {
		key = strings.ToLower(strings.TrimSpace(key))
		if key != "" && key != "id" {
			keys = append(keys, key)
		}
	}
	return &UnconditionedChecker{cfg: cfg, blacklist: blacklist, uniqueKeys: keys}
}

func (c *UnconditionedChecker) Name() string { return "unconditioned-query" }

func (c *UnconditionedChecker) Applicable(rctx *engine.ExecutionContext) bool {
	return rctx.Command() == engine.CommandSelect && rctx.HasStatement()
}

func (c *UnconditionedChecker) Check(rctx *engine.ExecutionContext, verdict *engine.Verdict) error {
	if engine.Classify(rctx) != engine.PaginationNone {
		return nil
	}
	stmt, err := rctx.Statement()
	if err != nil {
		return nil
	}

	if c.originExempt(rctx.OriginID()) {
		return nil
	}
	if c.tablesExempt(sql.CollectTables(stmt)) {
		return nil
	}
	where := sql.ExtractWhere(stmt)
	if where != nil && sql.HasUniqueKeyEquality(where, c.uniqueKeys) {
		return nil
	}

	switch {
	case where == nil || sql.IsTautology(where):
		verdict.AddViolation(c.Name(), engine.SeverityCritical,
			"unbounded query with no real filter reads the entire table",
			"add a WHERE clause or a pagination window")
	case c.allBlacklisted(sql.CollectColumns(where)):
		verdict.AddViolation(c.Name(), engine.SeverityHigh,
			"unbounded query filters only on low-selectivity columns",
			"add a selective predicate or a pagination window")
	case c.cfg.RequirePagination:
		verdict.AddViolation(c.Name(), engine.SeverityMedium,
			"query runs without a pagination window",
			"add a LIMIT clause or a page hint to bound the result")
	}
	return nil
}

func (c *UnconditionedChecker) originExempt(origin string) bool {
	if origin == "" {
		return false
	}
	for _, re := range c.cfg.CompiledOrigins() {
		if re.MatchString(origin) {
			return true
		}
	}
	return false
}

// tablesExempt requires every accessed table to be allow-listed; a join
// pulling in one unlisted table keeps the statement in scope.
func (c *UnconditionedChecker) tablesExempt(tables []string) bool {
	if len(c.cfg.ExemptTables) == 0 || len(tables) == 0 {
		return false
	}
	for _, table := range tables {
		if !containsField(c.cfg.ExemptTables, table) {
			return false
		}
	}
	return true
}

func (c *UnconditionedChecker) allBlacklisted(columns []string) bool {
	if len(columns) == 0 || len(c.blacklist) == 0 {
		return false
	}
	for _, column := range columns {
		if !matchesFieldList(column, c.blacklist) {
			return false
		}
	}
	return true
}
