package checkers

import (
	"fmt"

	"github.com/ekaya-inc/sqlguard/pkg/config"
	"github.com/ekaya-inc/sqlguard/pkg/engine"
	"github.com/ekaya-inc/sqlguard/pkg/sql"
)

// paginationWindow resolves the literal window for a physically paginated
// context: the statement's limiting clause when present, otherwise the
// caller's page hint when a plugin will apply it. A nil limit or offset
// means unknown, typically placeholder-bound.
func paginationWindow(rctx *engine.ExecutionContext) (limit, offset *int64) {
	if stmt, err := rctx.Statement(); err == nil && stmt != nil {
		if has, _ := sql.HasLimitClause(stmt); has {
			window := sql.ExtractLimitWindow(stmt)
			return window.Count, window.Offset
		}
	}
	if page := rctx.Page(); page != nil && !page.Unbounded() {
		return &page.Limit, &page.Offset
	}
	return nil, nil
}

// LogicalPaginationChecker fires when the caller requested a page but
// nothing bounds the statement, so the full result set is read and the
// window sliced in memory.
type LogicalPaginationChecker struct {
	severity engine.Severity
}

func NewLogicalPaginationChecker(cfg config.CheckerConfig) *LogicalPaginationChecker {
	return &LogicalPaginationChecker{severity: cfg.SeverityOr(engine.SeverityCritical)}
}

func (c *LogicalPaginationChecker) Name() string { return "logical-pagination" }

func (c *LogicalPaginationChecker) Applicable(rctx *engine.ExecutionContext) bool {
	return rctx.Command() == engine.CommandSelect
}

func (c *LogicalPaginationChecker) Check(rctx *engine.ExecutionContext, verdict *engine.Verdict) error {
	if engine.Classify(rctx) != engine.PaginationLogical {
		return nil
	}
	if page := rctx.Page(); page != nil {
		verdict.SetExtractedWindow(&page.Limit, &page.Offset)
	}
	verdict.AddViolation(c.Name(), c.severity,
		"page window is applied in memory after reading the full result set",
		"push the window into the statement with LIMIT/OFFSET or enable the pagination plugin")
	return nil
}

// NoConditionPaginationChecker fires on physically paginated SELECTs whose
// WHERE clause is absent or tautological. The limiting clause only trims
// the response; the scan still covers the whole table. On fire it records
// the extracted window and sets the early-stop flag so downstream
// pagination checkers do not pile on.
type NoConditionPaginationChecker struct {
	severity engine.Severity
}

func NewNoConditionPaginationChecker(cfg config.CheckerConfig) *NoConditionPaginationChecker {
	return &NoConditionPaginationChecker{severity: cfg.SeverityOr(engine.SeverityCritical)}
}

func (c *NoConditionPaginationChecker) Name() string { return "no-condition-pagination" }

func (c *NoConditionPaginationChecker) Applicable(rctx *engine.ExecutionContext) bool {
	return rctx.Command() == engine.CommandSelect && rctx.HasStatement()
}

func (c *NoConditionPaginationChecker) Check(rctx *engine.ExecutionContext, verdict *engine.Verdict) error {
	if engine.Classify(rctx) != engine.PaginationPhysical {
		return nil
	}
	stmt, err := rctx.Statement()
	if err != nil {
		return nil
	}
	where := sql.ExtractWhere(stmt)
	if where != nil && !sql.IsTautology(where) {
		return nil
	}

	limit, offset := paginationWindow(rctx)
	if limit != nil && offset == nil {
		// A limiting clause without an offset part reads from the start.
		zero := int64(0)
		offset = &zero
	}
	verdict.SetExtractedWindow(limit, offset)
	verdict.SetPaginationEarlyStop()

	verdict.AddViolation(c.Name(), c.severity,
		"unconditioned physical pagination scans the full table and only trims the returned rows",
		"add a business filter so the limit bounds the scan, not just the response")
	return nil
}

// DeepOffsetChecker fires when a physically paginated query skips more
// rows than the configured maximum. The database reads and discards every
// skipped row.
type DeepOffsetChecker struct {
	severity  engine.Severity
	maxOffset int64
}

func NewDeepOffsetChecker(cfg config.DeepOffsetConfig) *DeepOffsetChecker {
	return &DeepOffsetChecker{severity: cfg.SeverityOr(engine.SeverityMedium), maxOffset: cfg.MaxOffset}
}

func (c *DeepOffsetChecker) Name() string { return "deep-offset" }

func (c *DeepOffsetChecker) Applicable(rctx *engine.ExecutionContext) bool {
	return rctx.Command() == engine.CommandSelect
}

func (c *DeepOffsetChecker) Check(rctx *engine.ExecutionContext, verdict *engine.Verdict) error {
	if verdict.PaginationEarlyStop() {
		return nil
	}
	if engine.Classify(rctx) != engine.PaginationPhysical {
		return nil
	}
	_, offset := paginationWindow(rctx)
	if offset == nil || *offset <= c.maxOffset {
		return nil
	}
	verdict.AddViolation(c.Name(), c.severity,
		fmt.Sprintf("pagination offset %d exceeds the configured maximum %d", *offset, c.maxOffset),
		"use keyset pagination (WHERE key > last seen value) instead of a deep offset")
	return nil
}

// LargePageSizeChecker fires when the requested row count exceeds the
// configured maximum. It runs regardless of the early-stop flag and may
// co-fire with the deep-offset checker; oversized pages cost bandwidth
// and memory independently of scan depth.
type LargePageSizeChecker struct {
	severity    engine.Severity
	maxPageSize int64
}

func NewLargePageSizeChecker(cfg config.LargePageSizeConfig) *LargePageSizeChecker {
	return &LargePageSizeChecker{severity: cfg.SeverityOr(engine.SeverityMedium), maxPageSize: cfg.MaxPageSize}
}

func (c *LargePageSizeChecker) Name() string { return "large-page-size" }

func (c *LargePageSizeChecker) Applicable(rctx *engine.ExecutionContext) bool {
	return rctx.Command() == engine.CommandSelect
}

func (c *LargePageSizeChecker) Check(rctx *engine.ExecutionContext, verdict *engine.Verdict) error {
	if engine.Classify(rctx) != engine.PaginationPhysical {
		return nil
	}
	limit, _ := paginationWindow(rctx)
	if limit == nil || *limit <= c.maxPageSize {
		return nil
	}
	verdict.AddViolation(c.Name(), c.severity,
		fmt.Sprintf("requested page of %d rows exceeds the configured maximum %d", *limit, c.maxPageSize),
		"page through the result in smaller windows")
	return nil
}

// MissingOrderByChecker fires on physically paginated SELECTs without an
// ORDER BY. Unordered pagination is not stable across requests.
type MissingOrderByChecker struct {
	severity engine.Severity
}

func NewMissingOrderByChecker(cfg config.CheckerConfig) *MissingOrderByChecker {
	return &MissingOrderByChecker{severity: cfg.SeverityOr(engine.SeverityLow)}
}

func (c *MissingOrderByChecker) Name() string { return "missing-order-by" }

func (c *MissingOrderByChecker) Applicable(rctx *engine.ExecutionContext) bool {
	return rctx.Command() == engine.CommandSelect && rctx.HasStatement()
}

func (c *MissingOrderByChecker) Check(rctx *engine.ExecutionContext, verdict *engine.Verdict) error {
	if verdict.PaginationEarlyStop() {
		return nil
	}
	if engine.Classify(rctx) != engine.PaginationPhysical {
		return nil
	}
	stmt, err := rctx.Statement()
	if err != nil {
		return nil
	}
	if sql.HasOrderBy(stmt) {
		return nil
	}
	verdict.AddViolation(c.Name(), c.severity,
		"paginated query without ORDER BY returns an unstable row order",
		"add an ORDER BY clause so pages are stable across requests")
	return nil
}
