package engine

import (
	"github.com/ekaya-inc/sqlguard/pkg/sql"
)

// PaginationType classifies how a query's result window is bounded.
type PaginationType string

const (
	// PaginationNone means neither the statement nor the caller restricts
	// the window.
	PaginationNone PaginationType = "NONE"
	// PaginationLogical means the caller requested a page but nothing
	// bounds the statement, so rows are sliced in memory after a full read.
	PaginationLogical PaginationType = "LOGICAL"
	// PaginationPhysical means the window is bounded in the database, by
	// limiting syntax or by a plugin that rewrites the statement.
	PaginationPhysical PaginationType = "PHYSICAL"
)

// Classify resolves the pagination type for a context.
//
// Limiting syntax is read from the top-level AST; when the statement shape
// makes that inconclusive, or the statement did not parse, the raw text is
// scanned for limiting keywords across dialects.
func Classify(rctx *ExecutionContext) PaginationType {
	hasPage := rctx.Page() != nil && !rctx.Page().Unbounded()

	var hasLimit bool
	if stmt, err := rctx.Statement(); err == nil && stmt != nil {
		var conclusive bool
		hasLimit, conclusive = sql.HasLimitClause(stmt)
		if !hasLimit && !conclusive {
			hasLimit = sql.HasPaginationKeyword(rctx.SQL())
		}
	} else {
		hasLimit = sql.HasPaginationKeyword(rctx.SQL())
	}

	switch {
	case hasLimit:
		return PaginationPhysical
	case hasPage && rctx.PluginPresent():
		return PaginationPhysical
	case hasPage:
		return PaginationLogical
	default:
		return PaginationNone
	}
}
