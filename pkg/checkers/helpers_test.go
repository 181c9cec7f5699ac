package checkers

import (
	"github.com/ekaya-inc/sqlguard/pkg/engine"
	"github.com/ekaya-inc/sqlguard/pkg/sql"
)

var testParser = sql.NewParser(64)

// newCtx builds an execution context wired to the shared test parser.
func newCtx(sqlText string, opts ...engine.ContextOption) *engine.ExecutionContext {
	opts = append([]engine.ContextOption{engine.WithParser(testParser.Parse)}, opts...)
	return engine.NewContext(sqlText, opts...)
}

// violationsOf filters a verdict's findings down to one checker.
func violationsOf(verdict *engine.Verdict, checker string) []engine.Violation {
	var out []engine.Violation
	for _, v := range verdict.Violations() {
		if v.Checker == checker {
			out = append(out, v)
		}
	}
	return out
}
