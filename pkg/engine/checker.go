package engine

// Checker is one rule in the chain. Checkers must be stateless across
// runs; anything per-run lives on the verdict.
type Checker interface {
	// Name identifies the checker in violations, diagnostics, and logs.
	Name() string

	// Applicable gates the checker on cheap context facts such as the
	// command type. Expensive analysis belongs in Check.
	Applicable(rctx *ExecutionContext) bool

	// Check appends findings to the verdict. A returned error is isolated
	// by the chain and never fails the run.
	Check(rctx *ExecutionContext, verdict *Verdict) error
}
