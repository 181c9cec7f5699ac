package engine

import (
	"fmt"

	"go.uber.org/zap"
)

// Chain runs checkers in a fixed order against one context, accumulating a
// verdict. Checker errors and panics are recorded as diagnostics and never
// abort the run: a broken rule must not take query classification down
// with it.
type Chain struct {
	checkers []Checker
	logger   *zap.Logger
}

// NewChain builds a chain over the given checkers, preserving their order.
func NewChain(logger *zap.Logger, checkers ...Checker) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{
		checkers: checkers,
		logger:   logger.Named("engine"),
	}
}

// Names returns the checker names in execution order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.checkers))
	for i, ch := range c.checkers {
		names[i] = ch.Name()
	}
	return names
}

// Run executes every applicable checker and returns the accumulated
// verdict. A statement that fails to parse degrades the run (AST checkers
// skip themselves, a parser diagnostic is recorded) rather than failing it.
func (c *Chain) Run(rctx *ExecutionContext) *Verdict {
	verdict := NewVerdict()

	if _, err := rctx.Statement(); err != nil {
		verdict.AddDiagnostic(DiagnosticParser, "", err.Error())
		c.logger.Debug("statement did not parse, AST checkers will be skipped",
			zap.Error(err))
	}

	for _, ch := range c.checkers {
		if !ch.Applicable(rctx) {
			continue
		}
		if err := c.runChecker(ch, rctx, verdict); err != nil {
			verdict.AddDiagnostic(DiagnosticChecker, ch.Name(), err.Error())
			c.logger.Warn("checker failed, continuing chain",
				zap.String("checker", ch.Name()),
				zap.Error(err))
		}
	}

	return verdict
}

func (c *Chain) runChecker(ch Checker, rctx *ExecutionContext, verdict *Verdict) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("checker panic: %v", r)
		}
	}()
	return ch.Check(rctx, verdict)
}
