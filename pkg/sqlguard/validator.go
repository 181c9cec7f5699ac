// Package sqlguard assembles the parse facade, the rule chain, and the
// template detector into one embeddable validator.
package sqlguard

import (
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/sqlguard/pkg/audit"
	"github.com/ekaya-inc/sqlguard/pkg/checkers"
	"github.com/ekaya-inc/sqlguard/pkg/config"
	"github.com/ekaya-inc/sqlguard/pkg/engine"
	"github.com/ekaya-inc/sqlguard/pkg/logging"
	"github.com/ekaya-inc/sqlguard/pkg/sql"
	"github.com/ekaya-inc/sqlguard/pkg/template"
)

// Request carries one statement into a validation run.
type Request struct {
	// SQL is the statement text with parameter markers in place.
	SQL string

	// Origin identifies the call site the statement came from, e.g.
	// "UserMapper.findByName". It feeds audit events and origin-based
	// exemptions.
	Origin string

	// Parameters are the bound parameter values in statement order.
	Parameters []engine.Parameter

	// Page is the page window the caller requested alongside the query,
	// nil when none.
	Page *engine.PageHint

	// PluginPresent marks that a physical pagination plugin rewrites the
	// statement on this calling path.
	PluginPresent bool
}

// Validator runs the full classification pipeline over single statements.
// A run never returns an error: parse and checker failures degrade the
// verdict, get logged and audited, and the caller still receives a result.
type Validator struct {
	parser   *sql.Parser
	chain    *engine.Chain
	detector *template.Detector
	auditor  *audit.SecurityAuditor
	logger   *zap.Logger
}

// New wires the parse facade, rule chain, and template detector from one
// configuration. A nil cfg uses the defaults; a nil logger discards logs.
// Configuration errors are returned here, before any statement is
// accepted.
func New(cfg *config.Config, logger *zap.Logger) (*Validator, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	chain, err := checkers.DefaultChain(cfg, logger)
	if err != nil {
		return nil, err
	}

	return &Validator{
		parser:   sql.NewParser(cfg.Parser.CacheSize),
		chain:    chain,
		detector: template.NewDetector(cfg.Template),
		auditor:  audit.NewSecurityAuditor(logger),
		logger:   logger.Named("sqlguard"),
	}, nil
}

// Validate classifies one statement and returns the verdict. A statement
// that fails to parse is still validated by the textual checkers; the
// parse failure surfaces as a verdict diagnostic, not an error.
func (v *Validator) Validate(req Request) *engine.Verdict {
	opts := []engine.ContextOption{
		engine.WithParser(v.parser.Parse),
		engine.WithOrigin(req.Origin),
		engine.WithParameters(req.Parameters),
		engine.WithPlugin(req.PluginPresent),
	}
	if req.Page != nil {
		opts = append(opts, engine.WithPageHint(req.Page.Offset, req.Page.Limit))
	}

	verdict := v.chain.Run(engine.NewContext(req.SQL, opts...))
	v.audit(req, verdict)

	v.logger.Debug("statement classified",
		zap.String("origin", req.Origin),
		zap.String("risk_level", verdict.RiskLevel().String()),
		zap.Int("violations", len(verdict.Violations())))
	return verdict
}

// ValidateDeduped runs Validate through a caller-owned dedup cache keyed
// by the statement fingerprint. A nil cache validates directly. Within
// the cache TTL, statements differing only in case, whitespace, or
// placeholder style share one verdict.
func (v *Validator) ValidateDeduped(cache *engine.DedupCache, req Request) *engine.Verdict {
	if cache == nil {
		return v.Validate(req)
	}
	return cache.GetOrCompute(sql.Fingerprint(req.SQL), func() *engine.Verdict {
		return v.Validate(req)
	})
}

// Template returns the sibling template detector. It runs upstream of SQL
// resolution and independently of statement validation.
func (v *Validator) Template() *template.Detector { return v.detector }

// ParserStats reports the parse facade's AST cache statistics.
func (v *Validator) ParserStats() sql.CacheStats { return v.parser.Stats() }

// audit emits security events for degraded runs and critical outcomes.
func (v *Validator) audit(req Request, verdict *engine.Verdict) {
	for _, diag := range verdict.Diagnostics() {
		switch diag.Source {
		case engine.DiagnosticParser:
			v.auditor.LogParseFailure(req.Origin, logging.Snippet(req.SQL), diag.Message)
		case engine.DiagnosticChecker:
			v.auditor.LogCheckerFailure(req.Origin, diag.Checker, diag.Message)
		}
	}

	if verdict.RiskLevel() != engine.SeverityCritical {
		return
	}
	seen := make(map[string]struct{})
	var names []string
	for _, violation := range verdict.Violations() {
		if violation.Severity != engine.SeverityCritical {
			continue
		}
		if _, ok := seen[violation.Checker]; ok {
			continue
		}
		seen[violation.Checker] = struct{}{}
		names = append(names, violation.Checker)
	}
	v.auditor.LogCriticalVerdict(req.Origin, audit.CriticalVerdictDetails{
		SQLSnippet: logging.Snippet(req.SQL),
		RiskLevel:  verdict.RiskLevel().String(),
		Checkers:   names,
	})
}

// NewDedupCache builds a dedup cache from configuration. It returns nil
// when deduplication is disabled; ValidateDeduped treats a nil cache as a
// direct run.
func NewDedupCache(cfg config.DedupConfig) *engine.DedupCache {
	if !cfg.Enabled {
		return nil
	}
	return engine.NewDedupCache(cfg.Capacity, time.Duration(cfg.TTLMillis)*time.Millisecond)
}
