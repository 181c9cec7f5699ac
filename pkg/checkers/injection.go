package checkers

import (
	"encoding/json"
	"fmt"

	"github.com/ekaya-inc/sqlguard/pkg/audit"
	"github.com/ekaya-inc/sqlguard/pkg/config"
	"github.com/ekaya-inc/sqlguard/pkg/engine"
	"github.com/ekaya-inc/sqlguard/pkg/jsonutil"
	"github.com/ekaya-inc/sqlguard/pkg/logging"
	"github.com/ekaya-inc/sqlguard/pkg/sql"
)

// ParamInjectionChecker runs every text-bearing bound parameter through
// libinjection and reports parameters carrying SQL injection payloads.
// Plain strings are scanned as-is; raw JSON values are decoded first.
// Each detection is also recorded as a security audit event.
type ParamInjectionChecker struct {
	severity engine.Severity
	auditor  *audit.SecurityAuditor
}

func NewParamInjectionChecker(cfg config.CheckerConfig, auditor *audit.SecurityAuditor) *ParamInjectionChecker {
	return &ParamInjectionChecker{
		severity: cfg.SeverityOr(engine.SeverityCritical),
		auditor:  auditor,
	}
}

func (c *ParamInjectionChecker) Name() string { return "param-injection" }

func (c *ParamInjectionChecker) Applicable(rctx *engine.ExecutionContext) bool {
	return len(rctx.Parameters()) > 0
}

func (c *ParamInjectionChecker) Check(rctx *engine.ExecutionContext, verdict *engine.Verdict) error {
	for _, param := range rctx.Parameters() {
		result := sql.CheckParameterForInjection(param.Name, param.Value)
		if result == nil {
			continue
		}
		verdict.AddViolation(c.Name(), c.severity,
			fmt.Sprintf("parameter %q carries a SQL injection payload (pattern %s)", param.Name, result.Fingerprint),
			"reject the input; bound values must not embed SQL syntax")
		if c.auditor != nil {
			value, ok := param.Value.(string)
			if !ok {
				if raw, isRaw := param.Value.(json.RawMessage); isRaw {
					value = jsonutil.FlexibleStringValue(raw)
				}
			}
			c.auditor.LogInjectionAttempt(rctx.OriginID(), audit.SQLInjectionDetails{
				ParamName:   param.Name,
				ParamValue:  logging.TruncateString(value, logging.MaxQueryLogLength),
				Fingerprint: result.Fingerprint,
			})
		}
	}
	return nil
}
