// Package audit provides security audit logging for SIEM consumption.
// It logs validation-relevant events in structured JSON format for easy
// parsing and integration with security information and event management
// systems.
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection flags a bound parameter.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventCriticalVerdict is logged when a validation run produces a CRITICAL violation.
	EventCriticalVerdict SecurityEventType = "critical_verdict"
	// EventCheckerFailure is logged when a checker errors and the chain continues without it.
	EventCheckerFailure SecurityEventType = "checker_failure"
	// EventParseFailure is logged when a statement cannot be parsed and
	// validation degrades to the textual checkers.
	EventParseFailure SecurityEventType = "parse_failure"
)

// SecurityEvent represents an auditable security event with all relevant
// context for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventID   uuid.UUID         `json:"event_id"`
	EventType SecurityEventType `json:"event_type"`
	Origin    string            `json:"origin,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// SQLInjectionDetails contains specifics of a detected SQL injection attempt.
type SQLInjectionDetails struct {
	ParamName   string `json:"param_name"`
	ParamValue  string `json:"param_value"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
}

// CriticalVerdictDetails contains specifics of a CRITICAL validation verdict.
type CriticalVerdictDetails struct {
	SQLSnippet string   `json:"sql_snippet"`
	RiskLevel  string   `json:"risk_level"`
	Checkers   []string `json:"checkers"`
}

// SecurityAuditor logs security events for SIEM consumption.
// Events are logged in structured JSON format with appropriate severity levels.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger
// namespace. The logger gets the "security_audit" namespace for easy
// filtering in SIEM systems. A nil logger disables output.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

func newEvent(eventType SecurityEventType, origin string, details any, severity string) SecurityEvent {
	return SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventID:   uuid.New(),
		EventType: eventType,
		Origin:    origin,
		Details:   details,
		Severity:  severity,
	}
}

// LogInjectionAttempt records a bound parameter that libinjection flagged.
// This is logged at ERROR level with "critical" severity for immediate
// alerting. ParamValue should be pre-truncated by the caller; the auditor
// logs what it is given.
//
// Example usage:
//
//	auditor.LogInjectionAttempt("UserMapper.search",
//	    audit.SQLInjectionDetails{
//	        ParamName:   "search",
//	        ParamValue:  "'; DROP TABLE users--",
//	        Fingerprint: "s&1c",
//	    },
//	)
func (a *SecurityAuditor) LogInjectionAttempt(origin string, details SQLInjectionDetails) {
	event := newEvent(EventSQLInjectionAttempt, origin, details, "critical")

	// Serialize event to JSON for SIEM ingestion.
	// Ignoring error as marshaling known types should never fail.
	eventJSON, _ := json.Marshal(event)

	a.logger.Error("SQL injection attempt detected",
		zap.String("event_json", string(eventJSON)),
		zap.String("event_id", event.EventID.String()),
		zap.String("origin", origin),
		zap.String("param_name", details.ParamName),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("severity", "critical"),
	)
}

// LogCriticalVerdict records a validation run that produced at least one
// CRITICAL violation. Logged at ERROR level for immediate alerting.
func (a *SecurityAuditor) LogCriticalVerdict(origin string, details CriticalVerdictDetails) {
	event := newEvent(EventCriticalVerdict, origin, details, "critical")

	eventJSON, _ := json.Marshal(event)

	a.logger.Error("Critical SQL risk detected",
		zap.String("event_json", string(eventJSON)),
		zap.String("event_id", event.EventID.String()),
		zap.String("origin", origin),
		zap.String("risk_level", details.RiskLevel),
		zap.Strings("checkers", details.Checkers),
		zap.String("severity", "critical"),
	)
}

// LogCheckerFailure records a checker that errored mid-run. The chain
// continues without it, so this is logged at WARN level: the statement was
// validated by the remaining checkers, not blocked.
func (a *SecurityAuditor) LogCheckerFailure(origin, checker, errorMessage string) {
	event := newEvent(EventCheckerFailure, origin, map[string]string{
		"checker": checker,
		"error":   errorMessage,
	}, "warning")

	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("Checker failed during validation",
		zap.String("event_json", string(eventJSON)),
		zap.String("event_id", event.EventID.String()),
		zap.String("origin", origin),
		zap.String("checker", checker),
		zap.String("error", errorMessage),
		zap.String("severity", "warning"),
	)
}

// LogParseFailure records a statement the parser rejected. Validation
// degrades to the textual checkers, so this is logged at WARN level.
func (a *SecurityAuditor) LogParseFailure(origin, sqlSnippet, errorMessage string) {
	event := newEvent(EventParseFailure, origin, map[string]string{
		"sql_snippet": sqlSnippet,
		"error":       errorMessage,
	}, "warning")

	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("SQL statement failed to parse",
		zap.String("event_json", string(eventJSON)),
		zap.String("event_id", event.EventID.String()),
		zap.String("origin", origin),
		zap.String("error", errorMessage),
		zap.String("severity", "warning"),
	)
}
