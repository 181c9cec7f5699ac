package sql

import (
	"encoding/json"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/ekaya-inc/sqlguard/pkg/jsonutil"
)

// InjectionCheckResult contains the result of an injection check on a parameter value.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	ParamName   string // Name of the parameter that failed the check
	ParamValue  any    // The value that was checked
}

// CheckParameterForInjection uses libinjection to detect SQL injection patterns
// in a parameter value.
//
// String values are scanned directly. Raw JSON values captured at an API
// boundary are decoded to text first, so a JSON-encoded string is scanned in
// its decoded form. Other types cannot carry injection patterns and return
// nil without a scan.
//
// Returns nil if no injection is detected, or an InjectionCheckResult with
// details about the detected pattern.
//
// Example:
//
//	// Safe value - no injection
//	result := CheckParameterForInjection("customer_id", "12345")
//	// result == nil
//
//	// Injection attempt detected
//	result := CheckParameterForInjection("search", "'; DROP TABLE users--")
//	// result.IsSQLi == true
//	// result.Fingerprint == "s&1c" (or similar)
//	// result.ParamName == "search"
func CheckParameterForInjection(paramName string, value any) *InjectionCheckResult {
	var strValue string
	switch v := value.(type) {
	case string:
		strValue = v
	case json.RawMessage:
		strValue = jsonutil.FlexibleStringValue(v)
	default:
		return nil
	}
	if strValue == "" {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(strValue)
	if isSQLi {
		return &InjectionCheckResult{
			IsSQLi:      true,
			Fingerprint: string(fingerprint),
			ParamName:   paramName,
			ParamValue:  value,
		}
	}

	return nil
}
