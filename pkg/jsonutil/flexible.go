// Package jsonutil decodes loosely typed JSON values captured at an API
// boundary into plain strings so other packages can scan them as text.
package jsonutil

import (
	"encoding/json"
	"strconv"
)

// FlexibleStringValue returns the string form of a raw JSON value. A JSON
// string decodes to its contents, numbers and booleans render as their
// literal text, and null or empty input returns the empty string. A value
// that does not decode as a scalar is returned verbatim.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n == float64(int64(n)) {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'g', -1, 64)
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}

	return string(raw)
}
