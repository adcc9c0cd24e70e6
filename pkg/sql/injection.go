package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a parameter that looks like SQL injection.
type InjectionCheckResult struct {
	Position    int    // 1-based placeholder position
	Fingerprint string // libinjection fingerprint of the detected pattern
	Value       string
}

// CheckParameterForInjection runs libinjection over a string parameter.
// Non-string values cannot carry injection and return nil.
func CheckParameterForInjection(position int, value any) *InjectionCheckResult {
	strValue, ok := value.(string)
	if !ok {
		return nil
	}

	if isSQLi, fingerprint := libinjection.IsSQLi(strValue); isSQLi {
		return &InjectionCheckResult{
			Position:    position,
			Fingerprint: string(fingerprint),
			Value:       strValue,
		}
	}

	return nil
}

// FirstInjection returns the first positional parameter that looks like SQL
// injection, or nil.
func FirstInjection(params []any) *InjectionCheckResult {
	for i, value := range params {
		if result := CheckParameterForInjection(i+1, value); result != nil {
			return result
		}
	}
	return nil
}
