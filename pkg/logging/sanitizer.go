package logging

import (
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-typestore/pkg/jsonutil"
)

const (
	// MaxQueryLogLength is the maximum length of a query to log
	MaxQueryLogLength = 200
	// MaxParamLogLength is the maximum length of one logged parameter
	MaxParamLogLength = 64
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// user:pass@host
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`)

	// argon2 encoded hashes
	hashPattern = regexp.MustCompile(`\$argon2id\$[^\s'"]+`)
)

// SanitizeConnectionString removes credentials from connection strings.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)

	return sanitized
}

// SanitizeError sanitizes error messages that might contain credentials or
// password hashes echoed back by the database.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	sanitized = hashPattern.ReplaceAllString(sanitized, RedactedText)

	return sanitized
}

// SanitizeQuery truncates a SQL statement for logging.
func SanitizeQuery(query string) string {
	if query == "" {
		return ""
	}

	sanitized := TruncateString(query, MaxQueryLogLength)
	sanitized = passwordPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = hashPattern.ReplaceAllString(sanitized, RedactedText)

	return sanitized
}

// SanitizeParams renders statement parameters for logging. Binary values are
// reduced to their size; parameters flagged by sensitive are redacted.
func SanitizeParams(params []any, sensitive func(i int) bool) []string {
	out := make([]string, len(params))
	for i, p := range params {
		if sensitive != nil && sensitive(i) {
			out[i] = RedactedText
			continue
		}
		switch v := p.(type) {
		case nil:
			out[i] = "NULL"
		case []byte:
			out[i] = fmt.Sprintf("<%d bytes>", len(v))
		default:
			s, ok := jsonutil.FlexibleString(v)
			if !ok {
				s = fmt.Sprintf("%v", v)
			}
			out[i] = TruncateString(hashPattern.ReplaceAllString(s, RedactedText), MaxParamLogLength)
		}
	}
	return out
}

// Statement returns zap fields describing a statement and its parameters.
func Statement(query string, params []any, sensitive func(i int) bool) []zap.Field {
	return []zap.Field{
		zap.String("sql", SanitizeQuery(query)),
		zap.Strings("params", SanitizeParams(params, sensitive)),
	}
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
