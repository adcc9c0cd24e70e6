package sql

import (
	"errors"
	"strings"
)

// ErrMultipleStatements indicates the statement text contains more than one statement.
var ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")

// Normalize trims a statement and its trailing semicolon, and rejects text
// holding more than one statement.
func Normalize(statement string) (string, error) {
	statement = stripTrailingSemicolon(strings.TrimSpace(statement))
	if hasSemicolonOutsideStrings(statement) {
		return "", ErrMultipleStatements
	}
	return statement, nil
}

// hasSemicolonOutsideStrings reports a semicolon outside quoted literals and
// identifiers. A doubled quote leaves and re-enters the literal, which keeps
// the state right without special handling.
func hasSemicolonOutsideStrings(statement string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	state := stateNormal
	for _, char := range statement {
		switch state {
		case stateNormal:
			switch char {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			if char == '\'' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '"' {
				state = stateNormal
			}
		}
	}

	return false
}

func stripTrailingSemicolon(statement string) string {
	statement = strings.TrimRight(statement, " \t\n\r")
	if trimmed, ok := strings.CutSuffix(statement, ";"); ok {
		statement = strings.TrimRight(trimmed, " \t\n\r")
	}
	return statement
}
