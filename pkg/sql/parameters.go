package sql

import (
	"regexp"

	"github.com/ekaya-inc/ekaya-typestore/pkg/apperrors"
)

// parameterRegex matches {{parameter_name}} placeholders in caller fragments.
var parameterRegex = regexp.MustCompile(`\{\{([a-zA-Z_]\w*)\}\}`)

// ExtractParameters returns the placeholder names of a fragment, deduplicated,
// in order of first appearance.
//
//	ExtractParameters("total > {{min}} AND total < {{max}} OR total = {{min}}")
//	// []string{"min", "max"}
func ExtractParameters(fragment string) []string {
	matches := parameterRegex.FindAllStringSubmatch(fragment, -1)
	seen := make(map[string]bool)
	var params []string

	for _, match := range matches {
		name := match[1]
		if !seen[name] {
			seen[name] = true
			params = append(params, name)
		}
	}

	return params
}

// FindParametersInStringLiterals returns placeholders written inside single
// quoted literals, where a positional parameter would be read as text.
func FindParametersInStringLiterals(fragment string) []string {
	var problems []string
	seen := make(map[string]bool)

	inString := false
	stringStart := 0
	for i := 0; i < len(fragment); i++ {
		if fragment[i] != '\'' {
			continue
		}
		if !inString {
			inString = true
			stringStart = i
			continue
		}
		if i+1 < len(fragment) && fragment[i+1] == '\'' {
			i++
			continue
		}
		for _, match := range parameterRegex.FindAllStringSubmatch(fragment[stringStart+1:i], -1) {
			if !seen[match[1]] {
				seen[match[1]] = true
				problems = append(problems, match[1])
			}
		}
		inString = false
	}

	return problems
}

// Fragment appends a caller-written SQL fragment, binding each {{name}}
// placeholder to values[name]. A name used twice reuses one placeholder.
// Every placeholder must have a value and every value must be used.
func (b *Builder) Fragment(fragment string, values map[string]any) error {
	if quoted := FindParametersInStringLiterals(fragment); len(quoted) > 0 {
		return apperrors.Validation(apperrors.KeyInvalidValue, "{{"+quoted[0]+"}}", "parameter inside string literal")
	}

	names := ExtractParameters(fragment)
	used := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := values[name]; !ok {
			return apperrors.Validation(apperrors.KeyInvalidValue, "{{"+name+"}}", "parameter has no value")
		}
		used[name] = true
	}
	for name := range values {
		if !used[name] {
			return apperrors.Validation(apperrors.KeyInvalidValue, name, "parameter not used in fragment")
		}
	}

	positions := make(map[string]string, len(names))
	b.Write(parameterRegex.ReplaceAllStringFunc(fragment, func(match string) string {
		name := parameterRegex.FindStringSubmatch(match)[1]
		if p, ok := positions[name]; ok {
			return p
		}
		p := b.Placeholder(values[name])
		positions[name] = p
		return p
	}))
	return nil
}
