// Package sql builds the parameterized statements the engine runs. Values
// always travel as positional parameters; only names that pass ValidateName
// are interpolated, and always quoted.
package sql

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-typestore/pkg/apperrors"
)

// MaxNameLength is the longest type, field or index name accepted.
const MaxNameLength = 63

var nameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidateName checks a type, field or index name against the identifier allow-list.
func ValidateName(name string) error {
	if name == "" {
		return apperrors.Validation(apperrors.KeyEmptyName)
	}
	if len(name) > MaxNameLength || !nameRegex.MatchString(name) {
		return apperrors.Validation(apperrors.KeyInvalidName, name)
	}
	return nil
}

// Ident quotes an identifier.
func Ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// Builder accumulates SQL text and its positional parameters separately.
type Builder struct {
	buf  strings.Builder
	args []any
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Write appends raw SQL text.
func (b *Builder) Write(parts ...string) *Builder {
	for _, p := range parts {
		b.buf.WriteString(p)
	}
	return b
}

// Ident appends a quoted identifier.
func (b *Builder) Ident(name string) *Builder {
	b.buf.WriteString(Ident(name))
	return b
}

// Column appends a qualified column reference.
func (b *Builder) Column(table, column string) *Builder {
	return b.Ident(table).Write(".").Ident(column)
}

// Param appends a placeholder bound to v.
func (b *Builder) Param(v any) *Builder {
	b.buf.WriteString(b.Placeholder(v))
	return b
}

// Placeholder binds v and returns its placeholder without writing it.
func (b *Builder) Placeholder(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

// Join writes items separated by sep, calling write for each.
func (b *Builder) Join(n int, sep string, write func(i int)) *Builder {
	for i := 0; i < n; i++ {
		if i > 0 {
			b.buf.WriteString(sep)
		}
		write(i)
	}
	return b
}

// Fork returns a builder with no text that continues this builder's parameter
// numbering, so both texts can be combined into one statement.
func (b *Builder) Fork() *Builder {
	f := &Builder{args: make([]any, len(b.args))}
	copy(f.args, b.args)
	return f
}

// Len returns the length of the SQL text written so far.
func (b *Builder) Len() int {
	return b.buf.Len()
}

// Args returns the bound parameters in placeholder order.
func (b *Builder) Args() []any {
	return b.args
}

func (b *Builder) String() string {
	return b.buf.String()
}
