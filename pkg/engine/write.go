package engine

import (
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-typestore/pkg/logging"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
	"github.com/ekaya-inc/ekaya-typestore/pkg/sql"
)

// writeSet collects the column assignments of one insert or update.
type writeSet struct {
	b       *sql.Builder
	columns []string
	exprs   []string
	// secret holds the parameter positions that must not be logged.
	secret map[int]bool
}

func newWriteSet() *writeSet {
	return &writeSet{b: sql.NewBuilder(), secret: make(map[int]bool)}
}

// expr assigns a raw SQL expression to column.
func (w *writeSet) expr(column, expr string) {
	w.columns = append(w.columns, sql.Ident(column))
	w.exprs = append(w.exprs, expr)
}

// bind assigns a parameter to column.
func (w *writeSet) bind(column string, v any) {
	w.expr(column, w.b.Placeholder(v))
}

// value assigns a normalized field value to column.
func (w *writeSet) value(column string, f models.TypeField, v any) {
	w.expr(column, valueExpr(w.b, f, v))
}

// hidden assigns a parameter that is redacted from statement logs.
func (w *writeSet) hidden(column string, v any) {
	w.secret[len(w.b.Args())] = true
	w.bind(column, v)
}

func (w *writeSet) assignments() string {
	parts := make([]string, len(w.columns))
	for i := range w.columns {
		parts[i] = w.columns[i] + " = " + w.exprs[i]
	}
	return strings.Join(parts, ", ")
}

func (e *Engine) logStatement(query string, args []any, secret map[int]bool) {
	if ce := e.logger.Check(zap.DebugLevel, "Executing statement"); ce != nil {
		ce.Write(logging.Statement(query, args, func(i int) bool { return secret[i] })...)
	}
}
