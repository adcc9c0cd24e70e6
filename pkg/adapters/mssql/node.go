// Package mssql is a SQL Server backend that serves only the raw statement
// escape hatch. Every type and object operation is declined as not implemented.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"         // SQL Server driver
	_ "github.com/microsoft/go-mssqldb/azuread" // Azure AD support
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-typestore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-typestore/pkg/audit"
	"github.com/ekaya-inc/ekaya-typestore/pkg/logging"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
	"github.com/ekaya-inc/ekaya-typestore/pkg/node"
	tsql "github.com/ekaya-inc/ekaya-typestore/pkg/sql"
)

// Node runs caller statements on SQL Server. It holds no transaction: each
// statement commits on its own.
type Node struct {
	node.Unsupported

	db      *sql.DB
	auditor *audit.SecurityAuditor
	logger  *zap.Logger
}

var _ node.Node = (*Node)(nil)

// Open connects to SQL Server and verifies the connection.
func Open(ctx context.Context, cfg *Config, logger *zap.Logger) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	db, err := sql.Open(cfg.driverName(), cfg.connectionString())
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %w", cfg.AuthMethod, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connection test failed: %w", err)
	}
	return New(db, logger), nil
}

// New wraps an open SQL Server handle.
func New(db *sql.DB, logger *zap.Logger) *Node {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Node{db: db, auditor: audit.NewSecurityAuditor(logger), logger: logger.Named("mssql")}
}

// Close releases the connection pool.
func (n *Node) Close() error {
	return n.db.Close()
}

// Execute runs a statement and returns the number of affected rows.
// Placeholders are written $1, $2 as on PostgreSQL.
func (n *Node) Execute(ctx context.Context, statement string, params ...any) (int64, error) {
	query, args, err := n.prepare(ctx, "execute", statement, params)
	if err != nil {
		return 0, err
	}
	res, err := n.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperrors.FromBackend(fmt.Errorf("failed to execute statement: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected, nil
}

// Query runs a statement and returns its rows as tuples.
func (n *Node) Query(ctx context.Context, statement string, params ...any) ([]models.Tuple, error) {
	query, args, err := n.prepare(ctx, "query", statement, params)
	if err != nil {
		return nil, err
	}
	rows, err := n.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.FromBackend(fmt.Errorf("failed to execute query: %w", err))
	}
	defer rows.Close()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}

	var tuples []models.Tuple
	for rows.Next() {
		values := make([]any, len(columnTypes))
		valuePtrs := make([]any, len(columnTypes))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		tuple := models.NewTuple()
		for i, col := range columnTypes {
			tuple.Set(col.Name(), normalizeValue(col.DatabaseTypeName(), values[i]))
		}
		tuples = append(tuples, tuple)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return tuples, nil
}

func (n *Node) prepare(ctx context.Context, operation, statement string, params []any) (string, []any, error) {
	statement, err := tsql.Normalize(statement)
	if err != nil {
		return "", nil, apperrors.Validation(apperrors.KeyInvalidValue, "statement", err.Error())
	}
	if r := tsql.FirstInjection(params); r != nil {
		n.auditor.LogInjectionAttempt(ctx, audit.InjectionDetails{
			Operation:   operation,
			Target:      "mssql",
			Param:       strconv.Itoa(r.Position),
			ParamValue:  r.Value,
			Fingerprint: r.Fingerprint,
		})
		return "", nil, apperrors.Validation(apperrors.KeySuspiciousParameter, r.Position, r.Fingerprint)
	}

	query := convertParams(statement)
	args := make([]any, len(params))
	for i, p := range params {
		args[i] = sql.Named(fmt.Sprintf("p%d", i+1), p)
	}
	if ce := n.logger.Check(zap.DebugLevel, "Executing statement"); ce != nil {
		ce.Write(logging.Statement(query, params, nil)...)
	}
	return query, args, nil
}

var positionalParam = regexp.MustCompile(`\$(\d+)`)

// convertParams rewrites $n placeholders into SQL Server's @pn.
func convertParams(query string) string {
	return positionalParam.ReplaceAllString(query, "@p$1")
}

// normalizeValue maps driver values onto the normalized forms used by the
// rest of the module.
func normalizeValue(databaseType string, v any) any {
	switch v := v.(type) {
	case []byte:
		switch strings.ToUpper(databaseType) {
		case "CHAR", "NCHAR", "VARCHAR", "NVARCHAR", "TEXT", "NTEXT":
			return string(v)
		case "DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY":
			if d, err := decimal.NewFromString(string(v)); err == nil {
				return d
			}
		}
		return v
	case time.Time:
		return v.UTC()
	}
	return v
}
