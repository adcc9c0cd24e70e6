package engine

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ekaya-inc/ekaya-typestore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-typestore/pkg/audit"
	"github.com/ekaya-inc/ekaya-typestore/pkg/database"
	"github.com/ekaya-inc/ekaya-typestore/pkg/kinds"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
	"github.com/ekaya-inc/ekaya-typestore/pkg/sql"
)

var ddlPattern = regexp.MustCompile(`(?i)^\s*(CREATE|ALTER|DROP|COMMENT|GRANT|REVOKE|TRUNCATE)\b`)

// Execute runs a caller statement in the session's transaction and returns
// the number of affected rows. A failing statement leaves the transaction usable.
func (e *Engine) Execute(ctx context.Context, statement string, params ...any) (affected int64, err error) {
	defer track("execute", &err)()
	s, err := session(ctx)
	if err != nil {
		return 0, err
	}
	statement, err = sql.Normalize(statement)
	if err != nil {
		return 0, apperrors.Validation(apperrors.KeyInvalidValue, "statement", err.Error())
	}
	if err := e.checkParameters(ctx, "execute", params); err != nil {
		return 0, err
	}
	if ddlPattern.MatchString(statement) {
		s.MarkSchemaChanged()
	}

	e.logStatement(statement, params, nil)
	err = s.Savepoint(ctx, func(ctx context.Context) error {
		tag, err := s.Tx.Exec(ctx, statement, params...)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to execute statement: %w", apperrors.FromBackend(err))
	}
	return affected, nil
}

// Query runs a caller query in the session's transaction and returns its rows
// as tuples of normalized values.
func (e *Engine) Query(ctx context.Context, statement string, params ...any) (tuples []models.Tuple, err error) {
	defer track("query", &err)()
	s, err := session(ctx)
	if err != nil {
		return nil, err
	}
	statement, err = sql.Normalize(statement)
	if err != nil {
		return nil, apperrors.Validation(apperrors.KeyInvalidValue, "statement", err.Error())
	}
	if err := e.checkParameters(ctx, "query", params); err != nil {
		return nil, err
	}
	return e.queryTuples(ctx, s, statement, params)
}

// checkParameters rejects and audits the first parameter libinjection flags.
func (e *Engine) checkParameters(ctx context.Context, operation string, params []any) error {
	r := sql.FirstInjection(params)
	if r == nil {
		return nil
	}
	e.auditor.LogInjectionAttempt(ctx, audit.InjectionDetails{
		Operation:   operation,
		Param:       strconv.Itoa(r.Position),
		ParamValue:  r.Value,
		Fingerprint: r.Fingerprint,
	})
	return apperrors.Validation(apperrors.KeySuspiciousParameter, r.Position, r.Fingerprint)
}

func (e *Engine) queryTuples(ctx context.Context, s *database.Session, query string, args []any) ([]models.Tuple, error) {
	e.logStatement(query, args, nil)
	tuples := []models.Tuple{}
	err := s.Savepoint(ctx, func(ctx context.Context) error {
		rows, err := s.Tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		fields := rows.FieldDescriptions()
		for rows.Next() {
			values, err := rows.Values()
			if err != nil {
				return err
			}
			t := models.NewTuple()
			for i, fd := range fields {
				t.Set(fd.Name, normalizeDriver(values[i]))
			}
			tuples = append(tuples, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", apperrors.FromBackend(err))
	}
	return tuples, nil
}

// normalizeDriver maps driver values of an untyped projection to the same
// normalized values typed projections produce.
func normalizeDriver(v any) any {
	var name string
	switch v := v.(type) {
	case pgtype.Numeric:
		name = kinds.Numeric
	case pgtype.Time:
		name = kinds.Time
	case [16]byte:
		name = kinds.UUID
	case netip.Prefix:
		name = kinds.Inet
	case time.Time:
		return v.UTC()
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalizeDriver(item)
		}
		return out
	default:
		return v
	}
	n, err := kindOf(name).FromDriver(v)
	if err != nil {
		return v
	}
	return n
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
