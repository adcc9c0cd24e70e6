package engine

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-typestore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-typestore/pkg/database"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
	"github.com/ekaya-inc/ekaya-typestore/pkg/sql"
)

// cursorStream reads objects through a server-side cursor, FetchSize rows
// per round trip. It must be closed to release the cursor.
type cursorStream struct {
	ctx      context.Context
	s        *database.Session
	typeName string
	name     string
	columns  []sql.Column
	logger   *zap.Logger

	buf    []*models.Object
	cur    *models.Object
	done   bool
	closed bool
	err    error
}

var _ models.ObjectStream = (*cursorStream)(nil)

// SelectStream returns every object matching q, in order, as a lazy stream.
// Pagination applies only when q sets an explicit limit.
func (e *Engine) SelectStream(ctx context.Context, typeName string, q models.Query) (stream models.ObjectStream, err error) {
	defer track("select_stream", &err)()
	s, err := session(ctx)
	if err != nil {
		return nil, err
	}
	return e.openStream(ctx, s, typeName, q, nil)
}

func (e *Engine) openStream(ctx context.Context, s *database.Session, typeName string, q models.Query, ids []string) (models.ObjectStream, error) {
	sel, ts, err := e.prepare(ctx, s, typeName, q, ids, "", nil)
	if err != nil {
		return nil, err
	}
	if sel.Empty() {
		return models.NewSliceObjectStream(), nil
	}

	offset, limit := 0, models.NoLimit
	if q.Limit != nil && *q.Limit != models.NoLimit {
		offset, limit = max(q.Offset, 0), sql.ClampLimit(*q.Limit, ts.Limit)
	}
	query, args, err := sel.Page(offset, limit)
	if err != nil {
		return nil, err
	}

	name := s.NextCursorName()
	declare := "DECLARE " + name + " NO SCROLL CURSOR FOR " + query
	e.logStatement(declare, args, nil)
	if _, err := s.Tx.Exec(ctx, declare, args...); err != nil {
		return nil, fmt.Errorf("failed to open cursor on %s: %w", typeName, apperrors.FromBackend(err))
	}
	return &cursorStream{
		ctx:      ctx,
		s:        s,
		typeName: typeName,
		name:     name,
		columns:  sel.Columns(),
		logger:   e.logger,
	}, nil
}

func (c *cursorStream) Next() bool {
	if c.err != nil || c.closed {
		return false
	}
	if len(c.buf) == 0 {
		if c.done {
			c.cur = nil
			return false
		}
		if err := c.fetch(); err != nil {
			c.err = err
			return false
		}
		if len(c.buf) == 0 {
			c.cur = nil
			return false
		}
	}
	c.cur, c.buf = c.buf[0], c.buf[1:]
	return true
}

func (c *cursorStream) fetch() error {
	size := c.s.FetchSize
	if size < 1 {
		size = 1
	}
	rows, err := c.s.Tx.Query(c.ctx, "FETCH FORWARD "+strconv.Itoa(size)+" FROM "+c.name)
	if err != nil {
		return fmt.Errorf("failed to fetch from %s: %w", c.typeName, apperrors.FromBackend(err))
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return fmt.Errorf("failed to read %s row: %w", c.typeName, apperrors.FromBackend(err))
		}
		obj, err := decodeObject(c.typeName, c.columns, values)
		if err != nil {
			return err
		}
		c.buf = append(c.buf, obj)
		n++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to fetch from %s: %w", c.typeName, apperrors.FromBackend(err))
	}
	if n < size {
		c.done = true
	}
	return nil
}

func (c *cursorStream) Object() *models.Object {
	return c.cur
}

func (c *cursorStream) Err() error {
	return c.err
}

// Close releases the cursor. It is safe to call more than once.
func (c *cursorStream) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.buf, c.cur = nil, nil
	if _, err := c.s.Tx.Exec(c.ctx, "CLOSE "+c.name); err != nil {
		c.logger.Warn("Failed to close cursor", zap.String("cursor", c.name), zap.Error(err))
		return fmt.Errorf("failed to close cursor on %s: %w", c.typeName, apperrors.FromBackend(err))
	}
	return nil
}
