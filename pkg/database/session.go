package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-typestore/pkg/metacache"
)

// Session owns one pooled connection and its ambient transaction for the
// session's lifetime. Commit and Rollback end the current transaction and
// open the next one; Close discards uncommitted work and releases the connection.
type Session struct {
	Conn  *pgxpool.Conn
	Tx    pgx.Tx
	Mode  Mode
	Cache *metacache.Handle
	// FetchSize is the number of rows a streaming cursor fetches per round trip.
	FetchSize int

	importing bool
	deferred  []string
	cursors   int
	logger    *zap.Logger
}

// Open acquires a connection from the pool of mode and begins a transaction.
// The returned Session MUST be closed with defer session.Close(ctx).
func (db *DB) Open(ctx context.Context, mode Mode) (*Session, error) {
	conn, err := db.Pool(mode).Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire %s connection: %w", mode, err)
	}

	s := &Session{
		Conn:      conn,
		Mode:      mode,
		Cache:     db.cache.Session(ctx),
		FetchSize: db.fetchSize,
		logger:    db.logger,
	}
	if err := s.begin(ctx); err != nil {
		conn.Release()
		return nil, err
	}
	return s, nil
}

func (s *Session) begin(ctx context.Context) error {
	opts := pgx.TxOptions{}
	if s.Mode == ReadOnly {
		opts.AccessMode = pgx.ReadOnly
	}
	tx, err := s.Conn.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.Tx = tx
	return nil
}

// IsAdmin reports whether the session runs with administrative rights.
func (s *Session) IsAdmin() bool {
	return s.Mode == Admin
}

// MarkSchemaChanged disables the metadata cache until the session commits.
func (s *Session) MarkSchemaChanged() {
	if s.Cache.Enabled() {
		s.logger.Debug("Schema change in session, bypassing metadata cache")
	}
	s.Cache.Disable()
}

// Savepoint runs fn inside a savepoint. An error from fn rolls back to the
// savepoint and leaves the enclosing transaction usable. Statements deferred
// by fn are dropped with it.
func (s *Session) Savepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	sp, err := s.Tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}
	deferred := len(s.deferred)
	if err := fn(ctx); err != nil {
		s.deferred = s.deferred[:deferred]
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			s.logger.Error("Failed to roll back to savepoint", zap.Error(rbErr))
			return errors.Join(err, rbErr)
		}
		return err
	}
	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

// BeginImport switches the session into bulk import mode: single-statement
// existence checks are skipped and foreign keys are checked at the end of the
// transaction. Statements passed to Defer run when the import ends.
func (s *Session) BeginImport(ctx context.Context) error {
	if _, err := s.Tx.Exec(ctx, "SET CONSTRAINTS ALL DEFERRED"); err != nil {
		return fmt.Errorf("failed to defer constraints: %w", err)
	}
	s.importing = true
	s.deferred = nil
	return nil
}

// Importing reports whether a bulk import is in progress.
func (s *Session) Importing() bool {
	return s.importing
}

// Defer queues a statement until EndImport.
func (s *Session) Defer(statement string) {
	s.deferred = append(s.deferred, statement)
}

// EndImport runs the deferred statements and makes constraints immediate
// again, which checks every reference written during the import.
func (s *Session) EndImport(ctx context.Context) error {
	s.importing = false
	deferred := s.deferred
	s.deferred = nil
	for _, stmt := range deferred {
		if _, err := s.Tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run deferred statement: %w", err)
		}
	}
	if _, err := s.Tx.Exec(ctx, "SET CONSTRAINTS ALL IMMEDIATE"); err != nil {
		return fmt.Errorf("failed to restore immediate constraints: %w", err)
	}
	return nil
}

// AbortImport leaves import mode without running deferred statements.
func (s *Session) AbortImport() {
	s.importing = false
	s.deferred = nil
}

// NextCursorName returns a cursor name unique within the session.
func (s *Session) NextCursorName() string {
	s.cursors++
	return fmt.Sprintf("typestore_cursor_%d", s.cursors)
}

// Commit commits the current transaction and begins the next one. A session
// that changed the schema clears the shared metadata cache.
func (s *Session) Commit(ctx context.Context) error {
	if err := s.Tx.Commit(ctx); err != nil {
		s.Cache.Rollback()
		if beginErr := s.begin(ctx); beginErr != nil {
			return errors.Join(fmt.Errorf("failed to commit: %w", err), beginErr)
		}
		return fmt.Errorf("failed to commit: %w", err)
	}
	if err := s.Cache.Commit(ctx); err != nil {
		s.logger.Warn("Failed to publish schema generation", zap.Error(err))
	}
	return s.begin(ctx)
}

// Rollback discards the current transaction and begins the next one.
func (s *Session) Rollback(ctx context.Context) error {
	s.AbortImport()
	if err := s.Tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to roll back: %w", err)
	}
	s.Cache.Rollback()
	return s.begin(ctx)
}

// Close rolls back uncommitted work and releases the connection to the pool.
func (s *Session) Close(ctx context.Context) {
	if s.Conn == nil {
		return
	}
	if s.Tx != nil {
		if err := s.Tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Warn("Failed to roll back on close", zap.Error(err))
		}
		s.Cache.Rollback()
	}
	s.Conn.Release()
	s.Conn = nil
	s.Tx = nil
}
