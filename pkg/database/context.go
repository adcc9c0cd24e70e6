package database

import (
	"context"
	"fmt"
)

type contextKey string

const (
	// SessionKey is the context key for storing the session.
	SessionKey contextKey = "typestoreSession"
)

// GetSession retrieves the session from context.
// Returns nil and false if not present.
func GetSession(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(SessionKey).(*Session)
	return s, ok && s != nil
}

// SetSession stores the session in context.
func SetSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, SessionKey, s)
}

// WithSession opens a session of mode, runs fn with the session in its context
// and commits when fn succeeds. The session is closed on every path.
func (db *DB) WithSession(ctx context.Context, mode Mode, fn func(ctx context.Context) error) error {
	s, err := db.Open(ctx, mode)
	if err != nil {
		return err
	}
	defer s.Close(context.WithoutCancel(ctx))

	if err := fn(SetSession(ctx, s)); err != nil {
		return err
	}
	if err := s.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}
