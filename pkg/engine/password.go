package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-typestore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-typestore/pkg/crypto"
	"github.com/ekaya-inc/ekaya-typestore/pkg/database"
	"github.com/ekaya-inc/ekaya-typestore/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-typestore/pkg/kinds"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
	"github.com/ekaya-inc/ekaya-typestore/pkg/sql"
)

func isPassword(f models.TypeField) bool {
	return f.Type == kinds.Password
}

// passwordValue applies the password rules to a value written to a password
// field and returns the hash to store, nil to clear the field. current is the
// stored hash, nil when the field is empty.
//
// The current password must be given unless the session is administrative or
// nothing is stored yet. A nil value clears the field and follows the same
// rule. The new password must match its confirmation and be
// strong enough. Imports carry hashes, which are stored as they are.
func (e *Engine) passwordValue(s *database.Session, typeName, field string, v any, current *string) (*string, error) {
	var pv models.PasswordValue
	switch v := v.(type) {
	case nil:
	case string:
		if s.Importing() && crypto.IsHash(v) {
			return &v, nil
		}
		pv = models.PasswordValue{New: v, Confirm: v}
	case models.PasswordValue:
		pv = v
	case *models.PasswordValue:
		if v != nil {
			pv = *v
		}
	case map[string]any:
		pv.Current, _ = jsonutil.FlexibleString(v["current"])
		pv.New, _ = jsonutil.FlexibleString(v["new"])
		pv.Confirm, _ = jsonutil.FlexibleString(v["confirm"])
	default:
		return nil, apperrors.Validation(apperrors.KeyInvalidValue, typeName, field, fmt.Sprintf("%T", v))
	}

	if current != nil && *current != "" && !s.IsAdmin() {
		ok, err := e.hasher.Verify(pv.Current, *current)
		if err != nil || !ok {
			return nil, apperrors.Validation(apperrors.KeyInvalidPassword, typeName, field)
		}
	}
	if pv.New != pv.Confirm {
		return nil, apperrors.Validation(apperrors.KeyPasswordMismatch, typeName, field)
	}
	if pv.New == "" {
		return nil, nil
	}
	if !e.hasher.StrongEnough(pv.New) {
		return nil, apperrors.Validation(apperrors.KeyWeakPassword, typeName, field)
	}
	hash, err := e.hasher.Hash(pv.New)
	if err != nil {
		return nil, fmt.Errorf("failed to hash %s.%s: %w", typeName, field, err)
	}
	return &hash, nil
}

// storedPassword reads the hash of a password field, nil when empty.
func (e *Engine) storedPassword(ctx context.Context, s *database.Session, typeName, id, field string) (*string, error) {
	var hash *string
	query := "SELECT " + sql.Ident(field) + " FROM " + sql.Ident(typeName) + ` WHERE "id" = $1`
	err := s.Tx.QueryRow(ctx, query, id).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound(apperrors.KeyObjectNotFound, typeName, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s.%s: %w", typeName, field, apperrors.FromBackend(err))
	}
	return hash, nil
}

func (e *Engine) passwordField(ctx context.Context, s *database.Session, typeName, field string) error {
	t, err := e.catalog.Type(ctx, s, typeName)
	if err != nil {
		return err
	}
	f, ok := t.Field(field)
	if !ok {
		return apperrors.NotFound(apperrors.KeyFieldNotFound, typeName, field)
	}
	if !isPassword(f) {
		return apperrors.Validation(apperrors.KeyInvalidFieldType, typeName, field)
	}
	return nil
}

// UpdatePassword changes a password field following the password rules.
func (e *Engine) UpdatePassword(ctx context.Context, typeName, id, field string, pv models.PasswordValue) (update time.Time, err error) {
	defer track("update_password", &err)()
	s, err := session(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if err := e.passwordField(ctx, s, typeName, field); err != nil {
		return time.Time{}, err
	}
	return e.update(ctx, s, models.NewObject(typeName, id).Set(field, pv), nil)
}

// PasswordMatch reports whether password is the one stored in field. It is
// the only read access to a password field.
func (e *Engine) PasswordMatch(ctx context.Context, typeName, id, field, password string) (match bool, err error) {
	defer track("password_match", &err)()
	s, err := session(ctx)
	if err != nil {
		return false, err
	}
	if err := e.passwordField(ctx, s, typeName, field); err != nil {
		return false, err
	}
	hash, err := e.storedPassword(ctx, s, typeName, id, field)
	if err != nil {
		return false, err
	}
	if hash == nil {
		return false, nil
	}
	match, err = e.hasher.Verify(password, *hash)
	if errors.Is(err, crypto.ErrMalformedHash) || errors.Is(err, crypto.ErrIncompatibleVersion) {
		return false, nil
	}
	return match, err
}
