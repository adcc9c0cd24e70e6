package apperrors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinels, one per error kind. Concrete errors match the sentinel of their
// kind, so callers can use errors.Is(err, apperrors.ErrNotFound).
var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrValidation     = errors.New("validation failed")
	ErrConflict       = errors.New("conflict")
	ErrIntegrity      = errors.New("integrity violation")
	ErrNotImplemented = errors.New("not implemented")
	ErrBackend        = errors.New("backend error")
)

// Kind classifies an error for callers that need to branch on it.
type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindAlreadyExists  Kind = "already_exists"
	KindValidation     Kind = "validation"
	KindConflict       Kind = "conflict"
	KindIntegrity      Kind = "integrity"
	KindNotImplemented Kind = "not_implemented"
	KindBackend        Kind = "backend"
)

// Stable message keys. Front ends localize these; Args carry the positional values.
const (
	KeyTypeNotFound          = "type_not_found"
	KeyFieldNotFound         = "field_not_found"
	KeyIndexNotFound         = "index_not_found"
	KeyObjectNotFound        = "object_not_found"
	KeyActionNotFound        = "action_not_found"
	KeyTypeAlreadyExists     = "type_already_exists"
	KeyFieldAlreadyExists    = "field_already_exists"
	KeyIndexAlreadyExists    = "index_already_exists"
	KeyObjectAlreadyExists   = "object_already_exists"
	KeyEmptyField            = "empty_field"
	KeyNullField             = "null_field"
	KeyOutOfRange            = "out_of_range"
	KeyInvalidContentType    = "invalid_content_type"
	KeyInvalidValue          = "invalid_value"
	KeyDuplicateField        = "duplicate_field"
	KeyDuplicateIndex        = "duplicate_index"
	KeyEmptyIDList           = "empty_id_list"
	KeyEmptyName             = "empty_name"
	KeyInvalidName           = "invalid_name"
	KeyReservedName          = "reserved_name"
	KeyEmptyIndexFields      = "empty_index_fields"
	KeyFieldInIndex          = "field_in_index"
	KeyNullValuesExist       = "null_values_exist"
	KeyNotNullOnNonEmptyType = "not_null_field_on_non_empty_type"
	KeyInvalidFieldType      = "invalid_field_type"
	KeyOutdatedType          = "outdated_type"
	KeyOutdatedObject        = "outdated_object"
	KeyMissingReference      = "missing_reference"
	KeyUnexpectedRowCount    = "unexpected_row_count"
	KeyNotImplemented        = "not_implemented"
	KeyWeakPassword          = "weak_password"
	KeyPasswordMismatch      = "password_mismatch"
	KeyInvalidPassword       = "invalid_password"
	KeySuspiciousParameter   = "suspicious_parameter"
	KeyNoSession             = "no_session"
	KeyBackendError          = "backend_error"
)

var sentinels = map[Kind]error{
	KindNotFound:       ErrNotFound,
	KindAlreadyExists:  ErrAlreadyExists,
	KindValidation:     ErrValidation,
	KindConflict:       ErrConflict,
	KindIntegrity:      ErrIntegrity,
	KindNotImplemented: ErrNotImplemented,
	KindBackend:        ErrBackend,
}

// Error is a taxonomy error carrying a stable message key plus positional arguments.
type Error struct {
	Kind Kind
	Key  string
	Args []any

	cause error
}

// Is reports whether target is the sentinel of e's kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) Error() string {
	if len(e.Args) == 0 {
		return e.Key
	}
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = fmt.Sprint(a)
	}
	return e.Key + ": " + strings.Join(parts, ", ")
}

// New creates an error of the given kind with a stack trace attached.
func New(kind Kind, key string, args ...any) error {
	return errors.WithStackDepth(&Error{Kind: kind, Key: key, Args: args}, 1)
}

func NotFound(key string, args ...any) error {
	return New(KindNotFound, key, args...)
}

func AlreadyExists(key string, args ...any) error {
	return New(KindAlreadyExists, key, args...)
}

func Validation(key string, args ...any) error {
	return New(KindValidation, key, args...)
}

func Conflict(key string, args ...any) error {
	return New(KindConflict, key, args...)
}

func Integrity(key string, args ...any) error {
	return New(KindIntegrity, key, args...)
}

func NotImplemented(operation string) error {
	return New(KindNotImplemented, KeyNotImplemented, operation)
}

// KindOf returns the kind of err, or "" when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for kind, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return ""
}

// KeyOf returns the message key and arguments of err, if it is a taxonomy error.
func KeyOf(err error) (string, []any, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Key, e.Args, true
	}
	return "", nil, false
}

// FromBackend translates a driver-level error into the taxonomy where the
// condition is recognizable. Errors that already carry a kind pass through.
func FromBackend(err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != "" {
		return err
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return errors.WithStack(&Error{Kind: KindBackend, Key: KeyBackendError, Args: []any{err.Error()}, cause: err})
	}
	switch pgErr.Code {
	case "42P01":
		return NotFound(KeyTypeNotFound, relationName(pgErr))
	case "42703":
		return NotFound(KeyFieldNotFound, pgErr.ColumnName, pgErr.Message)
	case "23505":
		return AlreadyExists(KeyObjectAlreadyExists, pgErr.TableName, pgErr.Detail)
	case "23503":
		return Integrity(KeyMissingReference, pgErr.TableName, pgErr.ConstraintName, pgErr.Detail)
	case "23502":
		return Validation(KeyNullField, pgErr.TableName, pgErr.ColumnName)
	}
	return errors.WithStack(&Error{Kind: KindBackend, Key: KeyBackendError, Args: []any{pgErr.Message}, cause: err})
}

func relationName(pgErr *pgconn.PgError) string {
	if pgErr.TableName != "" {
		return pgErr.TableName
	}
	// relation "x" does not exist
	msg := pgErr.Message
	if i := strings.IndexByte(msg, '"'); i >= 0 {
		if j := strings.IndexByte(msg[i+1:], '"'); j >= 0 {
			return msg[i+1 : i+1+j]
		}
	}
	return msg
}
