package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// Code categorizes store errors.
type Code string

const (
	// CodeNotFound indicates no row exists for the requested key.
	CodeNotFound Code = "NOT_FOUND"

	// CodeUnavailable indicates the store is not open (never initialized
	// or already closed).
	CodeUnavailable Code = "UNAVAILABLE"

	// CodeConstraint indicates a constraint violation reported by SQLite.
	CodeConstraint Code = "CONSTRAINT"

	// CodeStatement indicates any other statement failure.
	CodeStatement Code = "STATEMENT"

	// CodeDecode indicates a stored value could not be turned back into a
	// field value.
	CodeDecode Code = "DECODE"

	// CodeSchema indicates a schema operation failed.
	CodeSchema Code = "SCHEMA"

	// CodeBusy indicates the database was busy or locked. Transient.
	CodeBusy Code = "BUSY"

	// CodeRetriesExhausted indicates a transient failure persisted through
	// every retry attempt.
	CodeRetriesExhausted Code = "RETRIES_EXHAUSTED"
)

// Error is a store failure with structured context.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Op names the failed operation ("insert", "get", "migrate", ...).
	Op string

	// Entity is the affected entity type, if any.
	Entity string

	// Key is the affected primary key, or 0.
	Key int64

	// Err is the underlying cause.
	Err error
}

// Sentinels for errors.Is. They match any *Error of the same category.
var (
	ErrNotFound    = &Error{Code: CodeNotFound}
	ErrUnavailable = &Error{Code: CodeUnavailable}
	ErrConstraint  = &Error{Code: CodeConstraint}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	switch {
	case e.Entity != "" && e.Key != 0:
		msg += fmt.Sprintf(" (entity=%s, key=%d)", e.Entity, e.Key)
	case e.Entity != "":
		msg += fmt.Sprintf(" (entity=%s)", e.Entity)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the package sentinels by category.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Code == CodeNotFound
	case ErrUnavailable:
		return e.Code == CodeUnavailable || e.Code == CodeRetriesExhausted
	case ErrConstraint:
		return e.Code == CodeConstraint
	}
	return false
}

// NewError builds an *Error. A nil err is allowed.
func NewError(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// NotFound reports a missing row.
func NotFound(op, entityType string, key int64) *Error {
	return &Error{Code: CodeNotFound, Op: op, Entity: entityType, Key: key}
}

// Unavailable reports an operation attempted while the store is closed.
func Unavailable(op string) *Error {
	return &Error{Code: CodeUnavailable, Op: op, Err: errors.New("store is not open")}
}

// WithEntity returns a copy of err annotated with the entity type and key
// when err is an *Error that does not carry them yet. Other errors are
// returned unchanged.
func WithEntity(err error, entityType string, key int64) error {
	var se *Error
	if !errors.As(err, &se) {
		return err
	}
	annotated := *se
	if annotated.Entity == "" {
		annotated.Entity = entityType
	}
	if annotated.Key == 0 {
		annotated.Key = key
	}
	return &annotated
}

// CodeOf returns the category of err. Errors that are not *Error are
// classified from the driver error they wrap.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return classify(err)
}

// IsNotFound reports whether err is a missing-row error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnavailable reports whether err means the store cannot serve requests.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsConstraint reports whether err is a constraint violation.
func IsConstraint(err error) bool {
	return CodeOf(err) == CodeConstraint
}

// IsTransient reports whether retrying err may succeed.
func IsTransient(err error) bool {
	return CodeOf(err) == CodeBusy
}

// wrapDriver converts a driver failure into an *Error.
func wrapDriver(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Code: classify(err), Op: op, Err: err}
}

// classify maps driver errors from either supported driver onto a Code.
func classify(err error) Code {
	if errors.Is(err, sql.ErrConnDone) {
		return CodeUnavailable
	}

	var mattnErr sqlite3.Error
	if errors.As(err, &mattnErr) {
		switch mattnErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return CodeBusy
		case sqlite3.ErrConstraint:
			return CodeConstraint
		}
		return CodeStatement
	}

	var moderncErr *sqlite.Error
	if errors.As(err, &moderncErr) {
		switch moderncErr.Code() & 0xff {
		case sqlitelib.SQLITE_BUSY, sqlitelib.SQLITE_LOCKED:
			return CodeBusy
		case sqlitelib.SQLITE_CONSTRAINT:
			return CodeConstraint
		}
		return CodeStatement
	}

	return CodeStatement
}
