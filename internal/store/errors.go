package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/franz/travel-sos/internal/util"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ConstraintKind names the rule a rejected write violated
type ConstraintKind string

const (
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintNotNull    ConstraintKind = "not_null"
	ConstraintCheck      ConstraintKind = "check"
	ConstraintOther      ConstraintKind = "other"
)

// ConstraintError is returned when a write violates a uniqueness or
// referential rule. It matches util.ErrConstraint with errors.Is.
type ConstraintError struct {
	Op   string
	Kind ConstraintKind
	Err  error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s: %s constraint violated: %v", e.Op, e.Kind, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, util.ErrConstraint) true
func (e *ConstraintError) Is(target error) bool {
	return target == util.ErrConstraint
}

// classify turns driver constraint failures into *ConstraintError and wraps
// everything else with op context.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if kind, ok := constraintKind(err); ok {
		return &ConstraintError{Op: op, Kind: kind, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func constraintKind(err error) (ConstraintKind, bool) {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		switch code {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return ConstraintUnique, true
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return ConstraintForeignKey, true
		case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return ConstraintNotNull, true
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return ConstraintCheck, true
		}
		if code&0xff == sqlite3.SQLITE_CONSTRAINT {
			return kindFromMessage(sqliteErr.Error()), true
		}
		return "", false
	}

	msg := err.Error()
	if strings.Contains(msg, "constraint failed") {
		return kindFromMessage(msg), true
	}
	return "", false
}

func kindFromMessage(msg string) ConstraintKind {
	switch {
	case strings.Contains(msg, "UNIQUE"), strings.Contains(msg, "PRIMARY KEY"):
		return ConstraintUnique
	case strings.Contains(msg, "FOREIGN KEY"):
		return ConstraintForeignKey
	case strings.Contains(msg, "NOT NULL"):
		return ConstraintNotNull
	case strings.Contains(msg, "CHECK"):
		return ConstraintCheck
	}
	return ConstraintOther
}
