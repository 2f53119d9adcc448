package database

import (
	"context"
	"errors"
	"strings"

	"eventmarket/internal/apperrors"

	"github.com/mattn/go-sqlite3"
)

// Action tells Classify which side of a foreign key the statement was on.
type Action int

const (
	ActionRead Action = iota
	ActionWrite
	ActionDelete
)

// Classify maps a driver error to the client error kinds. A foreign key failure
// while writing means the referenced row is missing; while deleting it means
// dependent rows still point at the target.
func Classify(err error, action Action) error {
	if err == nil {
		return nil
	}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.Timeout(err, "statement interrupted")
	}

	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return apperrors.Engine(err, "statement failed")
	}

	code := sqliteErr.ExtendedCode
	// ON DELETE RESTRICT is enforced by a trigger, so a restricted delete
	// reports SQLITE_CONSTRAINT_TRIGGER with the foreign key message.
	if code == sqlite3.ErrConstraintTrigger && strings.Contains(sqliteErr.Error(), "FOREIGN KEY constraint failed") {
		code = sqlite3.ErrConstraintForeignKey
	}

	switch code {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return apperrors.Conflict(err, "unique constraint failed on %s", constraintTarget(sqliteErr))
	case sqlite3.ErrConstraintForeignKey:
		if action == ActionDelete {
			return apperrors.Conflict(err, "record is still referenced by related records")
		}
		return &apperrors.Error{Kind: apperrors.KindValidation, Message: "related record does not exist", Err: err}
	case sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull:
		return &apperrors.Error{Kind: apperrors.KindValidation, Message: "value rejected by constraint", Err: err}
	}

	switch sqliteErr.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return apperrors.Timeout(err, "database is busy")
	case sqlite3.ErrInterrupt:
		return apperrors.Timeout(err, "statement interrupted")
	}
	return apperrors.Engine(err, "statement failed")
}

// constraintTarget extracts "table.column" names from messages such as
// "UNIQUE constraint failed: users.email".
func constraintTarget(err sqlite3.Error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}
