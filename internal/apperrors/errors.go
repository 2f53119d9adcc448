// Package apperrors defines the error kinds every data client operation reports.
package apperrors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound   Kind = "NotFound"
	KindConflict   Kind = "Conflict"
	KindValidation Kind = "Validation"
	KindTimeout    Kind = "Timeout"
	KindEngine     Kind = "EngineFailure"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrConflict   = errors.New("unique constraint violated")
	ErrValidation = errors.New("invalid arguments")
	ErrTimeout    = errors.New("transaction timed out")
	ErrEngine     = errors.New("engine failure")
)

var sentinels = map[Kind]error{
	KindNotFound:   ErrNotFound,
	KindConflict:   ErrConflict,
	KindValidation: ErrValidation,
	KindTimeout:    ErrTimeout,
	KindEngine:     ErrEngine,
}

// Error is a classified failure. Model and Op are empty when the failure is not
// tied to one operation (transaction bounds, for instance).
type Error struct {
	Kind    Kind
	Model   string
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = sentinels[e.Kind].Error()
	}
	prefix := string(e.Kind)
	if e.Model != "" {
		prefix = fmt.Sprintf("%s %s.%s", prefix, e.Model, e.Op)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, nil, format, args...)
}

func Conflict(err error, format string, args ...any) *Error {
	return newError(KindConflict, err, format, args...)
}

func Validation(format string, args ...any) *Error {
	return newError(KindValidation, nil, format, args...)
}

func Timeout(err error, format string, args ...any) *Error {
	return newError(KindTimeout, err, format, args...)
}

func Engine(err error, format string, args ...any) *Error {
	return newError(KindEngine, err, format, args...)
}

// WithOp stamps model and operation onto a classified error. Unclassified errors
// become EngineFailure.
func WithOp(err error, model, op string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		return &Error{Kind: KindEngine, Model: model, Op: op, Err: err}
	}
	if e.Model != "" {
		return err
	}
	out := *e
	out.Model, out.Op = model, op
	return &out
}

// KindOf returns the kind of a classified error, or EngineFailure for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindEngine
}

func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool   { return errors.Is(err, ErrConflict) }
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsTimeout(err error) bool    { return errors.Is(err, ErrTimeout) }
