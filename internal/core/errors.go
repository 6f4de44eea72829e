package core

import (
	"errors"
	"fmt"
)

// The three error kinds every operation can surface. Validation failures are
// client-correctable input problems, not-found failures reference a missing
// entity id, and integrity failures are constraint violations reported by the
// store (duplicate unique values, dangling foreign keys).

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// Invalidf builds a ValidationError with a formatted message.
func Invalidf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// NotFound builds a NotFoundError for the given entity kind and id.
func NotFound(entity string, id int64) error {
	return &NotFoundError{Entity: entity, ID: id}
}

type IntegrityError struct {
	msg string
	err error
}

func (e *IntegrityError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *IntegrityError) Unwrap() error { return e.err }

// Integrity wraps a store-level constraint violation with context.
func Integrity(msg string, err error) error {
	return &IntegrityError{msg: msg, err: err}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

func IsIntegrity(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}
