package credential

import (
	"errors"
	"fmt"

	"github.com/benaskins/credvault/internal/keychain"
)

// Code classifies a failed credential operation.
type Code int

const (
	CodeNotFound Code = iota + 1
	CodeDuplicateItem
	CodeAccessDenied
	CodeUnavailable
	CodeInvalidField
)

func (c Code) String() string {
	switch c {
	case CodeNotFound:
		return "not found"
	case CodeDuplicateItem:
		return "duplicate item"
	case CodeAccessDenied:
		return "access denied"
	case CodeUnavailable:
		return "unavailable"
	case CodeInvalidField:
		return "invalid field"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// Sentinels for errors.Is. They match any *StoreError with the same Code.
var (
	ErrNotFound      = &StoreError{Code: CodeNotFound}
	ErrDuplicateItem = &StoreError{Code: CodeDuplicateItem}
	ErrAccessDenied  = &StoreError{Code: CodeAccessDenied}
	ErrUnavailable   = &StoreError{Code: CodeUnavailable}
	ErrInvalidField  = &StoreError{Code: CodeInvalidField}
)

// StoreError is returned by every failing credential operation.
type StoreError struct {
	Op    string // "commit", "delete", "lookup", "password", ...
	Code  Code
	Field string // set for CodeInvalidField
	Err   error
}

func (e *StoreError) Error() string {
	msg := e.Code.String()
	if e.Field != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Field)
	}
	if e.Op != "" {
		msg = "credential " + e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	return ok && t.Code == e.Code
}

// Description returns the store's human-readable description of the failure.
func (e *StoreError) Description() string {
	if e.Err == nil {
		return e.Code.String()
	}
	return keychain.Describe(e.Err)
}

// CodeOf returns the Code carried by err, or zero if err is not a *StoreError.
func CodeOf(err error) Code {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// storeError classifies an error reported by the store. Errors it does not
// recognise are treated as transient store failures.
func storeError(op string, err error) error {
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	e := &StoreError{Op: op, Err: err}
	var fe *keychain.FieldError
	switch {
	case errors.As(err, &fe):
		e.Code = CodeInvalidField
		e.Field = fe.Field
	case errors.Is(err, keychain.ErrNotFound):
		e.Code = CodeNotFound
	case errors.Is(err, keychain.ErrDuplicateItem):
		e.Code = CodeDuplicateItem
	case errors.Is(err, keychain.ErrAccessDenied):
		e.Code = CodeAccessDenied
	case errors.Is(err, keychain.ErrInvalidField):
		e.Code = CodeInvalidField
	default:
		e.Code = CodeUnavailable
	}
	return e
}

func invalidField(op, field, reason string) error {
	return &StoreError{
		Op:    op,
		Code:  CodeInvalidField,
		Field: field,
		Err:   &keychain.FieldError{Field: field, Reason: reason},
	}
}
