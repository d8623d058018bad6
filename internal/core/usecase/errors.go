package usecase

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInvalidInput       Kind = "invalid_input"
	KindConflict           Kind = "conflict"
	KindNotFound           Kind = "not_found"
	KindPreconditionFailed Kind = "precondition_failed"
	KindStorageFailure     Kind = "storage_failure"
)

// Error is a domain failure with a stable Code. Two Errors match under
// errors.Is when their codes are equal, so a wrapped cause does not hide the
// sentinel it was built from.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: cause}
}

var (
	ErrInvalidInput         = &Error{Kind: KindInvalidInput, Code: "invalid_input", Message: "invalid input"}
	ErrInvalidAmount        = &Error{Kind: KindInvalidInput, Code: "invalid_amount", Message: "amount must be positive with at most 2 decimal places"}
	ErrWalletAlreadyExists  = &Error{Kind: KindConflict, Code: "wallet_already_exists", Message: "wallet already exists"}
	ErrAlreadyEnabled       = &Error{Kind: KindConflict, Code: "already_enabled", Message: "wallet already enabled"}
	ErrAlreadyDisabled      = &Error{Kind: KindConflict, Code: "already_disabled", Message: "wallet already disabled"}
	ErrDuplicateTransaction = &Error{Kind: KindConflict, Code: "duplicate_transaction", Message: "reference id already used"}
	ErrWalletNotFound       = &Error{Kind: KindNotFound, Code: "wallet_not_found", Message: "wallet not found"}
	ErrWalletDisabled       = &Error{Kind: KindPreconditionFailed, Code: "wallet_disabled", Message: "wallet disabled"}
	ErrInsufficientFunds    = &Error{Kind: KindPreconditionFailed, Code: "insufficient_funds", Message: "insufficient funds"}
	ErrStorage              = &Error{Kind: KindStorageFailure, Code: "storage_failure", Message: "storage failure"}
)

// KindOf reports the kind of a domain error. Anything else is a storage
// failure: the usecases only leak foreign errors from the store.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorageFailure
}

// CodeOf reports the stable code of a domain error, or ErrStorage's code.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrStorage.Code
}
