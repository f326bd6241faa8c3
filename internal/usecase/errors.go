package usecase

import "fmt"

type ErrorCode string

const (
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorUnauthorised ErrorCode = "UNAUTHORISED"
	ErrorInternal     ErrorCode = "INTERNAL_ERROR"
)

// Reasons attached to Error. They are for logs; callers see a fixed message
// per code.
const (
	ReasonValidation         = "validation_error"
	ReasonVerificationFailed = "verification_rejected"
	ReasonInvalidSecret      = "verification_invalid_secret"
	ReasonVerifierError      = "verification_error"
	ReasonStoreWrite         = "store_write_error"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
