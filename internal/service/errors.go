package service

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain error for callers: it decides HTTP mapping
// and whether a retry makes sense.
type ErrorKind int

const (
	// KindInternal is a store or unexpected failure. Logged with full
	// context; callers only see a generic message.
	KindInternal ErrorKind = iota
	// KindValidation is malformed input. Reject, no retry.
	KindValidation
	// KindConflict is a concurrent-state violation. Caller may retry after
	// re-reading.
	KindConflict
	// KindInvalidState means the operation is not legal in the entity's
	// current state. Reject, no retry.
	KindInvalidState
	// KindPaymentNotConfirmed is the InvalidState case callers should answer
	// by prompting for payment.
	KindPaymentNotConfirmed
	// KindUpstreamTimeout means the payment processor was unreachable.
	// Retryable.
	KindUpstreamTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindConflict:
		return "conflict"
	case KindInvalidState:
		return "invalid_state"
	case KindPaymentNotConfirmed:
		return "payment_not_confirmed"
	case KindUpstreamTimeout:
		return "upstream_timeout"
	default:
		return "internal_error"
	}
}

// Error is the structured error every core operation returns.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func conflictError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

func invalidStateError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidState, Msg: fmt.Sprintf(format, args...)}
}

func paymentNotConfirmedError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindPaymentNotConfirmed, Msg: fmt.Sprintf(format, args...)}
}

func upstreamTimeoutError(msg string, err error) *Error {
	return &Error{Kind: KindUpstreamTimeout, Msg: msg, Err: err}
}

func internalError(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf extracts the kind of a core error; anything else is internal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
