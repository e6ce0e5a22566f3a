package vm

import (
	"errors"
	"fmt"
)

// ErrorCode classifies the failures a simulator call can report.
type ErrorCode int

const (
	// CodeNotInitialized reports an operation issued before Init succeeded.
	CodeNotInitialized ErrorCode = iota + 1

	// CodeInvalidConfig reports a capacity or policy outside the accepted
	// domain at Init time.
	CodeInvalidConfig

	// CodeInvalidArgument reports a missing or malformed VPN, PFN, or
	// address.
	CodeInvalidArgument
)

// An Error is the structured result a failed call reports. Every failure is
// a caller-correctable input problem: none is retryable and none is fatal to
// the process.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return e.Message
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches two Errors by code, so errors.Is can test the class without
// comparing messages.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return e.Code == t.Code
}

// NotInitializedErr reports that op was invoked before a successful Init.
func NotInitializedErr(op string) *Error {
	return &Error{
		Code:    CodeNotInitialized,
		Op:      op,
		Message: "simulator not initialized",
	}
}

// InvalidConfigErr reports an out-of-domain capacity or policy.
func InvalidConfigErr(op, msg string) *Error {
	return &Error{Code: CodeInvalidConfig, Op: op, Message: msg}
}

// InvalidArgumentErr reports a missing or malformed input value.
func InvalidArgumentErr(op, msg string) *Error {
	return &Error{Code: CodeInvalidArgument, Op: op, Message: msg}
}

// CodeOf extracts the ErrorCode carried by err, or 0 when err is not an
// Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return 0
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
