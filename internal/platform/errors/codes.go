// Package errors provides structured error handling for the courtroom engine.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Case errors
	CodeCaseNotFound  Code = "CASE_NOT_FOUND"
	CodeCaseMalformed Code = "CASE_MALFORMED"

	// Match errors
	CodeMatchNotFound      Code = "MATCH_NOT_FOUND"
	CodeMatchTerminal      Code = "MATCH_TERMINAL"
	CodeMatchAlreadyActive Code = "MATCH_ALREADY_ACTIVE"

	// Hearing input errors
	CodeInvalidSelection Code = "INVALID_SELECTION"
	CodeNotAwaitingInput Code = "NOT_AWAITING_INPUT"
	CodeSessionDisposed  Code = "SESSION_DISPOSED"

	// Persistence errors
	CodePersistFailed Code = "PERSIST_FAILED"

	// Request errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
)

// Retryable reports whether a client may repeat the same request and expect
// a different outcome without changing it.
func (c Code) Retryable() bool {
	switch c {
	case CodePersistFailed, CodeNotAwaitingInput, CodeMatchAlreadyActive:
		return true
	default:
		return false
	}
}

// Terminal reports whether the code ends the hearing session it was raised in.
func (c Code) Terminal() bool {
	switch c {
	case CodeCaseNotFound, CodeCaseMalformed, CodeMatchNotFound, CodeSessionDisposed:
		return true
	default:
		return false
	}
}

// CodeOf extracts the code carried by err, or CodeUnknown.
func CodeOf(err error) Code {
	var target *Error
	if As(err, &target) {
		return target.Code
	}
	return CodeUnknown
}
