package ledger

import "errors"

// Stable numeric rejection codes. Collaborating systems (compliance checks,
// oracle feeds, incentive processors) dispatch on these values, so they must
// never be renumbered.
const (
	CodeNotAuthorized = 100
	CodeInvalidBatch  = 101
	CodeInvalidStage  = 102
	CodePaused        = 103
	CodeZeroAddress   = 104
	CodeAlreadyExists = 105
)

// Error is a domain rejection. Every failed operation returns exactly one of
// the sentinel values below as a plain result value; the ledger never panics
// on bad input.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Transient reports whether the rejection may clear on retry without a
// change of input. Only the pause circuit breaker is transient.
func (e *Error) Transient() bool {
	return e.Code == CodePaused
}

var (
	ErrNotAuthorized = &Error{Code: CodeNotAuthorized, Message: "caller is not authorized"}
	ErrInvalidBatch  = &Error{Code: CodeInvalidBatch, Message: "batch does not exist or is no longer active"}
	ErrInvalidStage  = &Error{Code: CodeInvalidStage, Message: "value is not a recognized lifecycle stage"}
	ErrPaused        = &Error{Code: CodePaused, Message: "ledger is paused"}
	ErrZeroAddress   = &Error{Code: CodeZeroAddress, Message: "a real principal is required"}
	ErrAlreadyExists = &Error{Code: CodeAlreadyExists, Message: "batch id is already allocated"}
)

// CodeOf returns the stable numeric code carried by err, or 0 when err is
// not a ledger rejection.
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}
