package service

import "errors"

// --- Error Definitions shared by the services ---
var (
	ErrForbidden = errors.New("access denied")
	ErrInvalidID = invalidInput("invalid id")
)

// InputError is a request the caller must fix. Handlers answer 400 with its message.
type InputError struct {
	msg string
}

func (e *InputError) Error() string {
	return e.msg
}

func invalidInput(msg string) *InputError {
	return &InputError{msg: msg}
}
