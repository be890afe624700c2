// README: Error taxonomy shared by every module; wrap with fmt.Errorf("%w: ...") and match with errors.Is.
package types

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidState      = errors.New("invalid state")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrTerminalState     = errors.New("terminal state")
	ErrValidation        = errors.New("validation error")
)

// Retryable reports whether the caller may retry the same request after re-reading state.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
