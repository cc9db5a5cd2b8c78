package onset

import "errors"

var (
	errInvalidState = errors.New("invalid state")
	errDisposed     = errors.New("disposed")
)

// IsInvalidState returns true if the cause of the error is an invalid initial
// state. This is for example trying to start a service twice.
func IsInvalidState(err error) bool {
	return errors.Is(err, errInvalidState)
}

// IsDisposed returns true if the operation failed because the service was
// already disposed.
func IsDisposed(err error) bool {
	return errors.Is(err, errDisposed)
}
