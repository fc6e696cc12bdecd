package process

import "errors"

var (
	// ErrAlreadyRunning indicates Start was called while the process
	// is running or starting.
	ErrAlreadyRunning = errors.New("process: already running")

	// ErrNotRunning indicates a write was attempted while the process
	// is not running.
	ErrNotRunning = errors.New("process: not running")
)

// RecoverableError lets process exit errors mark themselves permanent,
// stopping the restart loop.
type RecoverableError interface {
	error
	IsRecoverable() bool
}

// IsRecoverable reports whether an exit error permits a restart.
// Errors that do not implement RecoverableError are treated as
// recoverable; so is a nil error.
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}
	var re RecoverableError
	if errors.As(err, &re) {
		return re.IsRecoverable()
	}
	return true
}
