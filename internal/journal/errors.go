package journal

import "errors"

// ErrNotStarted is returned by queries before Start or after Stop.
var ErrNotStarted = errors.New("journal: not started")
