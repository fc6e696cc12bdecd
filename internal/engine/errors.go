package engine

import "errors"

var (
	// ErrNoBus is returned by New when no bus adapter is supplied.
	ErrNoBus = errors.New("engine: bus adapter is required")
)
