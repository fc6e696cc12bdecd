package daemon

import "errors"

// ErrNoDispatcher indicates Options.Dispatcher was nil.
var ErrNoDispatcher = errors.New("daemon: dispatcher is required")
