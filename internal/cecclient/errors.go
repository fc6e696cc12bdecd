package cecclient

import "errors"

var (
	// ErrNotReady is returned when cec-client does not report a
	// registered adapter within the ready timeout.
	ErrNotReady = errors.New("cecclient: adapter did not become ready")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("cecclient: already started")
)
