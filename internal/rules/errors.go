package rules

import "errors"

// ErrNoSpawner indicates Options.Spawner was nil.
var ErrNoSpawner = errors.New("rules: spawner is required")
