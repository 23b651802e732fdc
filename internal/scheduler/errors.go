package scheduler

import "errors"

// Sentinel kinds for scheduler errors.
var (
	ErrInvalidSpec = errors.New("invalid schedule spec")
	ErrNoQueries   = errors.New("no scheduled queries")
)
