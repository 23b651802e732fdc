package results

import "errors"

// Sentinel kinds for result recorder errors.
var (
	ErrNotFound       = errors.New("job not found")
	ErrUnknownBackend = errors.New("unknown results backend")
)
