package source

import "errors"

// Sentinel kinds carried in Result.Err.
var (
	ErrTransport        = errors.New("source transport failed")
	ErrUnexpectedStatus = errors.New("source returned unexpected status")
	ErrCancelled        = errors.New("fetch cancelled")
)
