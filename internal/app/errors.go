package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted   = errors.New("service not started")
	ErrEmptyQuery   = errors.New("query must not be empty")
	ErrBackpressure = errors.New("ingest queue is full")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)
