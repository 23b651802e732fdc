package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrConflict      = errors.New("external id already exists")
	ErrTxDone        = errors.New("transaction already finished")
	ErrBegin         = errors.New("begin batch failed")
	ErrCommit        = errors.New("commit batch failed")
	ErrInvalidQuery  = errors.New("invalid catalog query")
	ErrUnknownDriver = errors.New("unknown store driver")
)
