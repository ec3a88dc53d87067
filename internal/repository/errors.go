package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist, or a
	// conditional update matched zero rows.
	ErrNotFound = errors.New("repository: not found")
)
