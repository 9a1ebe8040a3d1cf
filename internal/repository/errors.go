package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate indicates a uniqueness violation on insert.
	ErrDuplicate = errors.New("repository: duplicate")
)
