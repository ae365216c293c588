package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrCorruptSession indicates a stored session could not be decoded.
	ErrCorruptSession = errors.New("repository: corrupt session record")
)
