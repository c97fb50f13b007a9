package storage

import "errors"

// Common storage errors
var (
	ErrNotFound      = errors.New("not found")
	ErrRunExists     = errors.New("run already exists")
	ErrInvalidCursor = errors.New("invalid cursor")
)
