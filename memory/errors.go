// Package memory - errors.go
// Defines the error taxonomy of the conversation store.

package memory

import "errors"

var (
	ErrNotFound   = errors.New("conversation not found")
	ErrConflict   = errors.New("session id already exists")
	ErrValidation = errors.New("invalid input")
)
